/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnAckUpdatesRTTAndReturnsNewlyAcked(t *testing.T) {
	d := NewDetector()
	d.OnSent(SentPacket{PN: 1, SendTimeMs: 1000, AckEliciting: true, InFlight: true, Size: 100})
	d.OnSent(SentPacket{PN: 2, SendTimeMs: 1010, AckEliciting: true, InFlight: true, Size: 100})

	res := d.OnAck(1, 2, 0, 1050)
	require.Len(t, res.NewlyAcked, 2)
	require.Equal(t, uint64(40), d.SmoothedRTT()) // rtt sample from pn=2: 1050-1010=40
	require.Zero(t, d.InFlightCount())
}

func TestDetectLostByPacketThreshold(t *testing.T) {
	d := NewDetector()
	for pn := uint64(1); pn <= 5; pn++ {
		d.OnSent(SentPacket{PN: pn, SendTimeMs: 1000, AckEliciting: true, InFlight: true, Size: 50})
	}
	// Acking pn=5 leaves pn=1 and pn=2 at least 3 behind (pn+3<=largest):
	// 1+3<=5, 2+3<=5. now is within the time threshold (srtt 40 -> 45ms
	// loss delay, packets sent 40ms ago) so only the packet threshold
	// fires.
	res := d.OnAck(5, 5, 0, 1040)
	lostPNs := map[uint64]bool{}
	for _, p := range res.Lost {
		lostPNs[p.PN] = true
	}
	require.True(t, lostPNs[1])
	require.True(t, lostPNs[2])
	require.False(t, lostPNs[3])
}

func TestDetectLostByTimeThreshold(t *testing.T) {
	d := NewDetector()
	d.OnSent(SentPacket{PN: 1, SendTimeMs: 1000, AckEliciting: true, InFlight: true, Size: 50})
	d.OnSent(SentPacket{PN: 2, SendTimeMs: 1000, AckEliciting: true, InFlight: true, Size: 50})

	// First ACK establishes an RTT sample so timeThresholdMs isn't the
	// pre-RTT floor.
	d.OnAck(2, 2, 0, 1100)

	d.OnSent(SentPacket{PN: 3, SendTimeMs: 1100, AckEliciting: true, InFlight: true, Size: 50})
	// pn=1 was sent at 1000 and is long past any reasonable loss delay by
	// now=5000.
	res := d.OnAck(3, 3, 0, 5000)
	found := false
	for _, p := range res.Lost {
		if p.PN == 1 {
			found = true
		}
	}
	require.True(t, found)
}

func TestPTOGrowsWithBackoffAndCapsAt10(t *testing.T) {
	d := NewDetector()
	d.OnSent(SentPacket{PN: 1, SendTimeMs: 0, AckEliciting: true, InFlight: true})
	d.OnAck(1, 1, 0, 100)

	base := d.PTO()
	for i := 0; i < 20; i++ {
		d.OnPTOExpired()
	}
	capped := d.PTO()
	require.Equal(t, base<<10, capped)
}
