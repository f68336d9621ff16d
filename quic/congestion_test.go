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

func TestNewRenoInitialWindow(t *testing.T) {
	c := NewNewRenoController()
	require.Equal(t, uint64(initialWindow), c.Window())
}

func TestNewRenoSlowStartGrowsByBytesAcked(t *testing.T) {
	c := NewNewRenoController()
	before := c.Window()
	c.OnPacketAcked(1200)
	require.Equal(t, before+1200, c.Window())
}

func TestNewRenoCongestionEventHalvesAndNeverBelowMinimum(t *testing.T) {
	c := NewNewRenoController()
	c.OnCongestionEvent()
	require.Equal(t, uint64(initialWindow)>>1, c.Window())
	require.True(t, c.InRecovery())

	// Repeated events in the same recovery period are no-ops.
	before := c.Window()
	c.OnCongestionEvent()
	require.Equal(t, before, c.Window())
}

func TestNewRenoWindowNeverDropsBelowMinimum(t *testing.T) {
	c := NewNewRenoController()
	// Drive cwnd down repeatedly across recovery periods; it must floor at
	// minimumWindowSize rather than shift to zero.
	for i := 0; i < 20; i++ {
		c.OnCongestionEvent()
		c.ExitRecovery()
	}
	require.GreaterOrEqual(t, c.Window(), uint64(minimumWindowSize))
	require.Equal(t, uint64(minimumWindowSize), c.Window())
}

func TestNewRenoPersistentCongestionResetsToMinimum(t *testing.T) {
	c := NewNewRenoController()
	c.OnPacketAcked(100000)
	c.OnPersistentCongestion()
	require.Equal(t, uint64(minimumWindowSize), c.Window())
	require.False(t, c.InRecovery())
}

func TestNewRenoCongestionAvoidanceIncrementIsAtLeastOne(t *testing.T) {
	c := NewNewRenoController()
	c.OnCongestionEvent() // enters recovery, cwnd=ssthresh=7360
	c.ExitRecovery()
	before := c.Window()
	c.OnPacketAcked(1) // tiny ack in congestion avoidance; increment floors at 1
	require.Equal(t, before+1, c.Window())
}
