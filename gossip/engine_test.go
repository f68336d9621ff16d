/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vexor-validator/vexor/crds"
	"github.com/vexor-validator/vexor/packetfabric"
	"github.com/vexor-validator/vexor/wire"
)

type fakeFabric struct {
	sent [][]byte
	dst  []net.UDPAddr
}

func (f *fakeFabric) RecvBatch(batch *packetfabric.Batch) (int, error) { return 0, nil }
func (f *fakeFabric) SendBatch(pkts []packetfabric.PacketBuffer, dst net.UDPAddr) (int, error) {
	for _, p := range pkts {
		f.sent = append(f.sent, append([]byte{}, p.Data()...))
		f.dst = append(f.dst, dst)
	}
	return len(pkts), nil
}
func (f *fakeFabric) Close() error { return nil }

func legacyCrdsValue(id wire.Identity, port uint16, wallclock uint64) *wire.CrdsValue {
	ip := net.ParseIP("127.0.0.1")
	ci := &wire.LegacyContactInfo{
		Identity:    id,
		Gossip:      wire.SocketAddressV4(ip, port),
		ServeRepair: wire.SocketAddressV4(ip, port+9),
		WallclockMs: wallclock,
	}
	return &wire.CrdsValue{Payload: wire.NewLegacyContactPayload(ci)}
}

func TestIngestOneAcceptsLegacyContactAndBuildsPeer(t *testing.T) {
	f := &fakeFabric{}
	e := New(DefaultConfig(), crds.New(), f, nil)

	var id wire.Identity
	id[0] = 7
	e.ingestOne(legacyCrdsValue(id, 8001, 1000))

	require.Equal(t, 1, e.PeerCount())
	e.mu.Lock()
	p := e.peers[id]
	e.mu.Unlock()
	require.True(t, p.HasServeRepair())
	require.Equal(t, 8001, p.Gossip.Port)
}

func TestIngestOneRejectsStaleWallclock(t *testing.T) {
	f := &fakeFabric{}
	e := New(DefaultConfig(), crds.New(), f, nil)
	var id wire.Identity
	id[0] = 3
	e.ingestOne(legacyCrdsValue(id, 8001, 1000))
	e.ingestOne(legacyCrdsValue(id, 9999, 500)) // older: rejected

	e.mu.Lock()
	p := e.peers[id]
	e.mu.Unlock()
	require.Equal(t, 8001, p.Gossip.Port)
}

func TestHandlePingSendsSignedPong(t *testing.T) {
	f := &fakeFabric{}
	e := New(DefaultConfig(), crds.New(), f, nil)

	var originator wire.Identity
	var token [32]byte
	copy(token[:], []byte("0123456789abcdef0123456789abcdef"))
	ping := &wire.Ping{Originator: originator, Token: token}
	buf := make([]byte, wire.PingSize)
	_, err := ping.Encode(buf)
	require.NoError(t, err)

	src := net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 9000}
	e.handlePing(buf, src)

	require.Len(t, f.sent, 1)
	require.Equal(t, src, f.dst[0])
	pong, err := wire.DecodePong(f.sent[0])
	require.NoError(t, err)
	require.Equal(t, wire.PongHash(token), pong.Hash)
	require.Equal(t, wire.Signature{}, pong.Signature) // no keypair set: zero signature
}

func TestHandlePongRecordsLiveness(t *testing.T) {
	f := &fakeFabric{}
	e := New(DefaultConfig(), crds.New(), f, nil)
	var id wire.Identity
	id[0] = 5
	e.ingestOne(legacyCrdsValue(id, 8001, 1000))

	h := wire.PongHash([32]byte{1, 2, 3})
	pong := &wire.Pong{Originator: id, Hash: h}
	buf := make([]byte, wire.PongSize)
	_, err := pong.Encode(buf)
	require.NoError(t, err)

	e.handlePong(buf)
	e.mu.Lock()
	last := e.peers[id].LastPong
	e.mu.Unlock()
	require.False(t, last.IsZero())
	require.WithinDuration(t, time.Now(), last, time.Second)
}

func TestUnknownTagIsCountedAndIgnored(t *testing.T) {
	f := &fakeFabric{}
	e := New(DefaultConfig(), crds.New(), f, nil)
	buf := make([]byte, 8)
	wire.PutUint32(buf, 99)
	var pb packetfabric.PacketBuffer
	pb.Len = copy(pb.Bytes[:], buf)
	e.dispatch(pb)
	require.Equal(t, uint64(1), e.GetStats().UnknownTag)
}

func TestDuePullUsesShortIntervalWithNoPeers(t *testing.T) {
	e := New(DefaultConfig(), crds.New(), &fakeFabric{}, nil)
	require.True(t, e.duePull(time.Now()))
}
