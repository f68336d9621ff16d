/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactU16Roundtrip(t *testing.T) {
	cases := []struct {
		v      uint16
		length int
	}{
		{0, 1}, {1, 1}, {0x7F, 1},
		{0x80, 2}, {0x3FFF, 2},
		{0x4000, 3}, {0xFFFF, 3},
	}
	for _, c := range cases {
		buf := make([]byte, 3)
		n, err := PutCompactU16(buf, c.v)
		require.NoError(t, err)
		require.Equal(t, c.length, n)
		require.Equal(t, c.length, CompactU16Len(c.v))
		got, rest, err := ReadCompactU16(buf[:n])
		require.NoError(t, err)
		require.Equal(t, c.v, got)
		require.Empty(t, rest)
	}
}

func TestVarintRoundtrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 32, ^uint64(0)}
	for _, v := range cases {
		buf := make([]byte, 10)
		n, err := PutVarint(buf, v)
		require.NoError(t, err)
		require.Equal(t, VarintLen(v), n)
		got, rest, err := ReadVarint(buf[:n])
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Empty(t, rest)
	}
}

func TestVarintOverflow(t *testing.T) {
	// 11 bytes, the first ten with the continuation bit set: too wide for a u64.
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0xFF
	}
	buf[10] = 0x7F
	_, _, err := ReadVarint(buf)
	require.ErrorIs(t, err, ErrVarIntOverflow)
}

func TestSocketAddressV4Scenario(t *testing.T) {
	// 192.168.1.100:8001 encodes to exactly 10 bytes:
	// 00 00 00 00  C0 A8 01 64  41 1F
	sa := SocketAddressV4(net.ParseIP("192.168.1.100"), 8001)
	buf := make([]byte, sa.Len())
	n, err := sa.Encode(buf)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0xC0, 0xA8, 0x01, 0x64, 0x41, 0x1F}, buf)

	got, rest, err := DecodeSocketAddress(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, uint16(8001), got.Port)
	require.True(t, got.IP.Equal(net.ParseIP("192.168.1.100")))
}

func legacyContactInfoFixture() *LegacyContactInfo {
	ip := net.ParseIP("10.0.0.1")
	mk := func(p uint16) SocketAddress { return SocketAddressV4(ip, p) }
	return &LegacyContactInfo{
		Gossip:       mk(8001),
		TVU:          mk(8002),
		TVUForwards:  mk(8003),
		Repair:       mk(8004),
		TPU:          mk(8005),
		TPUForwards:  mk(8006),
		TPUVote:      mk(8007),
		RPC:          mk(8008),
		RPCPubsub:    mk(8009),
		ServeRepair:  mk(8010),
		WallclockMs:  1000,
		ShredVersion: 9604,
	}
}

func TestLegacyContactInfoSizeAndRoundtrip(t *testing.T) {
	ci := legacyContactInfoFixture()
	require.Equal(t, LegacyContactInfoSizeV4, ci.Len())
	buf := make([]byte, ci.Len())
	n, err := ci.Encode(buf)
	require.NoError(t, err)
	require.Equal(t, LegacyContactInfoSizeV4, n)

	got, consumed, err := DecodeLegacyContactInfo(buf)
	require.NoError(t, err)
	require.Equal(t, LegacyContactInfoSizeV4, consumed)
	require.Equal(t, ci, got)
}

func TestModernContactInfoRoundtripAndLength(t *testing.T) {
	ip := net.ParseIP("10.0.0.1")
	ci := &ContactInfo{
		WallclockMs:        123456,
		InstanceCreationUs: 7,
		ShredVersion:       9604,
		Version:            VersionInfo{Major: 2, Minor: 1, Patch: 0, Commit: 0xdeadbeef, Feature: 1, Client: 1},
		Addresses:          []IPAddr{IPAddrV4(ip)},
		Sockets: EncodeSockets(
			[]uint8{SocketTagGossip, SocketTagTPU, SocketTagTVU},
			[]uint8{0, 0, 0},
			[]uint16{8001, 8005, 8010},
		),
	}
	copy(ci.Identity[:], []byte("01234567890123456789012345678901"))

	buf := make([]byte, ci.Len())
	n, err := ci.Encode(buf)
	require.NoError(t, err)
	require.Equal(t, ci.Len(), n)

	got, consumed, err := DecodeContactInfo(buf)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, ci, got)
	require.Equal(t, []uint16{8001, 8005, 8010}, got.AbsolutePorts())

	// address entries carry no port: family u32 + 4 address bytes
	require.Equal(t, 8, IPAddrV4(ip).Len())
}

func TestPingPongRoundtripAndHash(t *testing.T) {
	var token [32]byte
	copy(token[:], []byte("abcdefghijklmnopqrstuvwxyz012345"))

	p := &Ping{Token: token}
	buf := make([]byte, PingSize)
	n, err := p.Encode(buf)
	require.NoError(t, err)
	require.Equal(t, PingSize, n)
	got, err := DecodePing(buf)
	require.NoError(t, err)
	require.Equal(t, token, got.Token)

	h := PongHash(token)
	pg := &Pong{Hash: h}
	pbuf := make([]byte, PongSize)
	_, err = pg.Encode(pbuf)
	require.NoError(t, err)
	gotPong, err := DecodePong(pbuf)
	require.NoError(t, err)
	require.Equal(t, h, gotPong.Hash)
}

func TestAcceptAllPullRequestScenario(t *testing.T) {
	// tag 0, accept-all filter, zero signature, legacy contact info.
	ci := legacyContactInfoFixture()
	pr := &PullRequest{
		Filter: AcceptAllCrdsFilter(),
		Value: CrdsValue{
			Payload: NewLegacyContactPayload(ci),
		},
	}
	buf := make([]byte, pr.Len())
	n, err := pr.Encode(buf)
	require.NoError(t, err)
	require.Equal(t, pr.Len(), n)

	require.Equal(t, uint32(TagPullRequest), mustPeek(t, buf))

	// filter: keys=3 (3*8), has_bits=1, cap=1 word, bits=[0], bitcount=0, num_bits_set=0
	filterBuf := buf[4:]
	filter, rest, err := DecodeCrdsFilter(filterBuf)
	require.NoError(t, err)
	require.Len(t, filter.Bloom.Keys, 3)
	require.Equal(t, []uint64{0}, filter.Bloom.Bits)
	require.Equal(t, uint64(0), filter.Bloom.NumBitsSet)
	require.Equal(t, ^uint64(0), filter.Mask)
	require.Equal(t, uint32(0), filter.MaskBits)

	cv, consumed, err := DecodeCrdsValue(rest)
	require.NoError(t, err)
	require.Equal(t, len(rest), consumed)
	require.Equal(t, CrdsLegacyContactInfo, cv.Payload.VariantTag())
}

func mustPeek(t *testing.T, b []byte) uint32 {
	t.Helper()
	tag, err := PeekOuterTag(b)
	require.NoError(t, err)
	return tag
}

func TestPushPullResponseRoundtrip(t *testing.T) {
	ci := legacyContactInfoFixture()
	cv := &CrdsValue{Payload: NewLegacyContactPayload(ci)}

	push := &Push{Values: []*CrdsValue{cv}}
	buf := make([]byte, push.Len())
	_, err := push.Encode(buf)
	require.NoError(t, err)
	gotPush, err := DecodePush(buf)
	require.NoError(t, err)
	require.Len(t, gotPush.Values, 1)

	pr := &PullResponse{Values: []*CrdsValue{cv}}
	buf2 := make([]byte, pr.Len())
	_, err = pr.Encode(buf2)
	require.NoError(t, err)
	gotPR, err := DecodePullResponse(buf2)
	require.NoError(t, err)
	require.Len(t, gotPR.Values, 1)
}

func TestGenericVariantSkipsExactLength(t *testing.T) {
	payload, err := NewGenericPayload(CrdsVote, 42, []byte("hello vote"))
	require.NoError(t, err)
	cv := &CrdsValue{Payload: payload}
	buf := make([]byte, cv.Len())
	_, err = cv.Encode(buf)
	require.NoError(t, err)

	// Append a second value right after to prove length computation does
	// not desync: decoding the first must consume exactly its own bytes.
	ci := legacyContactInfoFixture()
	cv2 := &CrdsValue{Payload: NewLegacyContactPayload(ci)}
	buf2 := make([]byte, cv2.Len())
	_, err = cv2.Encode(buf2)
	require.NoError(t, err)

	combined := append(append([]byte{}, buf...), buf2...)
	got1, n1, err := DecodeCrdsValue(combined)
	require.NoError(t, err)
	require.Equal(t, uint64(42), got1.Payload.Wallclock())
	got2, n2, err := DecodeCrdsValue(combined[n1:])
	require.NoError(t, err)
	require.Equal(t, CrdsLegacyContactInfo, got2.Payload.VariantTag())
	require.Equal(t, len(combined), n1+n2)
}
