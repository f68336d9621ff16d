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

func TestStreamDeliversInOffsetOrder(t *testing.T) {
	s := NewStream(4, 0, 0)

	// segment at offset 5 arrives first: gap blocks delivery
	require.NoError(t, s.Recv(5, []byte("world"), false))
	require.Empty(t, s.ReadAvailable())

	require.NoError(t, s.Recv(0, []byte("hello"), false))
	require.Equal(t, []byte("helloworld"), s.ReadAvailable())
}

func TestStreamDiscardsDuplicates(t *testing.T) {
	s := NewStream(0, 0, 0)
	require.NoError(t, s.Recv(0, []byte("abc"), false))
	require.Equal(t, []byte("abc"), s.ReadAvailable())

	require.NoError(t, s.Recv(0, []byte("abc"), false))
	require.Empty(t, s.ReadAvailable())
}

func TestStreamTrimsOverlappingSegment(t *testing.T) {
	s := NewStream(0, 0, 0)
	require.NoError(t, s.Recv(0, []byte("abcd"), false))
	require.Equal(t, []byte("abcd"), s.ReadAvailable())

	// overlaps two already-delivered bytes
	require.NoError(t, s.Recv(2, []byte("cdef"), false))
	require.Equal(t, []byte("ef"), s.ReadAvailable())
}

func TestStreamFinTransitionsState(t *testing.T) {
	s := NewStream(8, 0, 0)
	require.Equal(t, StreamOpen, s.State())

	require.NoError(t, s.Recv(0, []byte("done"), true))
	require.True(t, s.RecvFinished())
	require.Equal(t, StreamHalfClosedRemote, s.State())

	s.CloseLocal()
	require.Equal(t, StreamClosed, s.State())
}

func TestStreamFinAtConflictingOffsetRejected(t *testing.T) {
	s := NewStream(0, 0, 0)
	require.NoError(t, s.Recv(0, []byte("abcd"), true))
	require.ErrorIs(t, s.Recv(0, []byte("abcdef"), true), ErrFinOffsetChanged)
}

func TestStreamFinBlockedByGap(t *testing.T) {
	s := NewStream(0, 0, 0)
	require.NoError(t, s.Recv(4, []byte("tail"), true))
	require.False(t, s.RecvFinished())
	require.Equal(t, StreamOpen, s.State())

	require.NoError(t, s.Recv(0, []byte("head"), false))
	require.True(t, s.RecvFinished())
	require.Equal(t, []byte("headtail"), s.ReadAvailable())
}

func TestStreamWriteAssignsMonotonicOffsets(t *testing.T) {
	s := NewStream(0, 0, 0)
	off, err := s.Write([]byte("first"))
	require.NoError(t, err)
	require.EqualValues(t, 0, off)

	off, err = s.Write([]byte("second"))
	require.NoError(t, err)
	require.EqualValues(t, 5, off)

	segs, fin := s.TakeSendQueue()
	require.Len(t, segs, 2)
	require.False(t, fin)

	s.CloseLocal()
	_, fin = s.TakeSendQueue()
	require.True(t, fin)

	_, err = s.Write([]byte("late"))
	require.Error(t, err)
}

func TestStreamFlowControlLimits(t *testing.T) {
	s := NewStream(0, 4, 4)
	require.ErrorIs(t, s.Recv(0, []byte("abcde"), false), ErrFlowControl)
	require.NoError(t, s.Recv(0, []byte("abcd"), false))

	_, err := s.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = s.Write([]byte("x"))
	require.ErrorIs(t, err, ErrFlowControl)
}

func TestStreamResetAbandonsBothDirections(t *testing.T) {
	s := NewStream(0, 0, 0)
	require.NoError(t, s.Recv(0, []byte("abc"), false))
	s.Write([]byte("out"))

	s.Reset()
	require.Equal(t, StreamReset, s.State())
	require.Empty(t, s.ReadAvailable())
	require.ErrorIs(t, s.Recv(3, []byte("more"), false), ErrStreamReset)
	_, err := s.Write([]byte("more"))
	require.ErrorIs(t, err, ErrStreamReset)
}

func TestConnectionStreamTableAndPacketNumbers(t *testing.T) {
	c := &Connection{streams: make(map[uint64]*Stream)}
	c.PeerParams.MaxStreamData = 1 << 20

	s1 := c.OpenStream(4)
	s2 := c.OpenStream(4)
	require.Same(t, s1, s2)

	_, ok := c.StreamByID(8)
	require.False(t, ok)

	require.EqualValues(t, 0, c.NextPacketNumber(2))
	require.EqualValues(t, 1, c.NextPacketNumber(2))
	require.EqualValues(t, 0, c.NextPacketNumber(0))
}

func TestConnectionStateTransitions(t *testing.T) {
	c := &Connection{streams: make(map[uint64]*Stream)}
	require.Equal(t, ConnInitial, c.State())
	c.SetState(ConnHandshake)
	c.SetState(ConnConnected)
	require.Equal(t, ConnConnected, c.State())
	c.SetState(ConnClosed)
	c.SetState(ConnConnected) // ignored: closed is terminal
	require.Equal(t, ConnClosed, c.State())
}
