/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"errors"
	"sync"
)

// StreamState is a stream's lifecycle position.
type StreamState int

const (
	StreamOpen StreamState = iota
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
	StreamReset
)

// ErrStreamReset is returned by stream operations after the stream has
// been reset by either side.
var ErrStreamReset = errors.New("quic: stream reset")

// ErrStreamClosed is returned by Write once the send side has been
// closed with a FIN.
var ErrStreamClosed = errors.New("quic: stream send side closed")

// ErrFinOffsetChanged is returned when a peer sends FIN at two different
// final offsets, a protocol violation.
var ErrFinOffsetChanged = errors.New("quic: stream final offset changed")

// ErrFlowControl is returned when a write or received segment would exceed
// the stream's advertised data limit.
var ErrFlowControl = errors.New("quic: flow control limit exceeded")

// Stream is one bidirectional QUIC stream: an offset-ordered receive
// reassembly buffer and an append-only send buffer, each with its own FIN
// flag. Receive-side bytes are surfaced strictly in offset order;
// duplicate segments are discarded and a gap blocks everything behind it
// until filled.
type Stream struct {
	mtx sync.Mutex

	ID    uint64
	state StreamState

	// receive side
	recvNext   uint64            // next offset deliverable to the reader
	pending    map[uint64][]byte // out-of-order segments keyed by start offset
	assembled  []byte            // contiguous bytes not yet read
	finOffset  uint64
	finSet     bool
	maxRecvOff uint64 // flow-control limit on received data, 0 = unlimited

	// send side
	sendOffset uint64
	sendQueue  [][]byte
	sendFin    bool
	maxSendOff uint64 // peer-advertised limit on sent data, 0 = unlimited
}

// NewStream constructs an open stream with the given id and per-direction
// flow-control limits (0 disables the respective check).
func NewStream(id uint64, maxRecvOff, maxSendOff uint64) *Stream {
	return &Stream{
		ID:         id,
		state:      StreamOpen,
		pending:    make(map[uint64][]byte),
		maxRecvOff: maxRecvOff,
		maxSendOff: maxSendOff,
	}
}

// State returns the stream's current lifecycle state.
func (s *Stream) State() StreamState {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// Recv ingests one received segment at the given stream offset. Fully
// duplicate segments are discarded; a segment overlapping already
// delivered bytes has the stale prefix trimmed. fin marks the segment's
// end as the stream's final offset; a FIN at a conflicting offset is a
// protocol violation.
func (s *Stream) Recv(offset uint64, data []byte, fin bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StreamReset {
		return ErrStreamReset
	}
	end := offset + uint64(len(data))
	if fin {
		if s.finSet && s.finOffset != end {
			return ErrFinOffsetChanged
		}
		s.finOffset = end
		s.finSet = true
	}
	if s.maxRecvOff != 0 && end > s.maxRecvOff {
		return ErrFlowControl
	}

	if end <= s.recvNext {
		// entirely duplicate
		s.maybeCloseRemote()
		return nil
	}
	if offset < s.recvNext {
		data = data[s.recvNext-offset:]
		offset = s.recvNext
	}
	if existing, ok := s.pending[offset]; !ok || len(data) > len(existing) {
		s.pending[offset] = append([]byte{}, data...)
	}
	s.reassemble()
	s.maybeCloseRemote()
	return nil
}

// reassemble moves contiguous pending segments into the assembled buffer.
// Caller holds s.mtx.
func (s *Stream) reassemble() {
	for {
		seg, ok := s.pending[s.recvNext]
		if !ok {
			return
		}
		delete(s.pending, s.recvNext)
		s.assembled = append(s.assembled, seg...)
		s.recvNext += uint64(len(seg))
		// a shorter duplicate may have landed inside a longer one; drop
		// any pending segment the new recvNext has passed
		for off, p := range s.pending {
			if off+uint64(len(p)) <= s.recvNext {
				delete(s.pending, off)
			} else if off < s.recvNext {
				s.pending[s.recvNext] = p[s.recvNext-off:]
				delete(s.pending, off)
			}
		}
	}
}

// maybeCloseRemote advances the state machine once every byte up to the
// final offset has been delivered. Caller holds s.mtx.
func (s *Stream) maybeCloseRemote() {
	if !s.finSet || s.recvNext < s.finOffset {
		return
	}
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.state = StreamClosed
	}
}

// ReadAvailable returns every contiguous byte received so far and not yet
// read. A gap in the receive stream blocks everything behind it.
func (s *Stream) ReadAvailable() []byte {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := s.assembled
	s.assembled = nil
	return out
}

// RecvFinished reports whether the receive side has delivered its final
// byte.
func (s *Stream) RecvFinished() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.finSet && s.recvNext >= s.finOffset
}

// Write queues data for transmission at the next send offset and returns
// the offset it was assigned.
func (s *Stream) Write(data []byte) (uint64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	switch s.state {
	case StreamReset:
		return 0, ErrStreamReset
	case StreamHalfClosedLocal, StreamClosed:
		return 0, ErrStreamClosed
	}
	off := s.sendOffset
	end := off + uint64(len(data))
	if s.maxSendOff != 0 && end > s.maxSendOff {
		return 0, ErrFlowControl
	}
	s.sendQueue = append(s.sendQueue, append([]byte{}, data...))
	s.sendOffset = end
	return off, nil
}

// CloseLocal marks the send side finished (FIN). Writes after CloseLocal
// fail.
func (s *Stream) CloseLocal() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.sendFin = true
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.state = StreamClosed
	}
}

// Reset abandons the stream in both directions.
func (s *Stream) Reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.state = StreamReset
	s.pending = make(map[uint64][]byte)
	s.assembled = nil
	s.sendQueue = nil
}

// TakeSendQueue drains the queued outbound segments for packetization,
// reporting whether a FIN should be attached after the last one.
func (s *Stream) TakeSendQueue() (segs [][]byte, fin bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	segs = s.sendQueue
	s.sendQueue = nil
	return segs, s.sendFin
}
