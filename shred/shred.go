/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package shred implements the ingestion pipeline for leader-produced
// shreds: wire parsing, leader-schedule signature verification, per-slot
// assembly, completed-slot surfacing, and repair-request emission for
// missing indices.
package shred

import (
	"crypto/ed25519"
	"errors"

	"github.com/vexor-validator/vexor/wire"
)

// ErrInvalidData is returned when a shred's fixed header cannot be
// parsed from the given bytes.
var ErrInvalidData = errors.New("shred: invalid data")

// ErrShortPayload is returned when the header declares more payload than
// the packet actually carries.
var ErrShortPayload = errors.New("shred: payload shorter than declared")

// headerLen is the fixed prefix every shred carries before its variable
// payload: signature(64) + type(1) + slot(8) + index(4) + flags(1) +
// payload_len(2).
const headerLen = wire.SignatureSize + 1 + 8 + 4 + 1 + 2

const (
	typeData   uint8 = 0
	typeCoding uint8 = 1

	flagLastInSlot uint8 = 1 << 0
)

// Shred is one parsed shred: its slot/index coordinates, whether it
// carries ledger data or erasure coding, whether it is the terminal
// shred of its slot, and its raw entry payload.
type Shred struct {
	Signature    wire.Signature
	Slot         uint64
	Index        uint32
	IsData       bool
	IsLastInSlot bool
	Payload      []byte

	raw []byte // full wire bytes, for signature verification
}

// Parse reads one Shred from the front of b. It does not verify the
// signature; callers verify separately once the slot's leader is known.
func Parse(b []byte) (*Shred, error) {
	if len(b) < headerLen {
		return nil, ErrInvalidData
	}
	orig := b
	var sig wire.Signature
	copy(sig[:], b[:wire.SignatureSize])
	b = b[wire.SignatureSize:]

	typ := b[0]
	b = b[1:]
	if typ != typeData && typ != typeCoding {
		return nil, ErrInvalidData
	}

	slot, b, err := wire.ReadUint64(b)
	if err != nil {
		return nil, ErrInvalidData
	}
	index, b, err := wire.ReadUint32(b)
	if err != nil {
		return nil, ErrInvalidData
	}
	flags := b[0]
	b = b[1:]
	payloadLen, b, err := wire.ReadUint16(b)
	if err != nil {
		return nil, ErrInvalidData
	}
	if len(b) < int(payloadLen) {
		return nil, ErrShortPayload
	}

	s := &Shred{
		Signature:    sig,
		Slot:         slot,
		Index:        index,
		IsData:       typ == typeData,
		IsLastInSlot: flags&flagLastInSlot != 0,
		Payload:      append([]byte{}, b[:payloadLen]...),
		raw:          orig[:headerLen+int(payloadLen)],
	}
	return s, nil
}

// SignableBytes returns the bytes a shred's signature covers: everything
// after the 64-byte signature field.
func (s *Shred) SignableBytes() []byte {
	return s.raw[wire.SignatureSize:]
}

// VerifySignature reports whether s's signature validates under
// leaderIdentity.
func (s *Shred) VerifySignature(leaderIdentity wire.Identity) bool {
	return ed25519.Verify(ed25519.PublicKey(leaderIdentity[:]), s.SignableBytes(), s.Signature[:])
}

// Encode serializes a Shred, writing sig into its signature field; callers
// that sign afterwards pass a zero sig and fill it in (used only by tests
// and repair-path fixtures; production shreds arrive already signed by the
// leader).
func Encode(slot uint64, index uint32, isData, isLastInSlot bool, payload []byte, sig wire.Signature) []byte {
	buf := make([]byte, headerLen+len(payload))
	copy(buf, sig[:])
	cur := buf[wire.SignatureSize:]
	if isData {
		cur[0] = typeData
	} else {
		cur[0] = typeCoding
	}
	cur = cur[1:]
	wire.PutUint64(cur, slot)
	cur = cur[8:]
	wire.PutUint32(cur, index)
	cur = cur[4:]
	var flags uint8
	if isLastInSlot {
		flags |= flagLastInSlot
	}
	cur[0] = flags
	cur = cur[1:]
	wire.PutUint16(cur, uint16(len(payload)))
	cur = cur[2:]
	copy(cur, payload)
	return buf
}
