/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package shred

import (
	"errors"

	"github.com/vexor-validator/vexor/wire"
)

// RepairSize is the fixed wire length of a signed repair request:
// type(4) + signature(64) + sender(32) + recipient(32) + timestamp(8) +
// nonce(4) + slot(8) + index(8) = 160.
const RepairSize = 4 + wire.SignatureSize + wire.IdentitySize + wire.IdentitySize + 8 + 4 + 8 + 8

// RepairWindowIndexType is the repair message type for a single missing
// shred index.
const RepairWindowIndexType uint32 = 8

// ErrInvalidRepair is returned when a repair message cannot be parsed.
var ErrInvalidRepair = errors.New("shred: invalid repair message")

// RepairRequest is a signed request for one missing (slot, index) shred.
type RepairRequest struct {
	Signature   wire.Signature
	Sender      wire.Identity
	Recipient   wire.Identity
	TimestampMs uint64
	Nonce       uint32
	Slot        uint64
	Index       uint64
}

// signableBytes returns bytes 68..160 of buf: everything after the type
// and signature fields.
func (r *RepairRequest) signableBytes(buf []byte) []byte { return buf[4+wire.SignatureSize:] }

// Encode writes r's 160-byte wire form to dst. The signature must already
// be set; Encode does not sign.
func (r *RepairRequest) Encode(dst []byte) (int, error) {
	if len(dst) < RepairSize {
		return 0, ErrInvalidRepair
	}
	wire.PutUint32(dst, RepairWindowIndexType)
	cur := dst[4:]
	copy(cur, r.Signature[:])
	cur = cur[wire.SignatureSize:]
	copy(cur, r.Sender[:])
	cur = cur[wire.IdentitySize:]
	copy(cur, r.Recipient[:])
	cur = cur[wire.IdentitySize:]
	wire.PutUint64(cur, r.TimestampMs)
	cur = cur[8:]
	wire.PutUint32(cur, r.Nonce)
	cur = cur[4:]
	wire.PutUint64(cur, r.Slot)
	cur = cur[8:]
	wire.PutUint64(cur, r.Index)
	return RepairSize, nil
}

// BuildSignedRepair constructs and signs a repair request for (slot,
// index), addressed from sender to recipient at timestampMs.
func BuildSignedRepair(sender, recipient wire.Identity, timestampMs uint64, slot uint64, index uint64, sign func([]byte) wire.Signature) []byte {
	r := &RepairRequest{
		Sender:      sender,
		Recipient:   recipient,
		TimestampMs: timestampMs,
		Nonce:       uint32(timestampMs),
		Slot:        slot,
		Index:       index,
	}
	buf := make([]byte, RepairSize)
	r.Encode(buf)
	sig := sign(r.signableBytes(buf))
	copy(buf[4:4+wire.SignatureSize], sig[:])
	r.Signature = sig
	return buf
}

// DecodeRepairRequest reads a 160-byte RepairRequest from b.
func DecodeRepairRequest(b []byte) (*RepairRequest, error) {
	if len(b) < RepairSize {
		return nil, ErrInvalidRepair
	}
	typ, b, err := wire.ReadUint32(b)
	if err != nil || typ != RepairWindowIndexType {
		return nil, ErrInvalidRepair
	}
	r := &RepairRequest{}
	if r.Signature, b, err = wire.ReadSignature(b); err != nil {
		return nil, err
	}
	if r.Sender, b, err = wire.ReadIdentity(b); err != nil {
		return nil, err
	}
	if r.Recipient, b, err = wire.ReadIdentity(b); err != nil {
		return nil, err
	}
	if r.TimestampMs, b, err = wire.ReadUint64(b); err != nil {
		return nil, err
	}
	if r.Nonce, b, err = wire.ReadUint32(b); err != nil {
		return nil, err
	}
	if r.Slot, b, err = wire.ReadUint64(b); err != nil {
		return nil, err
	}
	if r.Index, _, err = wire.ReadUint64(b); err != nil {
		return nil, err
	}
	return r, nil
}
