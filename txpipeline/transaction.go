/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package txpipeline implements the transaction ingestion pipeline:
// parsing, signature verification, compute-budget priority scoring, a
// bounded priority queue, deduplication, and forwarding to the current
// slot leader's TPU address.
package txpipeline

import (
	"crypto/ed25519"
	"errors"

	"github.com/vexor-validator/vexor/wire"
)

// ErrInvalidData is returned when a transaction's wire form is malformed.
var ErrInvalidData = errors.New("txpipeline: invalid transaction data")

// ComputeBudgetProgramID is this core's identifier for the compute-budget
// program. It is not derived from a base58-decoded cluster constant (no
// base58 decoder is wired into this module); callers that need the real
// cluster program id should replace this value at startup via
// SetComputeBudgetProgramID.
var ComputeBudgetProgramID wire.Identity

func init() {
	ComputeBudgetProgramID[31] = 0x03
}

// SetComputeBudgetProgramID overrides the program id priority scoring
// matches against.
func SetComputeBudgetProgramID(id wire.Identity) { ComputeBudgetProgramID = id }

// setComputeUnitPriceDiscriminant is the first byte of a compute-budget
// instruction's data for the SetComputeUnitPrice variant.
const setComputeUnitPriceDiscriminant = 3

// Instruction is one parsed message instruction: an index into the
// message's account key table identifying its program, the account
// indices it touches, and its opaque data.
type Instruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// Message is a parsed legacy transaction message.
type Message struct {
	NumRequiredSignatures uint8
	NumReadonlySigned     uint8
	NumReadonlyUnsigned   uint8
	AccountKeys           []wire.Identity
	RecentBlockhash       wire.Hash
	Instructions          []Instruction

	raw []byte // the exact bytes signed over
}

// Transaction is a parsed transaction: its signatures and message.
type Transaction struct {
	Signatures []wire.Signature
	Message    Message
	raw        []byte
}

// FeePayer returns the transaction's first account key, the fee payer by
// convention.
func (tx *Transaction) FeePayer() wire.Identity {
	if len(tx.Message.AccountKeys) == 0 {
		return wire.Identity{}
	}
	return tx.Message.AccountKeys[0]
}

// FirstSignature returns the transaction's first signature, used as its
// dedup key.
func (tx *Transaction) FirstSignature() wire.Signature {
	if len(tx.Signatures) == 0 {
		return wire.Signature{}
	}
	return tx.Signatures[0]
}

// Parse reads a Transaction from the front of b: a compact-u16-prefixed
// signature array, then a legacy message (header, compact account key
// array, recent blockhash, compact instruction array).
func Parse(b []byte) (*Transaction, error) {
	orig := b
	sigCount, b, err := wire.ReadCompactU16(b)
	if err != nil {
		return nil, ErrInvalidData
	}
	tx := &Transaction{Signatures: make([]wire.Signature, sigCount)}
	for i := range tx.Signatures {
		var sig wire.Signature
		if sig, b, err = wire.ReadSignature(b); err != nil {
			return nil, ErrInvalidData
		}
		tx.Signatures[i] = sig
	}

	msgStart := b
	if len(b) < 3 {
		return nil, ErrInvalidData
	}
	msg := Message{
		NumRequiredSignatures: b[0],
		NumReadonlySigned:     b[1],
		NumReadonlyUnsigned:   b[2],
	}
	b = b[3:]

	keyCount, b, err := wire.ReadCompactU16(b)
	if err != nil {
		return nil, ErrInvalidData
	}
	msg.AccountKeys = make([]wire.Identity, keyCount)
	for i := range msg.AccountKeys {
		if msg.AccountKeys[i], b, err = wire.ReadIdentity(b); err != nil {
			return nil, ErrInvalidData
		}
	}

	if msg.RecentBlockhash, b, err = wire.ReadHash(b); err != nil {
		return nil, ErrInvalidData
	}

	instrCount, b, err := wire.ReadCompactU16(b)
	if err != nil {
		return nil, ErrInvalidData
	}
	msg.Instructions = make([]Instruction, instrCount)
	for i := range msg.Instructions {
		if len(b) < 1 {
			return nil, ErrInvalidData
		}
		programIdx := b[0]
		b = b[1:]
		accCount, rest, err := wire.ReadCompactU16(b)
		if err != nil {
			return nil, ErrInvalidData
		}
		b = rest
		if len(b) < int(accCount) {
			return nil, ErrInvalidData
		}
		accIdx := append([]uint8{}, b[:accCount]...)
		b = b[accCount:]

		dataLen, rest2, err := wire.ReadCompactU16(b)
		if err != nil {
			return nil, ErrInvalidData
		}
		b = rest2
		if len(b) < int(dataLen) {
			return nil, ErrInvalidData
		}
		data := append([]byte{}, b[:dataLen]...)
		b = b[dataLen:]

		msg.Instructions[i] = Instruction{ProgramIDIndex: programIdx, AccountIndices: accIdx, Data: data}
	}

	msg.raw = msgStart[:len(msgStart)-len(b)]
	tx.Message = msg
	tx.raw = orig[:len(orig)-len(b)]
	return tx, nil
}

// VerifySignatures checks that every signature validates against the
// message's signed bytes and the corresponding account key, in order.
// It requires at least NumRequiredSignatures signatures and account keys.
func (tx *Transaction) VerifySignatures() bool {
	n := int(tx.Message.NumRequiredSignatures)
	if len(tx.Signatures) < n || len(tx.Message.AccountKeys) < n {
		return false
	}
	for i := 0; i < n; i++ {
		pub := ed25519.PublicKey(tx.Message.AccountKeys[i][:])
		if !ed25519.Verify(pub, tx.Message.raw, tx.Signatures[i][:]) {
			return false
		}
	}
	return true
}

// PriorityScore scans the message's instructions for a compute-budget
// SetComputeUnitPrice instruction and returns its micro-lamport price, or
// 0 if none is present.
func (tx *Transaction) PriorityScore() uint64 {
	for _, instr := range tx.Message.Instructions {
		if int(instr.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			continue
		}
		if tx.Message.AccountKeys[instr.ProgramIDIndex] != ComputeBudgetProgramID {
			continue
		}
		if len(instr.Data) < 9 || instr.Data[0] != setComputeUnitPriceDiscriminant {
			continue
		}
		v, _, err := wire.ReadUint64(instr.Data[1:9])
		if err != nil {
			continue
		}
		return v
	}
	return 0
}
