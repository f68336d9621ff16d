/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package packetfabric provides the tiered batch packet I/O surface every
// other component in this module receives and sends through: a
// kernel-bypass backend when the platform and privileges allow it, an
// async batched-syscall backend as a middle tier, and a portable
// non-blocking datagram socket as the universal fallback. All three
// backends implement the same Fabric interface and batch semantics.
package packetfabric

import (
	"net"
	"time"
)

// MaxPacketSize is the default maximum payload size accepted by a
// PacketBuffer, matching the cluster's default MTU-derived shred/packet
// ceiling.
const MaxPacketSize = 1232

// Flags carried alongside a received packet's bytes.
type Flags uint8

const (
	FlagStaked    Flags = 1 << iota // source is a known staked validator
	FlagTracer                      // packet is part of a tracer-tx trace
	FlagDiscard                     // consumer has marked this packet for drop
	FlagForwarded                   // packet arrived via forwarding, not direct send
	FlagRepair                      // packet is shred-repair traffic
)

// PacketBuffer is the fabric's opaque unit of I/O: a byte payload plus the
// metadata every upstream consumer (gossip, shreds, transactions) needs.
// A PacketBuffer is owned by the batch that produced it and is only valid
// until that batch is cleared or reused.
type PacketBuffer struct {
	Bytes     [MaxPacketSize]byte
	Len       int
	SrcAddr   net.UDPAddr
	Timestamp time.Time
	Flags     Flags
}

// Data returns the valid payload slice of p.
func (p *PacketBuffer) Data() []byte { return p.Bytes[:p.Len] }

// Batch is a reusable slice of PacketBuffers. Backends recycle the
// underlying array across calls to avoid per-packet allocation on the hot
// receive path.
type Batch struct {
	bufs []PacketBuffer
}

// NewBatch preallocates a Batch able to hold up to cap PacketBuffers.
func NewBatch(cap int) *Batch {
	return &Batch{bufs: make([]PacketBuffer, cap)}
}

// Slots returns the full backing array so a backend can fill it in place.
func (b *Batch) Slots() []PacketBuffer { return b.bufs }

// Packets returns the first n filled packets of the batch.
func (b *Batch) Packets(n int) []PacketBuffer {
	if n > len(b.bufs) {
		n = len(b.bufs)
	}
	return b.bufs[:n]
}
