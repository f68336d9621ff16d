/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wire implements the cluster's bincode-compatible binary codec:
// fixed-width little-endian integers, Solana compact-u16 and varint
// encodings, and the composite gossip record layouts built on top of them.
// Every exported decode function performs exhaustive bounds checks and
// every encode function refuses to write past the end of its destination.
package wire

import "errors"

var (
	// ErrInvalidData is returned when a deserialize call is handed a
	// buffer too short to hold the field being read, or a field whose
	// contents are structurally malformed.
	ErrInvalidData = errors.New("wire: invalid data")

	// ErrInvalidEnumTag is returned when a discriminant byte or u32
	// does not correspond to a recognized variant.
	ErrInvalidEnumTag = errors.New("wire: invalid enum tag")

	// ErrVarIntOverflow is returned when a varint or compact-u16 would
	// decode to a value wider than the field allows.
	ErrVarIntOverflow = errors.New("wire: varint overflow")

	// ErrBufferTooSmall is returned when a serialize call is handed a
	// destination slice that cannot hold the encoded result.
	ErrBufferTooSmall = errors.New("wire: buffer too small")
)
