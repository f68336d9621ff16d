/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import "encoding/binary"

const (
	IdentitySize  = 32
	SignatureSize = 64
	HashSize      = 32
)

// Identity is a 32-byte Ed25519 public key, fixed-width, no length prefix.
type Identity [IdentitySize]byte

// Signature is a 64-byte Ed25519 signature, fixed-width, no length prefix.
type Signature [SignatureSize]byte

// Hash is a 32-byte digest, fixed-width, no length prefix.
type Hash [HashSize]byte

// PutUint16 writes v little-endian into b[0:2]. Caller must ensure len(b) >= 2.
func PutUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// PutUint32 writes v little-endian into b[0:4]. Caller must ensure len(b) >= 4.
func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// PutUint64 writes v little-endian into b[0:8]. Caller must ensure len(b) >= 8.
func PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// ReadUint16 reads a little-endian u16 from the front of b.
func ReadUint16(b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, nil, ErrInvalidData
	}
	return binary.LittleEndian.Uint16(b), b[2:], nil
}

// ReadUint32 reads a little-endian u32 from the front of b.
func ReadUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrInvalidData
	}
	return binary.LittleEndian.Uint32(b), b[4:], nil
}

// ReadUint64 reads a little-endian u64 from the front of b.
func ReadUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, ErrInvalidData
	}
	return binary.LittleEndian.Uint64(b), b[8:], nil
}

// WriteFixed writes a fixed-width field and returns the remaining buffer.
func WriteFixed(dst []byte, v []byte) ([]byte, error) {
	if len(dst) < len(v) {
		return nil, ErrBufferTooSmall
	}
	copy(dst, v)
	return dst[len(v):], nil
}

// ReadFixed reads exactly n bytes from the front of b.
func ReadFixed(b []byte, n int) ([]byte, []byte, error) {
	if len(b) < n {
		return nil, nil, ErrInvalidData
	}
	return b[:n], b[n:], nil
}

// ReadIdentity reads a 32-byte Identity from the front of b.
func ReadIdentity(b []byte) (id Identity, rest []byte, err error) {
	var f []byte
	if f, rest, err = ReadFixed(b, IdentitySize); err != nil {
		return
	}
	copy(id[:], f)
	return
}

// ReadSignature reads a 64-byte Signature from the front of b.
func ReadSignature(b []byte) (sig Signature, rest []byte, err error) {
	var f []byte
	if f, rest, err = ReadFixed(b, SignatureSize); err != nil {
		return
	}
	copy(sig[:], f)
	return
}

// ReadHash reads a 32-byte Hash from the front of b.
func ReadHash(b []byte) (h Hash, rest []byte, err error) {
	var f []byte
	if f, rest, err = ReadFixed(b, HashSize); err != nil {
		return
	}
	copy(h[:], f)
	return
}

// ReadVecLen reads the u64 length prefix used by bincode vectors (everywhere
// except the contact-info compact-u16 counted lists).
func ReadVecLen(b []byte) (uint64, []byte, error) {
	return ReadUint64(b)
}

// PutCompactU16 encodes v using the 1/2/3-byte compact-u16 scheme and
// returns the number of bytes written, or an error if dst is too small.
//
//	1 byte  if v <  0x80
//	2 bytes if v <  0x4000, high bit of byte 0 set
//	3 bytes otherwise, high bits of byte 0 and byte 1 set
func PutCompactU16(dst []byte, v uint16) (int, error) {
	switch {
	case v < 0x80:
		if len(dst) < 1 {
			return 0, ErrBufferTooSmall
		}
		dst[0] = byte(v)
		return 1, nil
	case v < 0x4000:
		if len(dst) < 2 {
			return 0, ErrBufferTooSmall
		}
		dst[0] = byte(v&0x7F) | 0x80
		dst[1] = byte(v >> 7)
		return 2, nil
	default:
		if len(dst) < 3 {
			return 0, ErrBufferTooSmall
		}
		dst[0] = byte(v&0x7F) | 0x80
		dst[1] = byte((v>>7)&0x7F) | 0x80
		dst[2] = byte(v >> 14)
		return 3, nil
	}
}

// CompactU16Len returns the number of bytes PutCompactU16 would emit for v.
func CompactU16Len(v uint16) int {
	switch {
	case v < 0x80:
		return 1
	case v < 0x4000:
		return 2
	default:
		return 3
	}
}

// ReadCompactU16 decodes the 1/2/3-byte compact-u16 scheme from the front of b.
func ReadCompactU16(b []byte) (uint16, []byte, error) {
	if len(b) < 1 {
		return 0, nil, ErrInvalidData
	}
	b0 := b[0]
	if b0&0x80 == 0 {
		return uint16(b0), b[1:], nil
	}
	if len(b) < 2 {
		return 0, nil, ErrInvalidData
	}
	b1 := b[1]
	if b1&0x80 == 0 {
		v := uint16(b0&0x7F) | uint16(b1)<<7
		return v, b[2:], nil
	}
	if len(b) < 3 {
		return 0, nil, ErrInvalidData
	}
	b2 := b[2]
	if b2 > 3 {
		return 0, nil, ErrVarIntOverflow
	}
	v := uint16(b0&0x7F) | uint16(b1&0x7F)<<7 | uint16(b2)<<14
	return v, b[3:], nil
}

// PutVarint encodes v as a standard 7-bit LEB128 varint and returns the
// number of bytes written.
func PutVarint(dst []byte, v uint64) (int, error) {
	n := 0
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if n >= len(dst) {
			return 0, ErrBufferTooSmall
		}
		dst[n] = b
		n++
		if v == 0 {
			break
		}
	}
	return n, nil
}

// VarintLen returns the number of bytes PutVarint would emit for v.
func VarintLen(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// ReadVarint decodes a standard 7-bit LEB128 varint from the front of b.
// Varints wider than 64 bits (an eleventh byte, or a tenth byte above 1)
// are rejected with ErrVarIntOverflow.
func ReadVarint(b []byte) (uint64, []byte, error) {
	var v uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= len(b) {
			return 0, nil, ErrInvalidData
		}
		if i >= 10 {
			return 0, nil, ErrVarIntOverflow
		}
		c := b[i]
		if shift == 63 && c > 1 {
			return 0, nil, ErrVarIntOverflow
		}
		v |= uint64(c&0x7F) << shift
		if c&0x80 == 0 {
			return v, b[i+1:], nil
		}
		shift += 7
	}
}

// ReadBytesVec reads a u64-length-prefixed byte vector.
func ReadBytesVec(b []byte) ([]byte, []byte, error) {
	n, rest, err := ReadVecLen(b)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest)) {
		return nil, nil, ErrInvalidData
	}
	return rest[:n], rest[n:], nil
}
