/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

// Bloom is the gossip wire form of a Bloom filter: a set of hash seeds
// ("keys"), an optional bit vector, and a running count of set bits.
type Bloom struct {
	Keys       []uint64
	HasBits    bool
	Bits       []uint64 // only meaningful when HasBits
	NumBitsSet uint64
}

// AcceptAllBloom returns the "accept everything" Bloom used by a light
// gossip member's pull requests: three fixed keys, a single zeroed word,
// and no bits set.
func AcceptAllBloom() Bloom {
	return Bloom{
		Keys:       []uint64{0x1, 0x2, 0x3},
		HasBits:    true,
		Bits:       []uint64{0},
		NumBitsSet: 0,
	}
}

// Len returns the exact serialized length of bf.
func (bf Bloom) Len() int {
	n := 8 + 8*len(bf.Keys) + 1
	if bf.HasBits {
		n += 8 + 8*len(bf.Bits) + 8
	} else {
		n += 8
	}
	n += 8
	return n
}

// Encode writes bf's wire form to dst.
func (bf Bloom) Encode(dst []byte) (int, error) {
	need := bf.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	cur := dst
	PutUint64(cur, uint64(len(bf.Keys)))
	cur = cur[8:]
	for _, k := range bf.Keys {
		PutUint64(cur, k)
		cur = cur[8:]
	}
	if bf.HasBits {
		cur[0] = 1
		cur = cur[1:]
		PutUint64(cur, uint64(len(bf.Bits)))
		cur = cur[8:]
		for _, w := range bf.Bits {
			PutUint64(cur, w)
			cur = cur[8:]
		}
		PutUint64(cur, uint64(len(bf.Bits))*64)
		cur = cur[8:]
	} else {
		cur[0] = 0
		cur = cur[1:]
		PutUint64(cur, 0)
		cur = cur[8:]
	}
	PutUint64(cur, bf.NumBitsSet)
	return need, nil
}

// DecodeBloom reads a Bloom filter from the front of b.
func DecodeBloom(b []byte) (Bloom, []byte, error) {
	var bf Bloom
	keyLen, b, err := ReadUint64(b)
	if err != nil {
		return Bloom{}, nil, err
	}
	if keyLen > uint64(len(b)/8) {
		return Bloom{}, nil, ErrInvalidData
	}
	bf.Keys = make([]uint64, keyLen)
	for i := range bf.Keys {
		bf.Keys[i], b, err = ReadUint64(b)
		if err != nil {
			return Bloom{}, nil, err
		}
	}
	if len(b) < 1 {
		return Bloom{}, nil, ErrInvalidData
	}
	hasBits := b[0]
	b = b[1:]
	switch hasBits {
	case 0:
		if _, b, err = ReadUint64(b); err != nil {
			return Bloom{}, nil, err
		}
	case 1:
		bf.HasBits = true
		var capWords uint64
		if capWords, b, err = ReadUint64(b); err != nil {
			return Bloom{}, nil, err
		}
		if capWords > uint64(len(b)/8) {
			return Bloom{}, nil, ErrInvalidData
		}
		bf.Bits = make([]uint64, capWords)
		for i := range bf.Bits {
			bf.Bits[i], b, err = ReadUint64(b)
			if err != nil {
				return Bloom{}, nil, err
			}
		}
		if _, b, err = ReadUint64(b); err != nil { // bit count, informational
			return Bloom{}, nil, err
		}
	default:
		return Bloom{}, nil, ErrInvalidData
	}
	if bf.NumBitsSet, b, err = ReadUint64(b); err != nil {
		return Bloom{}, nil, err
	}
	return bf, b, nil
}

// CrdsFilter summarizes the keys a pull requester already has.
type CrdsFilter struct {
	Bloom    Bloom
	Mask     uint64
	MaskBits uint32
}

// AcceptAllCrdsFilter returns the filter that matches every CRDS key: an
// accept-all Bloom, an all-ones mask, and zero mask bits.
func AcceptAllCrdsFilter() CrdsFilter {
	return CrdsFilter{
		Bloom:    AcceptAllBloom(),
		Mask:     ^uint64(0),
		MaskBits: 0,
	}
}

// Len returns the exact serialized length of cf.
func (cf CrdsFilter) Len() int {
	return cf.Bloom.Len() + 8 + 4
}

// Encode writes cf's wire form to dst.
func (cf CrdsFilter) Encode(dst []byte) (int, error) {
	need := cf.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	n, err := cf.Bloom.Encode(dst)
	if err != nil {
		return 0, err
	}
	cur := dst[n:]
	PutUint64(cur, cf.Mask)
	cur = cur[8:]
	PutUint32(cur, cf.MaskBits)
	return need, nil
}

// DecodeCrdsFilter reads a CrdsFilter from the front of b and returns the
// exact number of bytes consumed alongside the remainder.
func DecodeCrdsFilter(b []byte) (CrdsFilter, []byte, error) {
	bf, b, err := DecodeBloom(b)
	if err != nil {
		return CrdsFilter{}, nil, err
	}
	mask, b, err := ReadUint64(b)
	if err != nil {
		return CrdsFilter{}, nil, err
	}
	maskBits, b, err := ReadUint32(b)
	if err != nil {
		return CrdsFilter{}, nil, err
	}
	return CrdsFilter{Bloom: bf, Mask: mask, MaskBits: maskBits}, b, nil
}
