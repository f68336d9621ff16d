/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

// CRDS value variant discriminants, recognized 0..13 per the cluster's
// replicated record set.
const (
	CrdsLegacyContactInfo         uint32 = 0
	CrdsVote                      uint32 = 1
	CrdsLowestSlot                uint32 = 2
	CrdsLegacySnapshotHashes      uint32 = 3
	CrdsAccountsHashes            uint32 = 4
	CrdsEpochSlots                uint32 = 5
	CrdsLegacyVersion             uint32 = 6
	CrdsVersion                   uint32 = 7
	CrdsNodeInstance              uint32 = 8
	CrdsDuplicateShred            uint32 = 9
	CrdsSnapshotHashes            uint32 = 10
	CrdsContactInfo               uint32 = 11
	CrdsRestartLastVotedForkSlots uint32 = 12
	CrdsRestartHeaviestFork       uint32 = 13
)

// opaqueVariant is the encoding used for every recognized CRDS variant this
// core does not need to decode structurally: a wallclock (varint) followed
// by a u64-length-prefixed opaque payload blob. It keeps per-variant length
// computation exact (never approximated) without requiring this core to
// know the full internal layout of every variant (vote contents, epoch
// slot bitmaps, and so on) — those are none of this core's business, it
// only needs wallclock and the ability to skip the value.
type opaqueVariant struct {
	WallclockMs uint64
	Payload     []byte
}

func (v opaqueVariant) Len() int {
	return VarintLen(v.WallclockMs) + 8 + len(v.Payload)
}

func (v opaqueVariant) Encode(dst []byte) (int, error) {
	need := v.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	n, err := PutVarint(dst, v.WallclockMs)
	if err != nil {
		return 0, err
	}
	cur := dst[n:]
	PutUint64(cur, uint64(len(v.Payload)))
	cur = cur[8:]
	copy(cur, v.Payload)
	return need, nil
}

func decodeOpaqueVariant(b []byte) (opaqueVariant, int, error) {
	orig := b
	wc, b, err := ReadVarint(b)
	if err != nil {
		return opaqueVariant{}, 0, err
	}
	payload, b, err := ReadBytesVec(b)
	if err != nil {
		return opaqueVariant{}, 0, err
	}
	return opaqueVariant{WallclockMs: wc, Payload: payload}, len(orig) - len(b), nil
}

// CrdsValuePayload is the common interface every CRDS variant arm
// implements: a uniform wallclock accessor, its variant tag, and
// exact-length serialization (decoding is done by DecodeCrdsValue).
type CrdsValuePayload interface {
	Wallclock() uint64
	VariantTag() uint32
	Encode(dst []byte) (int, error)
	Len() int
}

type legacyContactPayload struct{ *LegacyContactInfo }

func (p legacyContactPayload) Wallclock() uint64  { return p.WallclockMs }
func (p legacyContactPayload) VariantTag() uint32 { return CrdsLegacyContactInfo }

// Unwrap returns the wrapped LegacyContactInfo, letting callers that hold
// a CrdsValuePayload interface recover the concrete record without a type
// switch on an unexported type.
func (p legacyContactPayload) Unwrap() *LegacyContactInfo { return p.LegacyContactInfo }

type contactInfoPayload struct{ *ContactInfo }

func (p contactInfoPayload) Wallclock() uint64  { return p.WallclockMs }
func (p contactInfoPayload) VariantTag() uint32 { return CrdsContactInfo }

// Unwrap returns the wrapped ContactInfo.
func (p contactInfoPayload) Unwrap() *ContactInfo { return p.ContactInfo }

// LegacyContactUnwrapper is implemented by any CrdsValuePayload carrying a
// legacy contact info record.
type LegacyContactUnwrapper interface {
	Unwrap() *LegacyContactInfo
}

// ContactUnwrapper is implemented by any CrdsValuePayload carrying a
// modern contact info record.
type ContactUnwrapper interface {
	Unwrap() *ContactInfo
}

type genericPayload struct {
	tag uint32
	opaqueVariant
}

func (p genericPayload) Wallclock() uint64  { return p.WallclockMs }
func (p genericPayload) VariantTag() uint32 { return p.tag }

// NewLegacyContactPayload wraps a LegacyContactInfo as a CRDS value arm.
func NewLegacyContactPayload(ci *LegacyContactInfo) CrdsValuePayload {
	return legacyContactPayload{ci}
}

// NewContactInfoPayload wraps a modern ContactInfo as a CRDS value arm.
func NewContactInfoPayload(ci *ContactInfo) CrdsValuePayload {
	return contactInfoPayload{ci}
}

// NewGenericPayload builds an opaque CRDS value arm for any of the other
// recognized variants this core does not decode structurally.
func NewGenericPayload(tag uint32, wallclockMs uint64, payload []byte) (CrdsValuePayload, error) {
	switch tag {
	case CrdsLegacyContactInfo, CrdsContactInfo:
		return nil, ErrInvalidEnumTag
	}
	if tag > CrdsRestartHeaviestFork {
		return nil, ErrInvalidEnumTag
	}
	return genericPayload{tag: tag, opaqueVariant: opaqueVariant{WallclockMs: wallclockMs, Payload: payload}}, nil
}

// CrdsValue is the signed envelope carried in pull responses and pushes:
// a 64-byte signature, a 4-byte variant tag, and the variant payload.
type CrdsValue struct {
	Signature Signature
	Payload   CrdsValuePayload
}

// SignableBytes returns the 4-byte variant tag followed by the serialized
// payload — the bytes the originator signs for a CRDS value.
func (cv *CrdsValue) SignableBytes() ([]byte, error) {
	buf := make([]byte, 4+cv.Payload.Len())
	PutUint32(buf, cv.Payload.VariantTag())
	if _, err := cv.Payload.Encode(buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// Len returns the exact serialized length of cv.
func (cv *CrdsValue) Len() int {
	return SignatureSize + 4 + cv.Payload.Len()
}

// Encode writes cv's wire form (signature, variant tag, payload) to dst.
func (cv *CrdsValue) Encode(dst []byte) (int, error) {
	need := cv.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	cur := dst
	if _, err := WriteFixed(cur, cv.Signature[:]); err != nil {
		return 0, err
	}
	cur = cur[SignatureSize:]
	PutUint32(cur, cv.Payload.VariantTag())
	cur = cur[4:]
	if _, err := cv.Payload.Encode(cur); err != nil {
		return 0, err
	}
	return need, nil
}

// DecodeCrdsValue reads one CrdsValue from the front of b: 64-byte
// signature, 4-byte variant tag, then the variant's own exact-length
// payload. It returns the exact number of bytes consumed so the caller
// (gossip push/pull-response parsing) can advance without desync, even for
// variants it does not decode structurally.
func DecodeCrdsValue(b []byte) (*CrdsValue, int, error) {
	orig := b
	sig, b, err := ReadSignature(b)
	if err != nil {
		return nil, 0, err
	}
	tag, b, err := ReadUint32(b)
	if err != nil {
		return nil, 0, err
	}
	var payload CrdsValuePayload
	switch tag {
	case CrdsLegacyContactInfo:
		ci, _, err := DecodeLegacyContactInfo(b)
		if err != nil {
			return nil, 0, err
		}
		payload = legacyContactPayload{ci}
		b = b[ci.Len():]
	case CrdsContactInfo:
		ci, n, err := DecodeContactInfo(b)
		if err != nil {
			return nil, 0, err
		}
		payload = contactInfoPayload{ci}
		b = b[n:]
	default:
		if tag > CrdsRestartHeaviestFork {
			return nil, 0, ErrInvalidEnumTag
		}
		ov, n, err := decodeOpaqueVariant(b)
		if err != nil {
			return nil, 0, err
		}
		payload = genericPayload{tag: tag, opaqueVariant: ov}
		b = b[n:]
	}
	return &CrdsValue{Signature: sig, Payload: payload}, len(orig) - len(b), nil
}
