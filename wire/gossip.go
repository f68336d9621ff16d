/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import "crypto/sha256"

// Outer gossip message tags.
const (
	TagPullRequest  uint32 = 0
	TagPullResponse uint32 = 1
	TagPush         uint32 = 2
	TagPrune        uint32 = 3
	TagPing         uint32 = 4
	TagPong         uint32 = 5
)

const pingPongSalt = "SOLANA_PING_PONG"

// PingSize and PongSize are the fixed wire lengths of Ping and Pong
// messages: tag(4) + identity(32) + token/hash(32) + signature(64).
const (
	PingSize = 4 + IdentitySize + 32 + SignatureSize
	PongSize = PingSize
)

// Ping is a signed liveness probe: outer tag, originator identity, a random
// 32-byte token, and a signature over the token alone.
type Ping struct {
	Originator Identity
	Token      [32]byte
	Signature  Signature
}

// PingSignableBytes returns the bytes a ping's signature covers: the
// 32-byte token alone (the originator identity is not part of the signed
// input).
func PingSignableBytes(token [32]byte) []byte {
	b := make([]byte, 32)
	copy(b, token[:])
	return b
}

// Encode writes p's 132-byte wire form to dst.
func (p *Ping) Encode(dst []byte) (int, error) {
	if len(dst) < PingSize {
		return 0, ErrBufferTooSmall
	}
	PutUint32(dst, TagPing)
	cur := dst[4:]
	copy(cur, p.Originator[:])
	cur = cur[IdentitySize:]
	copy(cur, p.Token[:])
	cur = cur[32:]
	copy(cur, p.Signature[:])
	return PingSize, nil
}

// DecodePing reads a 132-byte Ping from b, including its leading tag.
func DecodePing(b []byte) (*Ping, error) {
	if len(b) < PingSize {
		return nil, ErrInvalidData
	}
	tag, b, err := ReadUint32(b)
	if err != nil {
		return nil, err
	}
	if tag != TagPing {
		return nil, ErrInvalidEnumTag
	}
	p := &Ping{}
	if p.Originator, b, err = ReadIdentity(b); err != nil {
		return nil, err
	}
	var tok []byte
	if tok, b, err = ReadFixed(b, 32); err != nil {
		return nil, err
	}
	copy(p.Token[:], tok)
	if p.Signature, _, err = ReadSignature(b); err != nil {
		return nil, err
	}
	return p, nil
}

// Pong answers a Ping: outer tag, originator identity, the SHA-256 hash of
// "SOLANA_PING_PONG" concatenated with the ping token, and a signature over
// that hash.
type Pong struct {
	Originator Identity
	Hash       Hash
	Signature  Signature
}

// PongHash computes SHA-256("SOLANA_PING_PONG" || token).
func PongHash(token [32]byte) Hash {
	h := sha256.New()
	h.Write([]byte(pingPongSalt))
	h.Write(token[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// PongSignableBytes returns the bytes a pong's signature covers: the
// ping-pong hash.
func PongSignableBytes(h Hash) []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Encode writes pg's 132-byte wire form to dst.
func (pg *Pong) Encode(dst []byte) (int, error) {
	if len(dst) < PongSize {
		return 0, ErrBufferTooSmall
	}
	PutUint32(dst, TagPong)
	cur := dst[4:]
	copy(cur, pg.Originator[:])
	cur = cur[IdentitySize:]
	copy(cur, pg.Hash[:])
	cur = cur[HashSize:]
	copy(cur, pg.Signature[:])
	return PongSize, nil
}

// DecodePong reads a 132-byte Pong from b, including its leading tag.
func DecodePong(b []byte) (*Pong, error) {
	if len(b) < PongSize {
		return nil, ErrInvalidData
	}
	tag, b, err := ReadUint32(b)
	if err != nil {
		return nil, err
	}
	if tag != TagPong {
		return nil, ErrInvalidEnumTag
	}
	pg := &Pong{}
	if pg.Originator, b, err = ReadIdentity(b); err != nil {
		return nil, err
	}
	if pg.Hash, b, err = ReadHash(b); err != nil {
		return nil, err
	}
	if pg.Signature, _, err = ReadSignature(b); err != nil {
		return nil, err
	}
	return pg, nil
}

// PullRequest is tag=0 followed by a CrdsFilter and a signed CrdsValue
// carrying the requester's own contact info.
type PullRequest struct {
	Filter CrdsFilter
	Value  CrdsValue
}

// Len returns the exact serialized length of pr.
func (pr *PullRequest) Len() int { return 4 + pr.Filter.Len() + pr.Value.Len() }

// Encode writes pr's wire form to dst.
func (pr *PullRequest) Encode(dst []byte) (int, error) {
	need := pr.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	PutUint32(dst, TagPullRequest)
	cur := dst[4:]
	n, err := pr.Filter.Encode(cur)
	if err != nil {
		return 0, err
	}
	cur = cur[n:]
	if _, err := pr.Value.Encode(cur); err != nil {
		return 0, err
	}
	return need, nil
}

// crdsValueVec is the shared tag+sender+u64-length-prefixed CrdsValue
// vector layout used by Push and PullResponse.
type crdsValueVec struct {
	Tag    uint32
	Sender Identity
	Values []*CrdsValue
}

func (v *crdsValueVec) len() int {
	n := 4 + IdentitySize + 8
	for _, cv := range v.Values {
		n += cv.Len()
	}
	return n
}

func (v *crdsValueVec) encode(dst []byte) (int, error) {
	need := v.len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	PutUint32(dst, v.Tag)
	cur := dst[4:]
	copy(cur, v.Sender[:])
	cur = cur[IdentitySize:]
	PutUint64(cur, uint64(len(v.Values)))
	cur = cur[8:]
	for _, cv := range v.Values {
		n, err := cv.Encode(cur)
		if err != nil {
			return 0, err
		}
		cur = cur[n:]
	}
	return need, nil
}

func decodeCrdsValueVec(b []byte, wantTag uint32) (*crdsValueVec, error) {
	tag, b, err := ReadUint32(b)
	if err != nil {
		return nil, err
	}
	if tag != wantTag {
		return nil, ErrInvalidEnumTag
	}
	v := &crdsValueVec{Tag: tag}
	if v.Sender, b, err = ReadIdentity(b); err != nil {
		return nil, err
	}
	var count uint64
	if count, b, err = ReadVecLen(b); err != nil {
		return nil, err
	}
	v.Values = make([]*CrdsValue, 0, count)
	for i := uint64(0); i < count; i++ {
		cv, n, err := DecodeCrdsValue(b)
		if err != nil {
			return nil, err
		}
		v.Values = append(v.Values, cv)
		b = b[n:]
	}
	return v, nil
}

// Push is tag=2, sender identity, a u64-length-prefixed CrdsValue vector.
type Push struct {
	Sender Identity
	Values []*CrdsValue
}

// Len returns the exact serialized length of p.
func (p *Push) Len() int { return (&crdsValueVec{Sender: p.Sender, Values: p.Values}).len() }

// Encode writes p's wire form to dst.
func (p *Push) Encode(dst []byte) (int, error) {
	return (&crdsValueVec{Tag: TagPush, Sender: p.Sender, Values: p.Values}).encode(dst)
}

// DecodePush reads a Push message from b, including its leading tag.
func DecodePush(b []byte) (*Push, error) {
	v, err := decodeCrdsValueVec(b, TagPush)
	if err != nil {
		return nil, err
	}
	return &Push{Sender: v.Sender, Values: v.Values}, nil
}

// PullResponse is tag=1, sender identity, a u64-length-prefixed CrdsValue
// vector.
type PullResponse struct {
	Sender Identity
	Values []*CrdsValue
}

// Len returns the exact serialized length of p.
func (p *PullResponse) Len() int { return (&crdsValueVec{Sender: p.Sender, Values: p.Values}).len() }

// Encode writes p's wire form to dst.
func (p *PullResponse) Encode(dst []byte) (int, error) {
	return (&crdsValueVec{Tag: TagPullResponse, Sender: p.Sender, Values: p.Values}).encode(dst)
}

// DecodePullResponse reads a PullResponse message from b, including its
// leading tag.
func DecodePullResponse(b []byte) (*PullResponse, error) {
	v, err := decodeCrdsValueVec(b, TagPullResponse)
	if err != nil {
		return nil, err
	}
	return &PullResponse{Sender: v.Sender, Values: v.Values}, nil
}

// PeekOuterTag reads the 4-byte little-endian outer message tag without
// consuming the buffer, the first step of gossip message dispatch.
func PeekOuterTag(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrInvalidData
	}
	tag, _, err := ReadUint32(b)
	return tag, err
}
