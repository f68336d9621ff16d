/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrUnknownSuite is returned when a Suite value outside the two supported
// cipher suites is requested.
var ErrUnknownSuite = errors.New("quic: unknown cipher suite")

// Suite identifies one of the two QUIC v1 AEAD cipher suites.
type Suite int

const (
	SuiteAES128GCM Suite = iota
	SuiteChaCha20Poly1305
)

// PacketAEAD seals and opens QUIC packet payloads. The nonce for packet
// number pn is the 12-byte IV with pn XORed into its low 8 bytes,
// right-aligned big-endian, per RFC 9001 §5.3.
type PacketAEAD struct {
	aead cipher.AEAD
	iv   [12]byte
}

// NewPacketAEAD constructs the AEAD for one direction of one encryption
// level from its derived key and IV.
func NewPacketAEAD(suite Suite, keys DirectionalKeys) (*PacketAEAD, error) {
	var a cipher.AEAD
	var err error
	switch suite {
	case SuiteAES128GCM:
		block, e := aes.NewCipher(keys.Key[:])
		if e != nil {
			return nil, e
		}
		a, err = cipher.NewGCM(block)
	case SuiteChaCha20Poly1305:
		// The key schedule's "quic key" label yields a 16-byte key;
		// ChaCha20-Poly1305 takes 32. Stretch with a domain-separated hash.
		a, err = chacha20poly1305.New(chachaKey(keys.Key))
	default:
		return nil, ErrUnknownSuite
	}
	if err != nil {
		return nil, err
	}
	return &PacketAEAD{aead: a, iv: keys.IV}, nil
}

func (p *PacketAEAD) nonce(pn uint64) []byte {
	n := p.iv
	n[4] ^= byte(pn >> 56)
	n[5] ^= byte(pn >> 48)
	n[6] ^= byte(pn >> 40)
	n[7] ^= byte(pn >> 32)
	n[8] ^= byte(pn >> 24)
	n[9] ^= byte(pn >> 16)
	n[10] ^= byte(pn >> 8)
	n[11] ^= byte(pn)
	out := make([]byte, 12)
	copy(out, n[:])
	return out
}

// Seal encrypts plaintext in place against the packet's unprotected header
// as associated data, appending the authentication tag.
func (p *PacketAEAD) Seal(pn uint64, header, plaintext []byte) []byte {
	return p.aead.Seal(plaintext[:0], p.nonce(pn), plaintext, header)
}

// Open authenticates and decrypts ciphertext, returning the plaintext.
func (p *PacketAEAD) Open(pn uint64, header, ciphertext []byte) ([]byte, error) {
	return p.aead.Open(ciphertext[:0], p.nonce(pn), ciphertext, header)
}

// Overhead is the AEAD authentication tag length in bytes.
func (p *PacketAEAD) Overhead() int { return p.aead.Overhead() }

func chachaKey(key16 [16]byte) []byte {
	sum := sha256.Sum256(append([]byte("quic chacha20 key"), key16[:]...))
	return sum[:]
}
