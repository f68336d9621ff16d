/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package quic implements the wire-level pieces of a QUIC v1 transport used
// for validator-to-validator shred and repair delivery: the TLS 1.3 key
// schedule, packet AEAD and header protection, a minimal server handshake
// state machine, RFC 9002 loss detection, NewReno congestion control, 0-RTT
// session resumption and path migration.
package quic

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// initialSaltV1 is the published QUIC v1 initial salt used to derive the
// initial secrets from a connection's destination connection ID.
var initialSaltV1 = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3, 0x4d, 0x17,
	0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad, 0xcc, 0xbb, 0x7f, 0x0a,
}

const hashLen = sha256.Size

// hkdfExtract is HKDF-Extract with HMAC-SHA-256.
func hkdfExtract(salt, ikm []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// hkdfExpand produces n bytes of HKDF-Expand output. n must not exceed
// 255*32 bytes; QUIC never asks for more than one block in practice but the
// counter is capped here to match the RFC 5869 limit.
func hkdfExpand(secret, info []byte, n int) []byte {
	r := hkdf.Expand(sha256.New, secret, info)
	out := make([]byte, n)
	io.ReadFull(r, out)
	return out
}

// expandLabel implements TLS 1.3's HKDF-Expand-Label with the "tls13 "
// prefix over HMAC-SHA-256.
func expandLabel(secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	return hkdfExpand(secret, info, length)
}

// DirectionalKeys holds the packet-protection material derived for one
// direction (client->server or server->client) at a given encryption level.
type DirectionalKeys struct {
	Key [16]byte
	IV  [12]byte
	HP  [16]byte
}

func deriveDirectional(secret []byte) DirectionalKeys {
	var d DirectionalKeys
	copy(d.Key[:], expandLabel(secret, "quic key", nil, 16))
	copy(d.IV[:], expandLabel(secret, "quic iv", nil, 12))
	copy(d.HP[:], expandLabel(secret, "quic hp", nil, 16))
	return d
}

// InitialSecrets are the per-direction initial traffic secrets and derived
// packet-protection keys for a connection identified by its destination
// connection ID.
type InitialSecrets struct {
	ClientSecret []byte
	ServerSecret []byte
	Client       DirectionalKeys
	Server       DirectionalKeys
}

// DeriveInitialSecrets implements the QUIC v1 initial-secret derivation:
// initial_secret = HKDF-Extract(initial_salt_v1, dcid), then the client/
// server traffic secrets via the "client in" / "server in" labels.
func DeriveInitialSecrets(dcid []byte) InitialSecrets {
	initialSecret := hkdfExtract(initialSaltV1, dcid)
	clientSecret := expandLabel(initialSecret, "client in", nil, hashLen)
	serverSecret := expandLabel(initialSecret, "server in", nil, hashLen)
	return InitialSecrets{
		ClientSecret: clientSecret,
		ServerSecret: serverSecret,
		Client:       deriveDirectional(clientSecret),
		Server:       deriveDirectional(serverSecret),
	}
}

// Traffic secret labels for the handshake and application encryption
// levels, and for in-place key updates.
const (
	LabelHandshakeClient = "c hs traffic"
	LabelHandshakeServer = "s hs traffic"
	LabelAppClient       = "c ap traffic"
	LabelAppServer       = "s ap traffic"
	LabelKeyUpdate       = "traffic upd"
	LabelEarlyClient     = "c e traffic"
)

// DeriveTrafficSecret runs HKDF-Expand-Label(secret, label, transcriptHash,
// 32) to derive a handshake or application traffic secret from a preceding
// secret (early secret, handshake secret, or master secret) and the running
// transcript hash.
func DeriveTrafficSecret(secret []byte, label string, transcriptHash []byte) []byte {
	return expandLabel(secret, label, transcriptHash, hashLen)
}

// UpdateTrafficSecret derives the next-generation traffic secret for a key
// update, per the "traffic upd" label.
func UpdateTrafficSecret(secret []byte) []byte {
	return expandLabel(secret, LabelKeyUpdate, nil, hashLen)
}
