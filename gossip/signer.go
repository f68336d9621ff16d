/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import (
	"crypto/ed25519"

	"github.com/vexor-validator/vexor/wire"
)

// Signer produces signatures over arbitrary byte ranges for an identity
// this node advertises as its own. A nil Signer is valid: every sign call
// degrades to the zero signature rather than panicking, letting the
// engine run in a read-only, unsigned mode.
type Signer interface {
	Identity() wire.Identity
	Sign(data []byte) wire.Signature
}

// Ed25519Signer is the production Signer backed by an in-memory Ed25519
// keypair.
type Ed25519Signer struct {
	identity wire.Identity
	priv     ed25519.PrivateKey
}

// NewEd25519Signer wraps priv, deriving the advertised identity from its
// public key.
func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	s := &Ed25519Signer{priv: priv}
	copy(s.identity[:], priv.Public().(ed25519.PublicKey))
	return s
}

// Identity returns the signer's public identity.
func (s *Ed25519Signer) Identity() wire.Identity { return s.identity }

// Sign signs data with the wrapped private key.
func (s *Ed25519Signer) Sign(data []byte) wire.Signature {
	var sig wire.Signature
	copy(sig[:], ed25519.Sign(s.priv, data))
	return sig
}
