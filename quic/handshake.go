/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"bytes"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// Stage enumerates the server-side TLS 1.3 handshake progression used to
// establish a QUIC connection.
type Stage int

const (
	StageAwaitingClientHello Stage = iota
	StageProcessing
	StageSendingServerHello
	StageSendingEncryptedExtensions
	StageSendingCertificate
	StageSendingCertificateVerify
	StageSendingFinished
	StageAwaitingClientFinished
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingClientHello:
		return "awaiting_client_hello"
	case StageProcessing:
		return "processing"
	case StageSendingServerHello:
		return "sending_server_hello"
	case StageSendingEncryptedExtensions:
		return "sending_encrypted_extensions"
	case StageSendingCertificate:
		return "sending_certificate"
	case StageSendingCertificateVerify:
		return "sending_certificate_verify"
	case StageSendingFinished:
		return "sending_finished"
	case StageAwaitingClientFinished:
		return "awaiting_client_finished"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when Advance is called from a stage that
// has no forward transition (StageComplete and StageFailed are terminal).
var ErrInvalidTransition = errors.New("quic: invalid handshake transition")

// certificateVerifyContextPrefix is the 64 space bytes TLS 1.3 prepends to
// every CertificateVerify signature content, per RFC 8446 §4.4.3.
var certificateVerifyContextPrefix = bytes.Repeat([]byte{0x20}, 64)

const certificateVerifyServerLabel = "TLS 1.3, server CertificateVerify"

// ServerHandshake drives the server side of the handshake state machine and
// holds the running transcript hash used for key derivation and signing.
type ServerHandshake struct {
	stage      Stage
	transcript []byte
	signerKey  ed25519.PrivateKey
}

// NewServerHandshake constructs a handshake state machine that will sign
// CertificateVerify content with signerKey (the node's Ed25519 identity
// key).
func NewServerHandshake(signerKey ed25519.PrivateKey) *ServerHandshake {
	return &ServerHandshake{stage: StageAwaitingClientHello, signerKey: signerKey}
}

// Stage returns the handshake's current stage.
func (h *ServerHandshake) Stage() Stage { return h.stage }

// ObserveMessage feeds a handshake message's raw bytes into the running
// transcript hash. It must be called for every message sent or received, in
// order, for TranscriptHash and Finished/CertificateVerify to be correct.
func (h *ServerHandshake) ObserveMessage(msg []byte) {
	h.transcript = append(h.transcript, msg...)
}

// TranscriptHash returns SHA-256 of all messages observed so far.
func (h *ServerHandshake) TranscriptHash() []byte {
	sum := sha256.Sum256(h.transcript)
	return sum[:]
}

var stageOrder = []Stage{
	StageAwaitingClientHello,
	StageProcessing,
	StageSendingServerHello,
	StageSendingEncryptedExtensions,
	StageSendingCertificate,
	StageSendingCertificateVerify,
	StageSendingFinished,
	StageAwaitingClientFinished,
	StageComplete,
}

// Advance moves the handshake to its next stage in the fixed server
// sequence. It returns ErrInvalidTransition from a terminal stage.
func (h *ServerHandshake) Advance() error {
	for i, s := range stageOrder {
		if s == h.stage && i+1 < len(stageOrder) {
			h.stage = stageOrder[i+1]
			return nil
		}
	}
	return ErrInvalidTransition
}

// Fail moves the handshake to StageFailed unconditionally.
func (h *ServerHandshake) Fail() { h.stage = StageFailed }

// CertificateVerifySignature signs the current transcript hash per RFC
// 8446's CertificateVerify construction: 64 spaces, the context label, a
// zero byte, then the transcript hash, signed with Ed25519.
func (h *ServerHandshake) CertificateVerifySignature() []byte {
	content := certificateVerifyContent(h.TranscriptHash())
	return ed25519.Sign(h.signerKey, content)
}

func certificateVerifyContent(transcriptHash []byte) []byte {
	content := make([]byte, 0, len(certificateVerifyContextPrefix)+len(certificateVerifyServerLabel)+1+len(transcriptHash))
	content = append(content, certificateVerifyContextPrefix...)
	content = append(content, certificateVerifyServerLabel...)
	content = append(content, 0)
	content = append(content, transcriptHash...)
	return content
}

// VerifyCertificateVerify checks a peer's CertificateVerify signature
// against its public key and the given transcript hash snapshot.
func VerifyCertificateVerify(peerPublic ed25519.PublicKey, transcriptHash, sig []byte) bool {
	return ed25519.Verify(peerPublic, certificateVerifyContent(transcriptHash), sig)
}

// FinishedVerifyData computes Finished = HMAC-SHA-256(finishedKey,
// transcriptHash).
func FinishedVerifyData(finishedKey, transcriptHash []byte) []byte {
	mac := hmac.New(sha256.New, finishedKey)
	mac.Write(transcriptHash)
	return mac.Sum(nil)
}

// FinishedKey derives the finished_key for a given base secret, per RFC
// 8446 §4.4.4 (HKDF-Expand-Label(secret, "finished", "", Hash.length)).
func FinishedKey(secret []byte) []byte {
	return expandLabel(secret, "finished", nil, hashLen)
}
