/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package txpipeline

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexor-validator/vexor/wire"
)

func buildMessage(t *testing.T, keys []wire.Identity, instrs []Instruction) []byte {
	t.Helper()
	buf := []byte{1, 0, 1} // 1 required sig, 0 readonly signed, 1 readonly unsigned
	kbuf := make([]byte, 1)
	n, err := wire.PutCompactU16(kbuf, uint16(len(keys)))
	require.NoError(t, err)
	buf = append(buf, kbuf[:n]...)
	for _, k := range keys {
		buf = append(buf, k[:]...)
	}
	var bh wire.Hash
	buf = append(buf, bh[:]...)

	icbuf := make([]byte, 1)
	n, err = wire.PutCompactU16(icbuf, uint16(len(instrs)))
	require.NoError(t, err)
	buf = append(buf, icbuf[:n]...)
	for _, instr := range instrs {
		buf = append(buf, instr.ProgramIDIndex)
		acbuf := make([]byte, 1)
		n, _ := wire.PutCompactU16(acbuf, uint16(len(instr.AccountIndices)))
		buf = append(buf, acbuf[:n]...)
		buf = append(buf, instr.AccountIndices...)
		dbuf := make([]byte, 3)
		n, _ = wire.PutCompactU16(dbuf, uint16(len(instr.Data)))
		buf = append(buf, dbuf[:n]...)
		buf = append(buf, instr.Data...)
	}
	return buf
}

func buildTx(t *testing.T, priv ed25519.PrivateKey, keys []wire.Identity, instrs []Instruction) []byte {
	t.Helper()
	msg := buildMessage(t, keys, instrs)
	sig := ed25519.Sign(priv, msg)

	sbuf := make([]byte, 1)
	n, err := wire.PutCompactU16(sbuf, 1)
	require.NoError(t, err)
	out := append([]byte{}, sbuf[:n]...)
	out = append(out, sig...)
	out = append(out, msg...)
	return out
}

func TestParseVerifyAndScorePriority(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var payer wire.Identity
	copy(payer[:], pub)

	data := make([]byte, 9)
	data[0] = setComputeUnitPriceDiscriminant
	wire.PutUint64(data[1:], 42000)

	keys := []wire.Identity{payer, ComputeBudgetProgramID}
	raw := buildTx(t, priv, keys, []Instruction{{ProgramIDIndex: 1, Data: data}})

	tx, err := Parse(raw)
	require.NoError(t, err)
	require.True(t, tx.VerifySignatures())
	require.Equal(t, uint64(42000), tx.PriorityScore())
	require.Equal(t, payer, tx.FeePayer())
}

func TestVerifySignaturesFailsOnTamperedMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var payer wire.Identity
	copy(payer[:], pub)
	raw := buildTx(t, priv, []wire.Identity{payer}, nil)

	tx, err := Parse(raw)
	require.NoError(t, err)
	require.True(t, tx.VerifySignatures())

	// flip a blockhash byte: still structurally valid, signature no
	// longer covers the bytes
	raw[len(raw)-2] ^= 0xFF
	tampered, err := Parse(raw)
	require.NoError(t, err)
	require.False(t, tampered.VerifySignatures())
}

func TestPriorityScoreZeroWithoutComputeBudgetInstruction(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var payer wire.Identity
	copy(payer[:], pub)
	raw := buildTx(t, priv, []wire.Identity{payer}, nil)
	tx, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(0), tx.PriorityScore())
}
