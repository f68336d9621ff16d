/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketAEADRoundtripBothSuites(t *testing.T) {
	keys := DirectionalKeys{}
	for i := range keys.Key {
		keys.Key[i] = byte(i)
	}
	for i := range keys.IV {
		keys.IV[i] = byte(i + 1)
	}

	for _, suite := range []Suite{SuiteAES128GCM, SuiteChaCha20Poly1305} {
		aead, err := NewPacketAEAD(suite, keys)
		require.NoError(t, err)

		header := []byte{0xc3, 0x01, 0x02, 0x03}
		plaintext := []byte("shred payload fragment")
		pn := uint64(42)

		sealed := aead.Seal(pn, header, append([]byte{}, plaintext...))
		require.NotEqual(t, plaintext, sealed[:len(plaintext)])

		opened, err := aead.Open(pn, header, sealed)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestPacketAEADRejectsWrongPacketNumber(t *testing.T) {
	keys := DirectionalKeys{}
	aead, err := NewPacketAEAD(SuiteAES128GCM, keys)
	require.NoError(t, err)

	header := []byte{0xc0}
	sealed := aead.Seal(1, header, []byte("hello"))
	_, err = aead.Open(2, header, sealed)
	require.Error(t, err)
}

func TestPacketAEADRejectsTamperedAAD(t *testing.T) {
	keys := DirectionalKeys{}
	aead, err := NewPacketAEAD(SuiteChaCha20Poly1305, keys)
	require.NoError(t, err)

	header := []byte{0xc0, 0x01}
	sealed := aead.Seal(5, header, []byte("hello"))
	tamperedHeader := []byte{0xc0, 0x02}
	_, err = aead.Open(5, tamperedHeader, sealed)
	require.Error(t, err)
}
