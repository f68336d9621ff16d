/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTicketStorePutGetRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")
	s, err := OpenTicketStore(path)
	require.NoError(t, err)
	defer s.Close()

	tk := Ticket{
		ServerName:       "validator-7.example",
		TicketBytes:      []byte{0xaa, 0xbb, 0xcc},
		ResumptionSecret: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		AgeAdd:           0xdeadbeef,
		MaxEarlyData:     16384,
		ALPN:             "solana-tpu",
		CreatedAtMs:      1000,
		LifetimeMs:       5000,
	}
	require.NoError(t, s.Put(tk))

	got, err := s.Get("validator-7.example", 2000)
	require.NoError(t, err)
	require.Equal(t, tk, got)
}

func TestTicketStoreExpiresByLifetime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")
	s, err := OpenTicketStore(path)
	require.NoError(t, err)
	defer s.Close()

	tk := Ticket{ServerName: "v.example", ResumptionSecret: []byte{9}, CreatedAtMs: 1000, LifetimeMs: 500}
	require.NoError(t, s.Put(tk))

	_, err = s.Get("v.example", 2000) // 2000-1000=1000 >= lifetime 500
	require.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketStoreMissingServerName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")
	s, err := OpenTicketStore(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("nobody.example", 1000)
	require.ErrorIs(t, err, ErrTicketNotFound)
}

func TestDeriveEarlySecretIsDeterministic(t *testing.T) {
	resumption := []byte("resumption-secret")
	transcript := []byte("client-hello-transcript")
	a := DeriveEarlySecret(resumption, transcript)
	b := DeriveEarlySecret(resumption, transcript)
	require.Equal(t, a, b)
	require.Len(t, a, hashLen)
}

func TestEarlyDataBufferRejectReturnsFramesThenDrains(t *testing.T) {
	var b EarlyDataBuffer
	b.Write([]byte("frame-1"))
	b.Write([]byte("frame-2"))

	frames := b.Reject()
	require.Len(t, frames, 2)
	require.Empty(t, b.Reject())
}

func TestEarlyDataBufferAcceptClearsFrames(t *testing.T) {
	var b EarlyDataBuffer
	b.Write([]byte("frame-1"))
	b.Accept()
	require.Empty(t, b.Reject())
}
