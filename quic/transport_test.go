/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenServerConnectionAssignsDistinctLocalConnectionIDs(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	tr := NewTransport(nil, priv, nil, nil)

	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	c1 := tr.OpenServerConnection(dcid)
	require.LessOrEqual(t, len(c1.SCID), maxConnectionIDLen)
	require.NotEmpty(t, c1.SCID)

	got, err := tr.Connection(dcid)
	require.NoError(t, err)
	require.Same(t, c1, got)

	tr.CloseConnection(dcid)
	_, err = tr.Connection(dcid)
	require.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestOpenServerConnectionLocalConnectionIDsAreUnique(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	tr := NewTransport(nil, priv, nil, nil)

	c1 := tr.OpenServerConnection([]byte{1, 2, 3, 4})
	c2 := tr.OpenServerConnection([]byte{5, 6, 7, 8})
	require.NotEqual(t, c1.SCID, c2.SCID)
}
