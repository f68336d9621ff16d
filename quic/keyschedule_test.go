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

func TestDeriveInitialSecretsIsDeterministicAndDirectional(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	a := DeriveInitialSecrets(dcid)
	b := DeriveInitialSecrets(dcid)

	require.Equal(t, a.ClientSecret, b.ClientSecret)
	require.Equal(t, a.Client.Key, b.Client.Key)
	require.NotEqual(t, a.ClientSecret, a.ServerSecret)
	require.NotEqual(t, a.Client.Key, a.Server.Key)
}

func TestDeriveInitialSecretsVariesByDCID(t *testing.T) {
	a := DeriveInitialSecrets([]byte{1, 2, 3, 4})
	b := DeriveInitialSecrets([]byte{1, 2, 3, 5})
	require.NotEqual(t, a.Client.Key, b.Client.Key)
}

func TestUpdateTrafficSecretChangesKey(t *testing.T) {
	dcid := []byte{9, 9, 9, 9}
	initial := DeriveInitialSecrets(dcid)
	updated := UpdateTrafficSecret(initial.ClientSecret)
	require.NotEqual(t, initial.ClientSecret, updated)
	require.Len(t, updated, hashLen)
}
