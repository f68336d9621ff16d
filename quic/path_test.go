/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathSetStartsValidationOnNewAddr(t *testing.T) {
	ps := NewPathSet(false)
	addr := net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 9000}

	p, err := ps.OnPacketFromAddr(addr, 1000)
	require.NoError(t, err)
	require.Equal(t, ValidationValidating, p.State)
}

func TestPathResponseMatchingChallengeValidates(t *testing.T) {
	ps := NewPathSet(false)
	addr := net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 9000}
	p, err := ps.OnPacketFromAddr(addr, 1000)
	require.NoError(t, err)

	rtt, ok := p.OnPathResponse(p.Challenge, 1030)
	require.True(t, ok)
	require.Equal(t, uint64(30), rtt)
	require.True(t, p.IsValidated())
}

func TestPathResponseWrongChallengeDoesNotValidate(t *testing.T) {
	ps := NewPathSet(false)
	addr := net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 9000}
	p, err := ps.OnPacketFromAddr(addr, 1000)
	require.NoError(t, err)

	var wrong [8]byte
	wrong[0] = p.Challenge[0] ^ 0xFF
	_, ok := p.OnPathResponse(wrong, 1030)
	require.False(t, ok)
	require.False(t, p.IsValidated())
}

func TestPathFailsAfterThreeChallengeTimeouts(t *testing.T) {
	ps := NewPathSet(false)
	addr := net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 9000}
	p, _ := ps.OnPacketFromAddr(addr, 1000)

	p.OnChallengeTimeout()
	require.Equal(t, ValidationValidating, p.State)
	p.OnChallengeTimeout()
	require.Equal(t, ValidationValidating, p.State)
	p.OnChallengeTimeout()
	require.Equal(t, ValidationFailed, p.State)
}

func TestMigrationDisabledRejectsNewPathOnceActiveIsSet(t *testing.T) {
	ps := NewPathSet(true)
	first := net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 9000}
	second := net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 9000}

	_, err := ps.OnPacketFromAddr(first, 1000)
	require.NoError(t, err)

	_, err = ps.OnPacketFromAddr(second, 1000)
	require.ErrorIs(t, err, ErrMigrationDisabled)
}

func TestPromoteRequiresValidation(t *testing.T) {
	ps := NewPathSet(false)
	addr := net.UDPAddr{IP: net.ParseIP("10.0.0.3"), Port: 9001}
	p, _ := ps.OnPacketFromAddr(addr, 1000)

	require.False(t, ps.Promote(addr))
	p.OnPathResponse(p.Challenge, 1010)
	require.True(t, ps.Promote(addr))
	require.Equal(t, p, ps.Active())
}
