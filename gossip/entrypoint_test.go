/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHostLiteralIPv4SkipsDNS(t *testing.T) {
	ip, err := resolveHost("192.168.1.50")
	require.NoError(t, err)
	require.True(t, ip.Equal(net.ParseIP("192.168.1.50")))
}
