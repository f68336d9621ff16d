/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package txpipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexor-validator/vexor/wire"
)

func TestDedupRejectsRepeatAndOverflow(t *testing.T) {
	d := NewDedup(2)
	var a, b, c wire.Signature
	a[0], b[0], c[0] = 1, 2, 3

	require.True(t, d.Insert(a))
	require.False(t, d.Insert(a)) // repeat
	require.True(t, d.Insert(b))
	require.False(t, d.Insert(c)) // overflow: dropped, not evicting a or b
	require.Equal(t, 2, d.Len())
	require.True(t, d.Seen(a))
	require.False(t, d.Seen(c))
}

func TestDedupResetClearsHistory(t *testing.T) {
	d := NewDedup(2)
	var a wire.Signature
	a[0] = 9
	d.Insert(a)
	d.Reset()
	require.False(t, d.Seen(a))
	require.True(t, d.Insert(a))
}
