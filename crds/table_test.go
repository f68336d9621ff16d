/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package crds

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vexor-validator/vexor/wire"
)

func legacyValue(wallclockMs uint64) *wire.CrdsValue {
	ci := &wire.LegacyContactInfo{WallclockMs: wallclockMs}
	return &wire.CrdsValue{Payload: wire.NewLegacyContactPayload(ci)}
}

func TestInsertIntoEmptyTable(t *testing.T) {
	tbl := New()
	var id wire.Identity
	copy(id[:], []byte("identity-a"))
	v := legacyValue(500)
	require.True(t, tbl.Insert(id, v))

	got, ok := tbl.Get(id)
	require.True(t, ok)
	require.Equal(t, uint64(500), got.Wallclock)
}

func TestHigherWallclockWinsRegardlessOfOrder(t *testing.T) {
	var id wire.Identity
	copy(id[:], []byte("identity-b"))

	forward := New()
	require.True(t, forward.Insert(id, legacyValue(500)))
	require.True(t, forward.Insert(id, legacyValue(1000)))
	e, _ := forward.Get(id)
	require.Equal(t, uint64(1000), e.Wallclock)
	require.Equal(t, 1, forward.Count())

	reverse := New()
	require.True(t, reverse.Insert(id, legacyValue(1000)))
	require.False(t, reverse.Insert(id, legacyValue(500))) // rejected, not newer
	e2, _ := reverse.Get(id)
	require.Equal(t, uint64(1000), e2.Wallclock)
	require.Equal(t, 1, reverse.Count())
}

func TestEqualWallclockRejected(t *testing.T) {
	tbl := New()
	var id wire.Identity
	require.True(t, tbl.Insert(id, legacyValue(500)))
	require.False(t, tbl.Insert(id, legacyValue(500)))
}

func TestOrdinalsAreStrictlyIncreasing(t *testing.T) {
	tbl := New()
	var id1, id2 wire.Identity
	id1[0] = 1
	id2[0] = 2
	tbl.Insert(id1, legacyValue(100))
	tbl.Insert(id2, legacyValue(200))
	e1, _ := tbl.Get(id1)
	e2, _ := tbl.Get(id2)
	require.Less(t, e1.Ordinal, e2.Ordinal)
}

func TestPruneStaleCollectsThenRemoves(t *testing.T) {
	tbl := New()
	var id wire.Identity
	id[0] = 9
	tbl.Insert(id, legacyValue(1))
	// wallclock 1ms-since-epoch is far behind the current wall time, so
	// any timeout prunes it.
	removed := tbl.PruneStale(0)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, tbl.Count())
}

func TestSinceReturnsOnlyNewerOrdinals(t *testing.T) {
	tbl := New()
	var id1, id2 wire.Identity
	id1[0] = 1
	id2[0] = 2
	tbl.Insert(id1, legacyValue(100))
	cursor := tbl.MaxOrdinal()
	tbl.Insert(id2, legacyValue(200))
	entries := tbl.Since(cursor)
	require.Len(t, entries, 1)
	require.Equal(t, id2, entries[0].Identity)
}
