/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package crds implements the cluster replicated data store: a keyed map
// from originator identity to the latest accepted gossip record, with
// monotonic-wallclock replacement and an insertion-order change feed.
package crds

import (
	"sync"
	"time"

	"github.com/vexor-validator/vexor/wire"
)

// Entry is one accepted CRDS record plus the bookkeeping CrdsTable needs:
// the local arrival time and a strictly increasing ordinal (for
// change-feed consumers).
type Entry struct {
	Identity  wire.Identity
	Value     *wire.CrdsValue
	Wallclock uint64
	Arrived   time.Time
	Ordinal   uint64
}

// Table is the thread-safe, single-mutex CRDS store. Every operation
// serializes through one mutex; readers always see a consistent snapshot
// of the map as it existed at the moment their call executed.
type Table struct {
	mtx     sync.Mutex
	entries map[wire.Identity]Entry
	nextOrd uint64
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[wire.Identity]Entry)}
}

// Insert stores value under its originator's identity if value's wallclock
// is strictly greater than anything already stored for that identity
// (equal wallclocks are rejected). On acceptance, the entry is stamped
// with a strictly increasing ordinal and the current wall time, and
// Insert returns true.
func (t *Table) Insert(identity wire.Identity, value *wire.CrdsValue) bool {
	wc := value.Payload.Wallclock()

	t.mtx.Lock()
	defer t.mtx.Unlock()

	if existing, ok := t.entries[identity]; ok && wc <= existing.Wallclock {
		return false
	}
	t.nextOrd++
	t.entries[identity] = Entry{
		Identity:  identity,
		Value:     value,
		Wallclock: wc,
		Arrived:   time.Now(),
		Ordinal:   t.nextOrd,
	}
	return true
}

// Get returns the stored entry for identity, if any.
func (t *Table) Get(identity wire.Identity) (Entry, bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	e, ok := t.entries[identity]
	return e, ok
}

// Count returns the number of distinct originators currently stored.
func (t *Table) Count() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.entries)
}

// ListContacts returns every entry currently carrying a contact-info
// variant (legacy or modern), for use building the gossip peer directory.
func (t *Table) ListContacts() []Entry {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		switch e.Value.Payload.VariantTag() {
		case wire.CrdsLegacyContactInfo, wire.CrdsContactInfo:
			out = append(out, e)
		}
	}
	return out
}

// PruneStale removes every entry whose wallclock is more than timeoutMs
// behind the current wall time, and returns the number removed. Stale
// keys are collected into a local buffer before any map mutation occurs,
// so iteration and mutation never interleave.
func (t *Table) PruneStale(timeoutMs int64) int {
	nowMs := uint64(time.Now().UnixMilli())

	t.mtx.Lock()
	defer t.mtx.Unlock()

	var stale []wire.Identity
	for k, e := range t.entries {
		if nowMs > e.Wallclock && nowMs-e.Wallclock > uint64(timeoutMs) {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		delete(t.entries, k)
	}
	return len(stale)
}

// Since returns every entry accepted with an ordinal strictly greater than
// cursor, letting a consumer tail new records without re-scanning the
// whole table.
func (t *Table) Since(cursor uint64) []Entry {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	out := make([]Entry, 0)
	for _, e := range t.entries {
		if e.Ordinal > cursor {
			out = append(out, e)
		}
	}
	return out
}

// MaxOrdinal returns the highest ordinal assigned so far, 0 if nothing has
// ever been inserted. Pruning does not reset it.
func (t *Table) MaxOrdinal() uint64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.nextOrd
}
