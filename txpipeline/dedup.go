/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package txpipeline

import (
	"container/list"
	"sync"

	"github.com/vexor-validator/vexor/wire"
)

// Dedup is a bounded first-signature dedup set: a capacity-limited set
// keyed by a transaction's first signature, kept in insertion order.
// Overflow drops the newest insertion attempt rather than evicting older
// entries, so a dedup window never silently forgets recently-seen traffic
// under load; entries leave only through Reset.
type Dedup struct {
	mtx   sync.Mutex
	cap   int
	order *list.List
	index map[wire.Signature]*list.Element
}

// NewDedup returns an empty Dedup bounded at capacity entries.
func NewDedup(capacity int) *Dedup {
	return &Dedup{
		cap:   capacity,
		order: list.New(),
		index: make(map[wire.Signature]*list.Element),
	}
}

// Seen reports whether sig has already been recorded, without modifying
// state.
func (d *Dedup) Seen(sig wire.Signature) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	_, ok := d.index[sig]
	return ok
}

// Insert records sig as seen. It returns false (without recording) if sig
// is already present, or if the set is at capacity and sig is new — the
// incoming entry is dropped rather than evicting history.
func (d *Dedup) Insert(sig wire.Signature) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if _, ok := d.index[sig]; ok {
		return false
	}
	if d.order.Len() >= d.cap {
		return false
	}
	elem := d.order.PushBack(sig)
	d.index[sig] = elem
	return true
}

// Reset clears all recorded signatures, for caller-driven epoch
// rollover (e.g. at a slot boundary).
func (d *Dedup) Reset() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.order.Init()
	d.index = make(map[wire.Signature]*list.Element)
}

// Len returns the number of signatures currently recorded.
func (d *Dedup) Len() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.order.Len()
}
