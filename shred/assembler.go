/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package shred

import "sync"

// Outcome reports what inserting a shred into its slot's assembler did.
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
	CompletedSlot
)

// slotAssembler tracks the shreds received for one slot: which indices
// have arrived and, once the terminal shred is seen, the index it
// declared as last. Completion fires exactly once, the instant every
// index from 0 through the terminal index has arrived.
type slotAssembler struct {
	received      map[uint32]bool
	haveTerminal  bool
	terminalIndex uint32
	completed     bool
}

func newSlotAssembler() *slotAssembler {
	return &slotAssembler{received: make(map[uint32]bool)}
}

func (a *slotAssembler) insert(s *Shred) Outcome {
	if a.received[s.Index] {
		return Duplicate
	}
	a.received[s.Index] = true
	if s.IsLastInSlot {
		a.haveTerminal = true
		a.terminalIndex = s.Index
	}
	if a.completed {
		return Inserted
	}
	if a.haveTerminal && a.allPresent() {
		a.completed = true
		return CompletedSlot
	}
	return Inserted
}

func (a *slotAssembler) allPresent() bool {
	for i := uint32(0); i <= a.terminalIndex; i++ {
		if !a.received[i] {
			return false
		}
	}
	return true
}

func (a *slotAssembler) missing() []uint32 {
	if !a.haveTerminal {
		return nil
	}
	var out []uint32
	for i := uint32(0); i <= a.terminalIndex; i++ {
		if !a.received[i] {
			out = append(out, i)
		}
	}
	return out
}

// Assembler is the mutex-protected collection of per-slot slotAssemblers
// backing a ShredPipeline.
type Assembler struct {
	mtx  sync.Mutex
	byS  map[uint64]*slotAssembler
	data map[uint64]map[uint32][]byte
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		byS:  make(map[uint64]*slotAssembler),
		data: make(map[uint64]map[uint32][]byte),
	}
}

// Insert records s under its slot, returning whether it was new, a
// duplicate, or completed the slot.
func (a *Assembler) Insert(s *Shred) Outcome {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	sa, ok := a.byS[s.Slot]
	if !ok {
		sa = newSlotAssembler()
		a.byS[s.Slot] = sa
		a.data[s.Slot] = make(map[uint32][]byte)
	}
	outcome := sa.insert(s)
	if outcome != Duplicate {
		a.data[s.Slot][s.Index] = s.Payload
	}
	return outcome
}

// ShredsForSlot returns the raw payloads received for slot, indexed by
// shred index, in ascending order.
func (a *Assembler) ShredsForSlot(slot uint64) [][]byte {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	byIdx, ok := a.data[slot]
	if !ok {
		return nil
	}
	max := uint32(0)
	for idx := range byIdx {
		if idx > max {
			max = idx
		}
	}
	out := make([][]byte, 0, len(byIdx))
	for i := uint32(0); i <= max; i++ {
		if p, ok := byIdx[i]; ok {
			out = append(out, p)
		}
	}
	return out
}

// MissingIndices returns the indices not yet received for slot, or nil
// if the terminal shred has not arrived yet (the upper bound is unknown).
func (a *Assembler) MissingIndices(slot uint64) []uint32 {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	sa, ok := a.byS[slot]
	if !ok {
		return nil
	}
	return sa.missing()
}

// Forget drops a slot's bookkeeping, for use after it has been fully
// processed and handed to the ledger.
func (a *Assembler) Forget(slot uint64) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	delete(a.byS, slot)
	delete(a.data, slot)
}
