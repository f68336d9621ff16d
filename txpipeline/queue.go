/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package txpipeline

import (
	"container/heap"
	"math"
	"sync"
	"time"

	"github.com/vexor-validator/vexor/wire"
)

// MaxPriority is the score assigned to vote transactions and internal
// submissions, guaranteeing they sort ahead of any externally observed
// compute-budget price.
const MaxPriority = math.MaxUint64

// QueuedTx is one accepted transaction waiting for banking, carrying its
// dedup key, fee payer, priority, arrival time and raw bytes.
type QueuedTx struct {
	Signature wire.Signature
	FeePayer  wire.Identity
	Priority  uint64
	Received  time.Time
	Raw       []byte
}

// pqItem wraps a QueuedTx with its heap index for container/heap.
type pqItem struct {
	tx    QueuedTx
	index int
}

// priorityHeap is a max-heap ordered by descending priority: the root is
// always the highest-priority entry, so draining for banking is a
// sequence of cheap Pops. Finding the lowest-priority entry (needed to
// decide eviction on a full queue) is a linear scan instead — acceptable
// given the queue's bounded capacity.
type priorityHeap []*pqItem

func (h priorityHeap) Len() int           { return len(h) }
func (h priorityHeap) Less(i, j int) bool { return h[i].tx.Priority > h[j].tx.Priority }
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Queue is a bounded, priority-ordered (descending) transaction queue.
// Capacity is fixed at construction. Submission of an entry once the
// queue is at capacity evicts the current lowest-priority entry only if
// the incoming entry has strictly higher priority; otherwise the
// incoming entry is rejected.
type Queue struct {
	mtx sync.Mutex
	cap int
	h   priorityHeap
}

// NewQueue returns an empty Queue bounded at capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{cap: capacity}
}

// Submit inserts tx, returning true if it was accepted. Submission fails
// (returns false) only when the queue is full and tx's priority is not
// strictly greater than the current minimum.
func (q *Queue) Submit(tx QueuedTx) bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	if len(q.h) < q.cap {
		heap.Push(&q.h, &pqItem{tx: tx})
		return true
	}
	if q.cap == 0 {
		return false
	}
	minIdx := q.lowestIndex()
	if tx.Priority <= q.h[minIdx].tx.Priority {
		return false
	}
	heap.Remove(&q.h, minIdx)
	heap.Push(&q.h, &pqItem{tx: tx})
	return true
}

func (q *Queue) lowestIndex() int {
	minIdx := 0
	for i, item := range q.h {
		if item.tx.Priority < q.h[minIdx].tx.Priority {
			minIdx = i
		}
	}
	return minIdx
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.h)
}

// DrainTop removes and returns up to n entries in descending priority
// order.
func (q *Queue) DrainTop(n int) []QueuedTx {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	if n > len(q.h) {
		n = len(q.h)
	}
	out := make([]QueuedTx, n)
	for i := 0; i < n; i++ {
		out[i] = heap.Pop(&q.h).(*pqItem).tx
	}
	return out
}
