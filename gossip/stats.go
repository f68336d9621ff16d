/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import "sync/atomic"

// Stats holds the engine's lifetime counters. Every field is updated with
// atomic operations so get_stats can be called from any goroutine without
// taking the engine's peer-map mutex.
type Stats struct {
	PullSent       atomic.Uint64
	PushSent       atomic.Uint64
	PingSent       atomic.Uint64
	PongReceived   atomic.Uint64
	PruneReceived  atomic.Uint64
	ValuesAccepted atomic.Uint64
	ValuesSkipped  atomic.Uint64
	PacketsDropped atomic.Uint64
	UnknownTag     atomic.Uint64
	DNSFailures    atomic.Uint64
	EntriesPruned  atomic.Uint64
}

// Snapshot is an immutable, cheap-to-copy read of Stats at one instant.
type Snapshot struct {
	PullSent, PushSent, PingSent, PongReceived    uint64
	PruneReceived                                 uint64
	ValuesAccepted, ValuesSkipped, PacketsDropped uint64
	UnknownTag, DNSFailures, EntriesPruned        uint64
}

// Snapshot reads every counter into a plain struct.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		PullSent:       s.PullSent.Load(),
		PushSent:       s.PushSent.Load(),
		PingSent:       s.PingSent.Load(),
		PongReceived:   s.PongReceived.Load(),
		PruneReceived:  s.PruneReceived.Load(),
		ValuesAccepted: s.ValuesAccepted.Load(),
		ValuesSkipped:  s.ValuesSkipped.Load(),
		PacketsDropped: s.PacketsDropped.Load(),
		UnknownTag:     s.UnknownTag.Load(),
		DNSFailures:    s.DNSFailures.Load(),
		EntriesPruned:  s.EntriesPruned.Load(),
	}
}
