/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package txpipeline

import (
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vexor-validator/vexor/internal/corelog"
	"github.com/vexor-validator/vexor/packetfabric"
)

// Config holds the pipeline's queue sizing and rate-limit parameters.
type Config struct {
	Port              uint16
	QueueCapacity     int
	VoteQueueCapacity int
	DedupCapacity     int
	// SubmitRatePerSec bounds externally-submitted (non-vote) transaction
	// acceptance; 0 disables limiting.
	SubmitRatePerSec float64
}

// DefaultConfig returns reasonable defaults for a single validator TPU.
func DefaultConfig() Config {
	return Config{
		Port:              8005,
		QueueCapacity:     4096,
		VoteQueueCapacity: 1024,
		DedupCapacity:     65536,
		SubmitRatePerSec:  50000,
	}
}

// Stats are the pipeline's lifetime counters.
type Stats struct {
	ParseErrors       atomic.Uint64
	InvalidSignatures atomic.Uint64
	Deduped           atomic.Uint64
	QueueFull         atomic.Uint64
	Forwarded         atomic.Uint64
}

// Pipeline receives transactions over a packetfabric.Fabric, parses and
// verifies them, scores priority, and feeds a bounded queue plus a
// separate max-priority vote/internal-submission queue that a
// starvation-guarded drain keeps flowing even under heavy regular
// traffic.
type Pipeline struct {
	cfg   Config
	log   *corelog.Logger
	fab   packetfabric.Fabric
	queue *Queue
	votes *Queue
	dedup *Dedup
	lim   *rate.Limiter
	stats Stats

	running atomic.Bool
}

// New constructs a Pipeline over an already-open Fabric.
func New(cfg Config, fab packetfabric.Fabric, log *corelog.Logger) *Pipeline {
	if log == nil {
		log = corelog.NewDiscard()
	}
	var lim *rate.Limiter
	if cfg.SubmitRatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.SubmitRatePerSec), int(cfg.SubmitRatePerSec))
	}
	return &Pipeline{
		cfg:   cfg,
		log:   log,
		fab:   fab,
		queue: NewQueue(cfg.QueueCapacity),
		votes: NewQueue(cfg.VoteQueueCapacity),
		dedup: NewDedup(cfg.DedupCapacity),
		lim:   lim,
	}
}

// Start marks the pipeline running.
func (p *Pipeline) Start() { p.running.Store(true) }

// Running reports whether the pipeline is between Start and Stop.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Stop halts processing and closes the fabric.
func (p *Pipeline) Stop() {
	p.running.Store(false)
	if p.fab != nil {
		p.fab.Close()
	}
}

// ProcessPackets drains one batch from the fabric and runs each packet
// through parse, verify, score, dedup and enqueue. It returns the number
// of packets accepted into a queue.
func (p *Pipeline) ProcessPackets() uint64 {
	if !p.running.Load() || p.fab == nil {
		return 0
	}
	batch := packetfabric.NewBatch(128)
	n, err := p.fab.RecvBatch(batch)
	if err != nil {
		return 0
	}
	var processed uint64
	for _, pkt := range batch.Packets(n) {
		if p.ingest(pkt.Data(), false) {
			processed++
		}
	}
	return processed
}

// SubmitTransaction parses and enqueues a single externally-submitted
// transaction (e.g. over RPC), scored by its embedded priority.
func (p *Pipeline) SubmitTransaction(raw []byte) bool {
	if p.lim != nil && !p.lim.Allow() {
		return false
	}
	return p.ingest(raw, false)
}

// SubmitVoteTransaction parses and enqueues a vote or other internally
// originated transaction at maximum priority, bypassing the rate limiter
// and landing in the dedicated vote queue.
func (p *Pipeline) SubmitVoteTransaction(raw []byte) bool {
	return p.ingest(raw, true)
}

func (p *Pipeline) ingest(raw []byte, isVote bool) bool {
	tx, err := Parse(raw)
	if err != nil {
		p.stats.ParseErrors.Add(1)
		return false
	}
	if !tx.VerifySignatures() {
		p.stats.InvalidSignatures.Add(1)
		return false
	}
	sig := tx.FirstSignature()
	if !p.dedup.Insert(sig) {
		p.stats.Deduped.Add(1)
		return false
	}

	priority := tx.PriorityScore()
	target := p.queue
	if isVote {
		priority = MaxPriority
		target = p.votes
	}
	qtx := QueuedTx{
		Signature: sig,
		FeePayer:  tx.FeePayer(),
		Priority:  priority,
		Received:  time.Now(),
		Raw:       append([]byte{}, raw...),
	}
	if !target.Submit(qtx) {
		p.stats.QueueFull.Add(1)
		return false
	}
	return true
}

// DrainForBanking returns up to n queued transactions for the banking
// stage. It is a starvation-guarded round robin: up to half of n is
// reserved for the vote queue (so internal submissions always make
// progress under heavy regular-transaction load), with any unused vote
// budget reassigned to regular transactions.
func (p *Pipeline) DrainForBanking(n int) []QueuedTx {
	voteBudget := n / 2
	votes := p.votes.DrainTop(voteBudget)
	remaining := n - len(votes)
	regular := p.queue.DrainTop(remaining)
	out := make([]QueuedTx, 0, len(votes)+len(regular))
	out = append(out, votes...)
	out = append(out, regular...)
	return out
}

// ForwardToLeader writes each entry as a single datagram to leaderTPU,
// counting successes. It never retries within this component.
func (p *Pipeline) ForwardToLeader(leaderTPU net.UDPAddr, entries []QueuedTx) int {
	if p.fab == nil {
		return 0
	}
	sent := 0
	for _, e := range entries {
		var pb packetfabric.PacketBuffer
		pb.Len = copy(pb.Bytes[:], e.Raw)
		if _, err := p.fab.SendBatch([]packetfabric.PacketBuffer{pb}, leaderTPU); err == nil {
			sent++
			p.stats.Forwarded.Add(1)
		}
	}
	return sent
}

// GetStats reads the pipeline's lifetime counters.
func (p *Pipeline) GetStats() (parseErrors, invalidSigs, deduped, queueFull, forwarded uint64) {
	return p.stats.ParseErrors.Load(), p.stats.InvalidSignatures.Load(), p.stats.Deduped.Load(), p.stats.QueueFull.Load(), p.stats.Forwarded.Load()
}
