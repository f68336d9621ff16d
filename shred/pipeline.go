/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package shred

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vexor-validator/vexor/internal/corelog"
	"github.com/vexor-validator/vexor/packetfabric"
	"github.com/vexor-validator/vexor/wire"
)

// LeaderSchedule resolves the signing identity expected for a given slot.
type LeaderSchedule interface {
	LeaderForSlot(slot uint64) (wire.Identity, bool)
}

// Ledger receives verified shred payloads keyed by (slot, index).
type Ledger interface {
	StoreShred(slot uint64, index uint32, payload []byte)
}

// RepairPeer is a candidate recipient for a repair request: its identity,
// advertised serve-repair address, and most recent pong liveness.
type RepairPeer struct {
	Identity    wire.Identity
	ServeRepair net.UDPAddr
	LastPong    time.Time
}

// PeerSource supplies the current set of known repair-capable peers; it
// is satisfied by an adapter over the gossip engine's peer directory.
type PeerSource interface {
	RepairCandidates() []RepairPeer
}

// Stats are the pipeline's lifetime counters, readable through GetStats;
// ProcessPackets returns its per-call counts as a ProcessResult.
type Stats struct {
	ShredsProcessed atomic.Uint64
	SlotsCompleted  atomic.Uint64
	RepairsReceived atomic.Uint64
	Invalid         atomic.Uint64
}

// ProcessResult is the return value of one ProcessPackets call.
type ProcessResult struct {
	ShredsProcessed uint64
	SlotsCompleted  uint64
	RepairsReceived uint64
}

// Config holds the pipeline's port and static-fallback settings.
type Config struct {
	TVUPort        uint16
	RepairPort     uint16
	StaticFallback []net.UDPAddr
}

// Pipeline receives shreds via two PacketFabric handles (TVU and repair),
// verifies them against the current leader schedule, assembles them
// per-slot, forwards accepted payloads to the ledger, and emits signed
// repair requests for known gaps.
type Pipeline struct {
	cfg Config
	log *corelog.Logger

	tvuFabric    packetfabric.Fabric
	repairFabric packetfabric.Fabric

	asm *Assembler

	schedule LeaderSchedule
	ledger   Ledger
	peers    PeerSource

	signer    func([]byte) wire.Signature
	selfID    wire.Identity
	nowMillis func() uint64

	maxSlot atomic.Uint64
	stats   Stats

	completedMtx sync.Mutex
	completed    []uint64

	running atomic.Bool
}

// New constructs a Pipeline. tvuFabric and repairFabric may be the same
// Fabric if both ports share one handle (e.g. a shared kernel-bypass
// classifier).
func New(cfg Config, tvuFabric, repairFabric packetfabric.Fabric, log *corelog.Logger) *Pipeline {
	if log == nil {
		log = corelog.NewDiscard()
	}
	return &Pipeline{
		cfg:          cfg,
		log:          log,
		tvuFabric:    tvuFabric,
		repairFabric: repairFabric,
		asm:          NewAssembler(),
		nowMillis:    func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

// SetLeaderSchedule installs the schedule used for signature verification.
func (p *Pipeline) SetLeaderSchedule(s LeaderSchedule) { p.schedule = s }

// SetLedger installs the ledger store accepted shreds are forwarded to.
func (p *Pipeline) SetLedger(l Ledger) { p.ledger = l }

// SetGossip installs the peer source used to select repair recipients.
func (p *Pipeline) SetGossip(ps PeerSource) { p.peers = ps }

// SetSigner installs the identity and signing function used to build
// outbound repair requests.
func (p *Pipeline) SetSigner(identity wire.Identity, sign func([]byte) wire.Signature) {
	p.selfID = identity
	p.signer = sign
}

// Start marks the pipeline running. The caller drives ProcessPackets from
// its own loop (or goroutine); Start only flips the running flag so Stop
// has something to clear.
func (p *Pipeline) Start() { p.running.Store(true) }

// Running reports whether the pipeline is between Start and Stop.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Stop halts further processing and closes both fabrics, unblocking any
// in-progress receive.
func (p *Pipeline) Stop() {
	p.running.Store(false)
	if p.tvuFabric != nil {
		p.tvuFabric.Close()
	}
	if p.repairFabric != nil && p.repairFabric != p.tvuFabric {
		p.repairFabric.Close()
	}
}

// ProcessPackets drains one batch from each fabric and processes every
// packet, returning the counts accumulated during this call.
func (p *Pipeline) ProcessPackets() ProcessResult {
	var res ProcessResult
	if !p.running.Load() {
		return res
	}
	completedBefore := p.stats.SlotsCompleted.Load()
	res.ShredsProcessed += p.drainTVU()
	res.SlotsCompleted = p.stats.SlotsCompleted.Load() - completedBefore
	res.RepairsReceived += p.drainRepair()
	return res
}

func (p *Pipeline) drainTVU() uint64 {
	if p.tvuFabric == nil {
		return 0
	}
	batch := packetfabric.NewBatch(64)
	n, err := p.tvuFabric.RecvBatch(batch)
	if err != nil {
		return 0
	}
	var processed uint64
	for _, pkt := range batch.Packets(n) {
		if p.handleShredPacket(pkt.Data()) {
			processed++
		}
	}
	return processed
}

func (p *Pipeline) drainRepair() uint64 {
	if p.repairFabric == nil {
		return 0
	}
	batch := packetfabric.NewBatch(64)
	n, err := p.repairFabric.RecvBatch(batch)
	if err != nil {
		return 0
	}
	var count uint64
	for _, pkt := range batch.Packets(n) {
		if _, err := DecodeRepairRequest(pkt.Data()); err == nil {
			count++
		}
	}
	p.stats.RepairsReceived.Add(count)
	return count
}

func (p *Pipeline) handleShredPacket(data []byte) bool {
	s, err := Parse(data)
	if err != nil {
		p.stats.Invalid.Add(1)
		return false
	}
	if p.schedule != nil {
		leader, ok := p.schedule.LeaderForSlot(s.Slot)
		if !ok || !s.VerifySignature(leader) {
			p.stats.Invalid.Add(1)
			return false
		}
	}

	outcome := p.asm.Insert(s)
	if outcome == Duplicate {
		return true
	}
	if p.ledger != nil {
		p.ledger.StoreShred(s.Slot, s.Index, s.Payload)
	}
	p.bumpMaxSlot(s.Slot)

	p.stats.ShredsProcessed.Add(1)
	if outcome == CompletedSlot {
		p.stats.SlotsCompleted.Add(1)
		p.completedMtx.Lock()
		p.completed = append(p.completed, s.Slot)
		p.completedMtx.Unlock()
	}
	return true
}

// bumpMaxSlot advances the maximum-observed-slot gauge with a
// compare-and-swap retry loop.
func (p *Pipeline) bumpMaxSlot(slot uint64) {
	for {
		cur := p.maxSlot.Load()
		if slot <= cur {
			return
		}
		if p.maxSlot.CompareAndSwap(cur, slot) {
			return
		}
	}
}

// MaxSlot returns the highest slot observed so far.
func (p *Pipeline) MaxSlot() uint64 { return p.maxSlot.Load() }

// TakeCompletedSlot pops the oldest pending completed slot, if any.
func (p *Pipeline) TakeCompletedSlot() (uint64, bool) {
	p.completedMtx.Lock()
	defer p.completedMtx.Unlock()
	if len(p.completed) == 0 {
		return 0, false
	}
	slot := p.completed[0]
	p.completed = p.completed[1:]
	return slot, true
}

// ShredsForSlot returns the raw payloads received for slot in ascending
// index order.
func (p *Pipeline) ShredsForSlot(slot uint64) [][]byte { return p.asm.ShredsForSlot(slot) }

// GetStats returns the pipeline's lifetime counters.
func (p *Pipeline) GetStats() (processed, completed, repairs, invalid uint64) {
	return p.stats.ShredsProcessed.Load(), p.stats.SlotsCompleted.Load(), p.stats.RepairsReceived.Load(), p.stats.Invalid.Load()
}

// RequestRepairs emits signed repair requests for the given missing
// indices of slot, sending each to up to three known repair peers
// (preferring the most recently ponged), falling back to the configured
// static list if gossip has no peers.
func (p *Pipeline) RequestRepairs(slot uint64, missing []uint32) {
	if p.signer == nil || p.repairFabric == nil {
		return
	}
	targets := p.selectRepairTargets()
	now := p.nowMillis()
	for _, idx := range missing {
		for _, t := range targets {
			buf := BuildSignedRepair(p.selfID, t.Identity, now, slot, uint64(idx), p.signer)
			var pb packetfabric.PacketBuffer
			pb.Len = copy(pb.Bytes[:], buf)
			p.repairFabric.SendBatch([]packetfabric.PacketBuffer{pb}, t.ServeRepair)
		}
	}
}

// selectRepairTargets returns up to three repair destinations: known
// gossip peers with a serve-repair address, most-recently-ponged first,
// falling back to the static configured list (with a zero identity) if
// none are known.
func (p *Pipeline) selectRepairTargets() []RepairPeer {
	const maxTargets = 3
	if p.peers != nil {
		cands := p.peers.RepairCandidates()
		filtered := make([]RepairPeer, 0, len(cands))
		for _, c := range cands {
			if c.ServeRepair.Port != 0 && c.ServeRepair.IP != nil && !c.ServeRepair.IP.IsUnspecified() {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			sort.Slice(filtered, func(i, j int) bool { return filtered[i].LastPong.After(filtered[j].LastPong) })
			if len(filtered) > maxTargets {
				filtered = filtered[:maxTargets]
			}
			return filtered
		}
	}
	fallback := p.cfg.StaticFallback
	if len(fallback) > maxTargets {
		fallback = fallback[:maxTargets]
	}
	out := make([]RepairPeer, len(fallback))
	for i, addr := range fallback {
		out[i] = RepairPeer{ServeRepair: addr}
	}
	return out
}
