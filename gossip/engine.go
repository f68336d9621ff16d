/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package gossip implements the cluster gossip loop: periodic pull, push
// and ping cycles over a packetfabric.Fabric, a local directory of known
// peers built from accepted contact-info records, and self-advertisement
// of this node's own contact info into the cluster's CrdsTable.
package gossip

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/vexor-validator/vexor/crds"
	"github.com/vexor-validator/vexor/internal/corelog"
	"github.com/vexor-validator/vexor/packetfabric"
	"github.com/vexor-validator/vexor/wire"
)

// SelfPorts names the ports this node advertises in its own contact info.
type SelfPorts struct {
	Gossip, TVU, TVUForwards, Repair uint16
	TPU, TPUForwards, TPUVote        uint16
	RPC, RPCPubsub, ServeRepair      uint16
}

// Engine drives the pull/push/ping/prune gossip loop over one
// packetfabric.Fabric, maintaining a CrdsTable and a local peer
// directory.
type Engine struct {
	cfg    Config
	table  *crds.Table
	fabric packetfabric.Fabric
	log    *corelog.Logger
	stats  Stats

	running boolFlag

	mu          sync.Mutex
	peers       map[wire.Identity]*Peer
	entrypoints []Entrypoint
	signer      Signer
	self        *wire.LegacyContactInfo

	lastPull, lastPush, lastPing, lastPrune time.Time
}

// New constructs an Engine over an already-open fabric and CrdsTable.
func New(cfg Config, table *crds.Table, fabric packetfabric.Fabric, log *corelog.Logger) *Engine {
	if log == nil {
		log = corelog.NewDiscard()
	}
	return &Engine{
		cfg:    cfg,
		table:  table,
		fabric: fabric,
		log:    log,
		peers:  make(map[wire.Identity]*Peer),
	}
}

// AddEntrypoint resolves host (a literal IPv4 address or a hostname) at
// add-time and appends it to the bootstrap list.
func (e *Engine) AddEntrypoint(host string, port uint16) error {
	ip, err := resolveHost(host)
	if err != nil {
		e.stats.DNSFailures.Add(1)
		e.log.Warn("entrypoint dns resolution failed", corelog.KV{Key: "host", Value: host}, corelog.KVErr(err))
		return err
	}
	e.mu.Lock()
	e.entrypoints = append(e.entrypoints, Entrypoint{Host: host, Port: port, IP: ip})
	e.mu.Unlock()
	return nil
}

// SetSelf builds this node's advertised legacy contact info from identity,
// ip and ports.
func (e *Engine) SetSelf(identity wire.Identity, ip net.IP, ports SelfPorts, shredVersion uint16) {
	mk := func(p uint16) wire.SocketAddress { return wire.SocketAddressV4(ip, p) }
	ci := &wire.LegacyContactInfo{
		Identity:     identity,
		Gossip:       mk(ports.Gossip),
		TVU:          mk(ports.TVU),
		TVUForwards:  mk(ports.TVUForwards),
		Repair:       mk(ports.Repair),
		TPU:          mk(ports.TPU),
		TPUForwards:  mk(ports.TPUForwards),
		TPUVote:      mk(ports.TPUVote),
		RPC:          mk(ports.RPC),
		RPCPubsub:    mk(ports.RPCPubsub),
		ServeRepair:  mk(ports.ServeRepair),
		ShredVersion: shredVersion,
	}
	e.mu.Lock()
	e.self = ci
	e.mu.Unlock()
}

// SetKeypair installs the signer used for self-advertisement and pong
// responses. A nil signer degrades every subsequent send to the zero
// signature rather than failing.
func (e *Engine) SetKeypair(signer Signer) {
	e.mu.Lock()
	e.signer = signer
	e.mu.Unlock()
}

// PeerCount returns the number of distinct peers currently known.
func (e *Engine) PeerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.peers)
}

// GetStats returns a snapshot of the engine's lifetime counters.
func (e *Engine) GetStats() Snapshot { return e.stats.Snapshot() }

// Peers returns a snapshot of the currently known peer directory. Callers
// needing a stable capability handle (e.g. the shred pipeline's repair
// peer source) should wrap the result rather than holding a reference
// into the engine itself.
func (e *Engine) Peers() []Peer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Peer, 0, len(e.peers))
	for _, p := range e.peers {
		out = append(out, *p)
	}
	return out
}

// Run drives the gossip loop until Stop is called. It is intended to run
// on its own goroutine.
func (e *Engine) Run() {
	e.running.set(true)
	batch := packetfabric.NewBatch(64)
	for e.running.get() {
		e.processInbound(batch)

		now := time.Now()
		if e.duePull(now) {
			e.doPull(now)
			e.lastPull = now
		}
		if now.Sub(e.lastPush) >= e.cfg.PushInterval {
			e.doPush(now)
			e.lastPush = now
		}
		if now.Sub(e.lastPing) >= e.cfg.PingInterval {
			e.doPing()
			e.lastPing = now
		}
		if now.Sub(e.lastPrune) >= e.cfg.PruneInterval {
			removed := e.table.PruneStale(e.cfg.PruneTimeoutMs)
			e.stats.EntriesPruned.Add(uint64(removed))
			e.lastPrune = now
		}
		time.Sleep(e.cfg.CycleSleep)
	}
}

// Stop halts the loop and closes the underlying fabric, unblocking any
// in-progress receive.
func (e *Engine) Stop() {
	e.running.set(false)
	if e.fabric != nil {
		e.fabric.Close()
	}
}

func (e *Engine) duePull(now time.Time) bool {
	interval := e.cfg.PullInterval
	if e.PeerCount() == 0 {
		interval = time.Second
	}
	return now.Sub(e.lastPull) >= interval
}

// processInbound drains whatever the fabric has queued and dispatches
// each packet.
func (e *Engine) processInbound(batch *packetfabric.Batch) {
	n, err := e.fabric.RecvBatch(batch)
	if err != nil {
		return
	}
	for _, pkt := range batch.Packets(n) {
		e.dispatch(pkt)
	}
}

func (e *Engine) dispatch(pkt packetfabric.PacketBuffer) {
	data := pkt.Data()
	tag, err := wire.PeekOuterTag(data)
	if err != nil {
		e.stats.PacketsDropped.Add(1)
		return
	}
	switch tag {
	case wire.TagPing:
		e.handlePing(data, pkt.SrcAddr)
	case wire.TagPong:
		e.handlePong(data)
	case wire.TagPullRequest:
		if _, _, err := wire.DecodeCrdsFilter(data[4:]); err != nil {
			e.stats.PacketsDropped.Add(1)
		}
		// light member: parsing only, no pull-response built.
	case wire.TagPullResponse:
		resp, err := wire.DecodePullResponse(data)
		if err != nil {
			e.stats.PacketsDropped.Add(1)
			return
		}
		e.ingestValues(resp.Values)
	case wire.TagPush:
		push, err := wire.DecodePush(data)
		if err != nil {
			e.stats.PacketsDropped.Add(1)
			return
		}
		e.ingestValues(push.Values)
	case wire.TagPrune:
		// a light member keeps no push active set to prune from
		e.stats.PruneReceived.Add(1)
	default:
		e.stats.UnknownTag.Add(1)
	}
}

func (e *Engine) handlePing(data []byte, src net.UDPAddr) {
	ping, err := wire.DecodePing(data)
	if err != nil {
		e.stats.PacketsDropped.Add(1)
		return
	}
	h := wire.PongHash(ping.Token)
	pong := &wire.Pong{Originator: e.identity(), Hash: h}
	pong.Signature = e.sign(wire.PongSignableBytes(h))

	buf := make([]byte, wire.PongSize)
	if _, err := pong.Encode(buf); err != nil {
		return
	}
	e.fabric.SendBatch([]packetfabric.PacketBuffer{singlePacket(buf)}, src)
}

func (e *Engine) handlePong(data []byte) {
	pong, err := wire.DecodePong(data)
	if err != nil {
		e.stats.PacketsDropped.Add(1)
		return
	}
	e.stats.PongReceived.Add(1)
	e.mu.Lock()
	if p, ok := e.peers[pong.Originator]; ok {
		p.LastPong = time.Now()
	}
	e.mu.Unlock()
}

func (e *Engine) ingestValues(values []*wire.CrdsValue) {
	for _, cv := range values {
		e.ingestOne(cv)
	}
}

func (e *Engine) ingestOne(cv *wire.CrdsValue) {
	switch cv.Payload.VariantTag() {
	case wire.CrdsLegacyContactInfo:
		ci, ok := extractLegacy(cv.Payload)
		if !ok {
			e.stats.ValuesSkipped.Add(1)
			return
		}
		if e.table.Insert(ci.Identity, cv) {
			e.stats.ValuesAccepted.Add(1)
		}
		peer := peerFromLegacy(ci.Identity, ci)
		e.mu.Lock()
		e.mergePeer(peer)
		e.mu.Unlock()
	case wire.CrdsContactInfo:
		ci, ok := extractModern(cv.Payload)
		if !ok {
			e.stats.ValuesSkipped.Add(1)
			return
		}
		if e.table.Insert(ci.Identity, cv) {
			e.stats.ValuesAccepted.Add(1)
		}
		peer := peerFromModern(ci.Identity, ci)
		e.mu.Lock()
		e.mergePeer(peer)
		e.mu.Unlock()
	default:
		e.stats.ValuesSkipped.Add(1)
	}
}

// mergePeer updates or inserts a peer entry, preserving any already-known
// pong liveness. Caller must hold e.mu.
func (e *Engine) mergePeer(p Peer) {
	if existing, ok := e.peers[p.Identity]; ok {
		if p.Wallclock <= existing.Wallclock {
			return
		}
		p.LastPong = existing.LastPong
	}
	cp := p
	e.peers[p.Identity] = &cp
}

func (e *Engine) doPull(now time.Time) {
	e.mu.Lock()
	targets := e.pullTargets(e.cfg.PullFanout)
	e.mu.Unlock()
	value := e.selfCrdsValue(now)
	if value == nil {
		return
	}
	pr := &wire.PullRequest{Filter: wire.AcceptAllCrdsFilter(), Value: *value}
	buf := make([]byte, pr.Len())
	if _, err := pr.Encode(buf); err != nil {
		return
	}
	for _, addr := range targets {
		e.fabric.SendBatch([]packetfabric.PacketBuffer{singlePacket(buf)}, addr)
		e.stats.PullSent.Add(1)
	}
}

func (e *Engine) doPush(now time.Time) {
	e.mu.Lock()
	targets := e.broadcastTargets(e.cfg.MaxPushFanout)
	e.mu.Unlock()
	value := e.selfCrdsValue(now)
	identity := e.identity()
	if value == nil {
		return
	}
	push := &wire.Push{Sender: identity, Values: []*wire.CrdsValue{value}}
	buf := make([]byte, push.Len())
	if _, err := push.Encode(buf); err != nil {
		return
	}
	for _, addr := range targets {
		e.fabric.SendBatch([]packetfabric.PacketBuffer{singlePacket(buf)}, addr)
		e.stats.PushSent.Add(1)
	}
}

func (e *Engine) doPing() {
	e.mu.Lock()
	entrypoints := append([]Entrypoint{}, e.entrypoints...)
	e.mu.Unlock()
	identity := e.identity()
	for _, ep := range entrypoints {
		var token [32]byte
		rand.Read(token[:])
		ping := &wire.Ping{Originator: identity, Token: token}
		ping.Signature = e.sign(wire.PingSignableBytes(token))
		buf := make([]byte, wire.PingSize)
		if _, err := ping.Encode(buf); err != nil {
			continue
		}
		e.fabric.SendBatch([]packetfabric.PacketBuffer{singlePacket(buf)}, ep.Addr())
		e.stats.PingSent.Add(1)
	}
}

// broadcastTargets returns up to max random known peers' gossip
// addresses, falling back to every entrypoint if none are known yet.
// Caller must hold e.mu.
func (e *Engine) broadcastTargets(max int) []net.UDPAddr {
	if len(e.peers) == 0 {
		out := make([]net.UDPAddr, 0, len(e.entrypoints))
		for _, ep := range e.entrypoints {
			out = append(out, ep.Addr())
		}
		return out
	}
	addrs := make([]net.UDPAddr, 0, len(e.peers))
	for _, p := range e.peers {
		addrs = append(addrs, p.Gossip)
	}
	rand.Shuffle(len(addrs), func(i, j int) { addrs[i], addrs[j] = addrs[j], addrs[i] })
	if len(addrs) > max {
		addrs = addrs[:max]
	}
	return addrs
}

// pullTargets returns up to max random known peers' gossip addresses
// together with every entrypoint, deduplicated by address: pulls go out
// to both, unlike push and ping which target one or the other. Caller
// must hold e.mu.
func (e *Engine) pullTargets(max int) []net.UDPAddr {
	seen := make(map[string]bool)
	var out []net.UDPAddr
	add := func(addr net.UDPAddr) {
		key := addr.String()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, addr)
	}
	peerAddrs := make([]net.UDPAddr, 0, len(e.peers))
	for _, p := range e.peers {
		peerAddrs = append(peerAddrs, p.Gossip)
	}
	rand.Shuffle(len(peerAddrs), func(i, j int) { peerAddrs[i], peerAddrs[j] = peerAddrs[j], peerAddrs[i] })
	if len(peerAddrs) > max {
		peerAddrs = peerAddrs[:max]
	}
	for _, addr := range peerAddrs {
		add(addr)
	}
	for _, ep := range e.entrypoints {
		add(ep.Addr())
	}
	return out
}

// selfCrdsValue refreshes this node's wallclock and signs its contact
// info for outbound transmission. Locks e.mu itself; callers must not
// already hold it.
func (e *Engine) selfCrdsValue(now time.Time) *wire.CrdsValue {
	e.mu.Lock()
	self := e.self
	if self == nil {
		e.mu.Unlock()
		return nil
	}
	self.WallclockMs = uint64(now.UnixMilli())
	cv := &wire.CrdsValue{Payload: wire.NewLegacyContactPayload(self)}
	e.mu.Unlock()

	signable, err := cv.SignableBytes()
	if err != nil {
		return nil
	}
	cv.Signature = e.sign(signable)
	return cv
}

// identity returns the signer's public identity, or the zero identity if
// none is set. Caller must not hold e.mu when calling sign/identity from
// outside a locked section that already captured signer.
func (e *Engine) identity() wire.Identity {
	e.mu.Lock()
	s := e.signer
	e.mu.Unlock()
	if s == nil {
		return wire.Identity{}
	}
	return s.Identity()
}

func (e *Engine) sign(data []byte) wire.Signature {
	e.mu.Lock()
	s := e.signer
	e.mu.Unlock()
	if s == nil {
		return wire.Signature{}
	}
	return s.Sign(data)
}

func extractLegacy(p wire.CrdsValuePayload) (*wire.LegacyContactInfo, bool) {
	u, ok := p.(wire.LegacyContactUnwrapper)
	if !ok {
		return nil, false
	}
	return u.Unwrap(), true
}

func extractModern(p wire.CrdsValuePayload) (*wire.ContactInfo, bool) {
	u, ok := p.(wire.ContactUnwrapper)
	if !ok {
		return nil, false
	}
	return u.Unwrap(), true
}

func singlePacket(b []byte) packetfabric.PacketBuffer {
	var pb packetfabric.PacketBuffer
	pb.Len = copy(pb.Bytes[:], b)
	return pb
}

// boolFlag is a tiny mutex-guarded bool used as the engine's run flag.
type boolFlag struct {
	v  bool
	mu sync.Mutex
}

func (b *boolFlag) set(v bool) {
	b.mu.Lock()
	b.v = v
	b.mu.Unlock()
}

func (b *boolFlag) get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}
