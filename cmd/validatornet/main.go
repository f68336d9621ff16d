/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command validatornet wires up one instance of the network I/O and
// gossip/transport core: a gossip engine, shred and transaction
// pipelines, and a QUIC transport, all sharing the packet fabric and
// ambient logging/config stack. It is example wiring, not a full
// validator: the bank, ledger store, and leader schedule it depends on
// are stub adapters satisfying this module's capability interfaces.
package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/vexor-validator/vexor/crds"
	"github.com/vexor-validator/vexor/gossip"
	"github.com/vexor-validator/vexor/internal/corelog"
	"github.com/vexor-validator/vexor/internal/nodeconfig"
	"github.com/vexor-validator/vexor/packetfabric"
	"github.com/vexor-validator/vexor/quic"
	"github.com/vexor-validator/vexor/shred"
	"github.com/vexor-validator/vexor/txpipeline"
	"github.com/vexor-validator/vexor/wire"
)

const defaultConfigLoc = `/opt/vexor/etc/validatornet.conf`

var (
	configOverride = flag.String("config-file-override", "", "Override location for configuration file")
	ticketStoreLoc = flag.String("ticket-store", "/opt/vexor/etc/tickets.bbolt", "Path to the 0-RTT session ticket store")
)

// discardLedger is a stub Ledger: a real deployment wires this to the
// external ledger store; this core treats it as an opaque collaborator.
type discardLedger struct{ log *corelog.Logger }

func (d discardLedger) StoreShred(slot uint64, index uint32, payload []byte) {
	d.log.Debug("shred stored", corelog.KV{Key: "slot", Value: fmt.Sprint(slot)}, corelog.KV{Key: "index", Value: fmt.Sprint(index)})
}

// staticLeaderSchedule is a stub LeaderSchedule for standalone wiring;
// a real deployment substitutes the bank's slot-leader lookup.
type staticLeaderSchedule struct{ leader wire.Identity }

func (s staticLeaderSchedule) LeaderForSlot(slot uint64) (wire.Identity, bool) {
	return s.leader, true
}

// gossipRepairPeers adapts a gossip.Engine's peer snapshot to
// shred.PeerSource without the shred pipeline reaching back into the
// engine's internals.
type gossipRepairPeers struct{ engine *gossip.Engine }

func (g gossipRepairPeers) RepairCandidates() []shred.RepairPeer {
	peers := g.engine.Peers()
	out := make([]shred.RepairPeer, 0, len(peers))
	for _, p := range peers {
		if !p.HasServeRepair() {
			continue
		}
		out = append(out, shred.RepairPeer{Identity: p.Identity, ServeRepair: p.ServeRepair, LastPong: p.LastPong})
	}
	return out
}

func main() {
	flag.Parse()

	confLoc := defaultConfigLoc
	if *configOverride != "" {
		confLoc = *configOverride
	}

	b, err := os.ReadFile(confLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", confLoc, err)
		os.Exit(1)
	}
	cfg, err := nodeconfig.LoadConfigBytes(b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config %s: %v\n", confLoc, err)
		os.Exit(1)
	}

	log := corelog.New(os.Stderr, corelog.ParseLevel(cfg.LogLevel), path.Base(os.Args[0]))

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		log.Fatal("failed to generate identity key", corelog.KVErr(err))
	}
	signer := gossip.NewEd25519Signer(priv)

	table := crds.New()

	gossipFabric, backend, err := packetfabric.Open(cfg.Gossip_Port, nil)
	if err != nil {
		log.Fatal("failed to open gossip fabric", corelog.KVErr(err))
	}
	log.Info("gossip fabric opened", corelog.KV{Key: "backend", Value: string(backend)})

	cfgGossip := gossip.Config{
		GossipPort:      cfg.Gossip_Port,
		PullInterval:    cfg.PullInterval(),
		PushInterval:    cfg.PushInterval(),
		PingInterval:    cfg.PingInterval(),
		PruneInterval:   cfg.PruneInterval(),
		PruneTimeoutMs:  30_000,
		MaxPushFanout:   cfg.Max_Push_Fanout,
		PullFanout:      3,
		CycleSleep:      10 * time.Millisecond,
		WallclockMaxAge: 15 * time.Second,
	}
	engine := gossip.New(cfgGossip, table, gossipFabric, log)
	engine.SetKeypair(signer)
	for _, ep := range cfg.Gossip_Entrypoint {
		host, portStr, splitErr := net.SplitHostPort(ep)
		if splitErr != nil {
			log.Warn("invalid entrypoint", corelog.KV{Key: "entrypoint", Value: ep}, corelog.KVErr(splitErr))
			continue
		}
		var port uint16
		fmt.Sscanf(portStr, "%d", &port)
		if err := engine.AddEntrypoint(host, port); err != nil {
			log.Warn("entrypoint add failed", corelog.KV{Key: "entrypoint", Value: ep}, corelog.KVErr(err))
		}
	}
	engine.SetSelf(signer.Identity(), net.IPv4zero, gossip.SelfPorts{
		Gossip:      cfg.Gossip_Port,
		TVU:         cfg.Tvu_Port,
		Repair:      cfg.Repair_Port,
		TPU:         cfg.Tpu_Port,
		ServeRepair: cfg.Repair_Port,
	}, cfg.Shred_Version)

	tvuFabric, tvuBackend, err := packetfabric.Open(cfg.Tvu_Port, nil)
	if err != nil {
		log.Fatal("failed to open tvu fabric", corelog.KVErr(err))
	}
	repairFabric, repairBackend, err := packetfabric.Open(cfg.Repair_Port, nil)
	if err != nil {
		log.Fatal("failed to open repair fabric", corelog.KVErr(err))
	}
	log.Info("shred fabrics opened", corelog.KV{Key: "tvu_backend", Value: string(tvuBackend)}, corelog.KV{Key: "repair_backend", Value: string(repairBackend)})

	shredPipeline := shred.New(shred.Config{TVUPort: cfg.Tvu_Port, RepairPort: cfg.Repair_Port}, tvuFabric, repairFabric, log)
	shredPipeline.SetLedger(discardLedger{log: log})
	shredPipeline.SetLeaderSchedule(staticLeaderSchedule{leader: signer.Identity()})
	shredPipeline.SetGossip(gossipRepairPeers{engine: engine})
	shredPipeline.SetSigner(signer.Identity(), signer.Sign)

	tpuFabric, tpuBackend, err := packetfabric.Open(cfg.Tpu_Port, nil)
	if err != nil {
		log.Fatal("failed to open tpu fabric", corelog.KVErr(err))
	}
	log.Info("tpu fabric opened", corelog.KV{Key: "backend", Value: string(tpuBackend)})

	txCfg := txpipeline.DefaultConfig()
	txCfg.Port = cfg.Tpu_Port
	txCfg.QueueCapacity = cfg.Tx_Queue_Capacity
	txPipeline := txpipeline.New(txCfg, tpuFabric, log)

	tickets, err := quic.OpenTicketStore(*ticketStoreLoc)
	if err != nil {
		log.Warn("failed to open ticket store, 0-RTT resumption disabled", corelog.KVErr(err))
		tickets = nil
	}
	quicFabric, quicBackend, err := packetfabric.Open(cfg.Tpu_Port+1, nil)
	if err != nil {
		log.Fatal("failed to open quic fabric", corelog.KVErr(err))
	}
	log.Info("quic fabric opened", corelog.KV{Key: "backend", Value: string(quicBackend)})
	transport := quic.NewTransport(quicFabric, priv, tickets, log)
	transport.SetDisableActiveMigration(false)

	shredPipeline.Start()
	txPipeline.Start()
	go engine.Run()

	go func() {
		for shredPipeline.Running() {
			shredPipeline.ProcessPackets()
		}
	}()
	go func() {
		for txPipeline.Running() {
			txPipeline.ProcessPackets()
		}
	}()

	log.Info("validatornet started", corelog.KV{Key: "identity", Value: fmt.Sprintf("%x", signer.Identity())})

	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	sig := <-quitSig
	log.Info("shutting down", corelog.KV{Key: "signal", Value: sig.String()})

	engine.Stop()
	shredPipeline.Stop()
	txPipeline.Stop()
	if tickets != nil {
		tickets.Close()
	}
}
