/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"crypto/ed25519"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/vexor-validator/vexor/internal/corelog"
	"github.com/vexor-validator/vexor/packetfabric"
)

// maxConnectionIDLen is the QUIC v1 ceiling on connection id length.
const maxConnectionIDLen = 20

// TLS cipher-suite ids negotiated for the two supported AEADs.
const (
	CipherSuiteAES128GCMSHA256        uint16 = 0x1301
	CipherSuiteChaCha20Poly1305SHA256 uint16 = 0x1303
)

// ConnState is a connection's lifecycle position.
type ConnState int

const (
	ConnInitial ConnState = iota
	ConnHandshake
	ConnConnected
	ConnClosing
	ConnDraining
	ConnClosed
)

// TransportParams are the peer's limits as recorded on a Connection.
// OpenStream bounds each new stream by MaxStreamData. No handshake code in
// this package encodes or decodes these parameters, and
// DisableActiveMigration here is not consulted: path migration follows
// Transport.SetDisableActiveMigration.
type TransportParams struct {
	MaxIdleTimeoutMs       uint64
	MaxStreamData          uint64
	MaxData                uint64
	DisableActiveMigration bool
}

// newLocalConnectionID returns a fresh locally issued connection id: a
// version-4 UUID's 16 random bytes, well within the 20-byte wire limit.
func newLocalConnectionID() []byte {
	id := uuid.New()
	return append([]byte{}, id[:]...)
}

// ErrConnectionNotFound is returned when an operation names a connection id
// the transport has no state for.
var ErrConnectionNotFound = errors.New("quic: connection not found")

// Connection holds all per-connection QUIC state: the handshake machine,
// per-level packet AEADs, loss detection and congestion control, the path
// set and any 0-RTT early-write buffer.
type Connection struct {
	DCID []byte // remote-chosen connection id this server answers on
	SCID []byte // locally issued connection id offered to the peer

	Handshake *ServerHandshake
	Initial   InitialSecrets

	HandshakeKeys struct {
		Client, Server DirectionalKeys
	}
	AppKeys struct {
		Client, Server DirectionalKeys
	}

	Paths *PathSet
	Early *EarlyDataBuffer

	Suite Suite

	PeerParams TransportParams

	mtx     sync.Mutex
	state   ConnState
	streams map[uint64]*Stream
	nextPN  [3]uint64 // per-encryption-level packet number spaces
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnState {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

// SetState moves the connection's lifecycle forward. Transitions backward
// out of ConnClosed are ignored.
func (c *Connection) SetState(s ConnState) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.state == ConnClosed {
		return
	}
	c.state = s
}

// OpenStream returns the stream with the given id, creating it (bounded
// by the peer's advertised per-stream data limit) on first use.
func (c *Connection) OpenStream(id uint64) *Stream {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if s, ok := c.streams[id]; ok {
		return s
	}
	s := NewStream(id, c.PeerParams.MaxStreamData, c.PeerParams.MaxStreamData)
	c.streams[id] = s
	return s
}

// StreamByID looks up an existing stream without creating one.
func (c *Connection) StreamByID(id uint64) (*Stream, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	s, ok := c.streams[id]
	return s, ok
}

// NextPacketNumber allocates the next monotonically increasing packet
// number for the given encryption level (0 initial, 1 handshake, 2
// application).
func (c *Connection) NextPacketNumber(level int) uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if level < 0 || level >= len(c.nextPN) {
		level = len(c.nextPN) - 1
	}
	pn := c.nextPN[level]
	c.nextPN[level]++
	return pn
}

// Transport manages the set of live connections multiplexed over a single
// packetfabric.Fabric socket, and the node's long-term Ed25519 identity key
// used to sign CertificateVerify.
type Transport struct {
	mtx         sync.Mutex
	fab         packetfabric.Fabric
	log         *corelog.Logger
	identityKey ed25519.PrivateKey
	tickets     *TicketStore
	conns       map[string]*Connection

	disableActiveMigration bool
}

// NewTransport constructs a Transport over an open Fabric. tickets may be
// nil to disable 0-RTT resumption.
func NewTransport(fab packetfabric.Fabric, identityKey ed25519.PrivateKey, tickets *TicketStore, log *corelog.Logger) *Transport {
	if log == nil {
		log = corelog.NewDiscard()
	}
	return &Transport{
		fab:         fab,
		log:         log,
		identityKey: identityKey,
		tickets:     tickets,
		conns:       make(map[string]*Connection),
	}
}

// SetDisableActiveMigration configures whether this transport's connections
// forbid the peer from migrating paths after the handshake.
func (t *Transport) SetDisableActiveMigration(disable bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.disableActiveMigration = disable
}

// OpenServerConnection begins server-side state for a new connection keyed
// by its destination connection ID, deriving initial secrets and starting
// the handshake state machine.
func (t *Transport) OpenServerConnection(dcid []byte) *Connection {
	initial := DeriveInitialSecrets(dcid)
	c := &Connection{
		DCID:      append([]byte{}, dcid...),
		SCID:      newLocalConnectionID(),
		Handshake: NewServerHandshake(t.identityKey),
		Initial:   initial,
		Paths:     NewPathSet(t.disableActiveMigration),
		Early:     &EarlyDataBuffer{},
		Suite:     SuiteAES128GCM,
		streams:   make(map[uint64]*Stream),
	}

	t.mtx.Lock()
	t.conns[string(dcid)] = c
	t.mtx.Unlock()
	return c
}

// Connection looks up live connection state by destination connection ID.
func (t *Transport) Connection(dcid []byte) (*Connection, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	c, ok := t.conns[string(dcid)]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return c, nil
}

// CloseConnection discards a connection's state.
func (t *Transport) CloseConnection(dcid []byte) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	delete(t.conns, string(dcid))
}

// DeriveHandshakeKeys installs the handshake-level traffic keys for a
// connection once the (EC)DHE shared secret and its resulting handshake
// secret are available, keyed off the running transcript hash at the point
// ServerHello was sent.
func (c *Connection) DeriveHandshakeKeys(handshakeSecret []byte) {
	clientSecret := DeriveTrafficSecret(handshakeSecret, LabelHandshakeClient, c.Handshake.TranscriptHash())
	serverSecret := DeriveTrafficSecret(handshakeSecret, LabelHandshakeServer, c.Handshake.TranscriptHash())
	c.HandshakeKeys.Client = deriveDirectional(clientSecret)
	c.HandshakeKeys.Server = deriveDirectional(serverSecret)
}

// DeriveAppKeys installs the 1-RTT application traffic keys once the master
// secret is available, keyed off the transcript hash at the point the
// server's Finished message was sent.
func (c *Connection) DeriveAppKeys(masterSecret []byte) {
	clientSecret := DeriveTrafficSecret(masterSecret, LabelAppClient, c.Handshake.TranscriptHash())
	serverSecret := DeriveTrafficSecret(masterSecret, LabelAppServer, c.Handshake.TranscriptHash())
	c.AppKeys.Client = deriveDirectional(clientSecret)
	c.AppKeys.Server = deriveDirectional(serverSecret)
}

// ClientAEAD and ServerAEAD build the packet AEAD for the current
// application-level keys in the requested direction.
func (c *Connection) ClientAEAD() (*PacketAEAD, error) {
	return NewPacketAEAD(c.Suite, c.AppKeys.Client)
}

func (c *Connection) ServerAEAD() (*PacketAEAD, error) {
	return NewPacketAEAD(c.Suite, c.AppKeys.Server)
}

// OnPacketFromAddr feeds an observed source address to the connection's
// path set, starting validation of a new path if needed.
func (c *Connection) OnPacketFromAddr(addr net.UDPAddr, nowMs uint64) (*Path, error) {
	return c.Paths.OnPacketFromAddr(addr, nowMs)
}
