/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quic

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"
)

// ErrTicketNotFound is returned when no cached ticket exists for a server
// name, or it has expired.
var ErrTicketNotFound = errors.New("quic: ticket not found")

var ticketBucket = []byte("tickets")

// Ticket is a cached 0-RTT session ticket: the server-issued opaque ticket
// bytes plus everything needed to decide validity and derive the early
// traffic secret on resumption.
type Ticket struct {
	ServerName       string
	TicketBytes      []byte
	ResumptionSecret []byte // 32 bytes
	AgeAdd           uint32
	MaxEarlyData     uint32
	ALPN             string
	CreatedAtMs      uint64
	LifetimeMs       uint64
}

func (t Ticket) valid(nowMs uint64) bool {
	return nowMs >= t.CreatedAtMs && nowMs-t.CreatedAtMs < t.LifetimeMs
}

// TicketStore persists session tickets in a bbolt database, zstd-compressed
// on disk, keyed by server name.
type TicketStore struct {
	mtx sync.Mutex
	db  *bolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenTicketStore opens (creating if necessary) a bbolt-backed ticket cache
// at path.
func OpenTicketStore(path string) (*TicketStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ticketBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &TicketStore{db: db, enc: enc, dec: dec}, nil
}

// Close closes the underlying database.
func (s *TicketStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// Put stores (overwriting any existing entry for the same server name), a
// ticket compressed with zstd.
func (s *TicketStore) Put(t Ticket) error {
	raw := encodeTicket(t)
	s.mtx.Lock()
	compressed := s.enc.EncodeAll(raw, nil)
	s.mtx.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ticketBucket).Put([]byte(t.ServerName), compressed)
	})
}

// Get returns the cached ticket for serverName if present and not expired
// as of nowMs.
func (s *TicketStore) Get(serverName string, nowMs uint64) (Ticket, error) {
	var compressed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(ticketBucket).Get([]byte(serverName))
		if v == nil {
			return ErrTicketNotFound
		}
		compressed = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.mtx.Lock()
	raw, err := s.dec.DecodeAll(compressed, nil)
	s.mtx.Unlock()
	if err != nil {
		return Ticket{}, err
	}
	t, err := decodeTicket(raw)
	if err != nil {
		return Ticket{}, err
	}
	if !t.valid(nowMs) {
		return Ticket{}, ErrTicketNotFound
	}
	return t, nil
}

func encodeTicket(t Ticket) []byte {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, []byte(t.ServerName))
	writeLenPrefixed(&buf, t.TicketBytes)
	writeLenPrefixed(&buf, t.ResumptionSecret)
	writeU32(&buf, t.AgeAdd)
	writeU32(&buf, t.MaxEarlyData)
	writeLenPrefixed(&buf, []byte(t.ALPN))
	writeU64(&buf, t.CreatedAtMs)
	writeU64(&buf, t.LifetimeMs)
	return buf.Bytes()
}

func decodeTicket(raw []byte) (Ticket, error) {
	r := bytes.NewReader(raw)
	name, err := readLenPrefixed(r)
	if err != nil {
		return Ticket{}, err
	}
	ticketBytes, err := readLenPrefixed(r)
	if err != nil {
		return Ticket{}, err
	}
	secret, err := readLenPrefixed(r)
	if err != nil {
		return Ticket{}, err
	}
	ageAdd, err := readU32(r)
	if err != nil {
		return Ticket{}, err
	}
	maxEarly, err := readU32(r)
	if err != nil {
		return Ticket{}, err
	}
	alpn, err := readLenPrefixed(r)
	if err != nil {
		return Ticket{}, err
	}
	createdAt, err := readU64(r)
	if err != nil {
		return Ticket{}, err
	}
	lifetime, err := readU64(r)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{
		ServerName:       string(name),
		TicketBytes:      ticketBytes,
		ResumptionSecret: secret,
		AgeAdd:           ageAdd,
		MaxEarlyData:     maxEarly,
		ALPN:             string(alpn),
		CreatedAtMs:      createdAt,
		LifetimeMs:       lifetime,
	}, nil
}

// DeriveEarlySecret computes the 0-RTT early-data traffic secret from a
// ticket's resumption secret, via the "c e traffic" label over the
// transcript hash of ClientHello so far.
func DeriveEarlySecret(resumptionSecret, clientHelloTranscript []byte) []byte {
	return expandLabel(resumptionSecret, LabelEarlyClient, clientHelloTranscript, hashLen)
}

// EarlyDataBuffer buffers application bytes written under 0-RTT keys in
// case the server rejects early data and they must be retransmitted once
// the full handshake completes.
type EarlyDataBuffer struct {
	mtx     sync.Mutex
	frames  [][]byte
	cleared bool
}

// Write appends an early-write frame to the buffer.
func (b *EarlyDataBuffer) Write(frame []byte) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.cleared {
		return
	}
	b.frames = append(b.frames, append([]byte{}, frame...))
}

// Accept clears the buffer: the server accepted 0-RTT, nothing needs
// retransmission.
func (b *EarlyDataBuffer) Accept() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.frames = nil
	b.cleared = true
}

// Reject returns the buffered frames for retransmission under 1-RTT keys
// and clears the buffer.
func (b *EarlyDataBuffer) Reject() [][]byte {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	out := b.frames
	b.frames = nil
	b.cleared = true
	return out
}
