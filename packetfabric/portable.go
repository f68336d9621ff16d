/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package packetfabric

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// PortableBackend implements Fabric over golang.org/x/net/ipv4's batch
// ReadBatch/WriteBatch, the universal fallback available on every
// platform regardless of privilege level.
type PortableBackend struct {
	conn    *net.UDPConn
	pconn   *ipv4.PacketConn
	running bool
}

// OpenPortable binds port on all interfaces using a plain non-blocking
// datagram socket.
func OpenPortable(port uint16) (*PortableBackend, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, err
	}
	return &PortableBackend{conn: conn, pconn: ipv4.NewPacketConn(conn), running: true}, nil
}

// RecvBatch reads up to len(batch.Slots()) packets with a single
// ReadBatch syscall when the platform supports recvmmsg, falling back
// transparently (inside the x/net implementation) to sequential reads
// otherwise.
func (b *PortableBackend) RecvBatch(batch *Batch) (int, error) {
	if !b.running {
		return 0, ErrClosed
	}
	slots := batch.Slots()
	msgs := make([]ipv4.Message, len(slots))
	for i := range slots {
		msgs[i].Buffers = [][]byte{slots[i].Bytes[:]}
	}
	b.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	n, err := b.pconn.ReadBatch(msgs, 0)
	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return 0, err
	}
	now := time.Now()
	for i := 0; i < n; i++ {
		slots[i].Len = msgs[i].N
		slots[i].Timestamp = now
		if udpAddr, ok := msgs[i].Addr.(*net.UDPAddr); ok {
			slots[i].SrcAddr = *udpAddr
		}
	}
	return n, nil
}

// SendBatch writes len(pkts) packets to dst with a single WriteBatch
// syscall when supported.
func (b *PortableBackend) SendBatch(pkts []PacketBuffer, dst net.UDPAddr) (int, error) {
	if !b.running {
		return 0, ErrClosed
	}
	msgs := make([]ipv4.Message, len(pkts))
	for i, p := range pkts {
		msgs[i].Buffers = [][]byte{p.Data()}
		addr := dst
		msgs[i].Addr = &addr
	}
	return b.pconn.WriteBatch(msgs, 0)
}

// Close releases the underlying socket.
func (b *PortableBackend) Close() error {
	if !b.running {
		return nil
	}
	b.running = false
	return b.conn.Close()
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
