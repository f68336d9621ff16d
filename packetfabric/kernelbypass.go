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

	"golang.org/x/sys/unix"
)

// kernelBypassSocket is one registered port's endpoint on a shared
// Classifier. Packets handed to the classifier's dispatch for this port
// land on inbox as a secondary path for traffic sharing a host-wide
// classifier.
type kernelBypassSocket struct {
	fd      int
	port    uint16
	classif *Classifier
	inbox   chan PacketBuffer
}

// KernelBypassBackend implements Fabric over a non-blocking raw UDP
// socket read and written packet-by-packet inside one batch call, the
// closest portable approximation of a ring-buffer NIC queue pair
// available without a platform-specific driver binding. Multiple ports on
// the same host may share one Classifier, registered before it attaches.
type KernelBypassBackend struct {
	sock    *kernelBypassSocket
	running bool
}

// OpenKernelBypass binds port on all interfaces and, if classif is
// non-nil, registers the resulting socket with it. classif must not yet be
// attached: registering after attachment would race an in-flight packet
// into a socket not yet ready for it.
func OpenKernelBypass(port uint16, classif *Classifier) (*KernelBypassBackend, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, unix.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port)}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	sock := &kernelBypassSocket{fd: fd, port: port, classif: classif, inbox: make(chan PacketBuffer, 1024)}
	if classif != nil {
		if err := classif.Register(port, sock); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &KernelBypassBackend{sock: sock, running: true}, nil
}

// RecvBatch drains up to len(batch.Slots()) datagrams with successive
// non-blocking Recvfrom calls, stopping at the first EAGAIN, then tops up
// from whatever the classifier has separately steered into this socket's
// inbox.
func (b *KernelBypassBackend) RecvBatch(batch *Batch) (int, error) {
	if !b.running {
		return 0, ErrClosed
	}
	slots := batch.Slots()
	now := time.Now()
	n := 0
	for n < len(slots) {
		nr, from, err := unix.Recvfrom(b.sock.fd, slots[n].Bytes[:], 0)
		if err != nil {
			break
		}
		slots[n].Len = nr
		slots[n].Timestamp = now
		if ip4, ok := from.(*unix.SockaddrInet4); ok {
			slots[n].SrcAddr = net.UDPAddr{IP: net.IP(ip4.Addr[:]), Port: ip4.Port}
		}
		n++
	}
	for n < len(slots) {
		select {
		case pb := <-b.sock.inbox:
			slots[n] = pb
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// SendBatch writes each of pkts to dst with a non-blocking Sendto call,
// stopping at the first error and returning the count sent so far.
func (b *KernelBypassBackend) SendBatch(pkts []PacketBuffer, dst net.UDPAddr) (int, error) {
	if !b.running {
		return 0, ErrClosed
	}
	sa := &unix.SockaddrInet4{Port: dst.Port}
	copy(sa.Addr[:], dst.IP.To4())
	sent := 0
	for _, p := range pkts {
		if err := unix.Sendto(b.sock.fd, p.Data(), 0, sa); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Close releases the underlying file descriptor. Detaching this socket
// from a shared classifier's port map is the caller's responsibility,
// performed by rebuilding the classifier while it is detached.
func (b *KernelBypassBackend) Close() error {
	if !b.running {
		return nil
	}
	b.running = false
	return unix.Close(b.sock.fd)
}
