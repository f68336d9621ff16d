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
	"sync"
	"sync/atomic"
	"time"
)

// ringSize is the fixed depth of the async-batched backend's submission
// and completion rings. Must be a power of two so index wrapping is a
// plain mask.
const ringSize = 256

// completionRing is a single-producer/single-consumer ring of received
// packets. The producer (the backend's receive goroutine) publishes with
// a release-store of tail; the consumer (RecvBatch) observes new entries
// with an acquire-load of tail and retires them with a release-store of
// head.
type completionRing struct {
	mtx  sync.Mutex
	cond *sync.Cond
	buf  [ringSize]PacketBuffer
	head atomic.Uint64 // next slot the consumer will read
	tail atomic.Uint64 // next slot the producer will write
}

func newCompletionRing() *completionRing {
	r := &completionRing{}
	r.cond = sync.NewCond(&r.mtx)
	return r
}

func (r *completionRing) push(pb PacketBuffer) {
	r.mtx.Lock()
	tail := r.tail.Load()
	if tail-r.head.Load() >= ringSize {
		r.mtx.Unlock()
		return // completion ring full: drop, mirroring a saturated NIC queue
	}
	r.buf[tail%ringSize] = pb
	r.tail.Store(tail + 1) // release: publishes buf[tail%ringSize]
	r.cond.Signal()
	r.mtx.Unlock()
}

// submitAndWait blocks until at least minComplete completions are
// observable (an acquire-load of tail-head), or timeout elapses, then
// drains up to max of them into out.
func (r *completionRing) submitAndWait(minComplete int, max int, timeout time.Duration, out []PacketBuffer) int {
	deadline := time.Now().Add(timeout)
	r.mtx.Lock()
	for int(r.tail.Load()-r.head.Load()) < minComplete {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitCh := make(chan struct{})
		go func() { time.Sleep(remaining); r.cond.Broadcast(); close(waitCh) }()
		r.cond.Wait()
	}
	n := 0
	head := r.head.Load()
	tail := r.tail.Load() // acquire: observes everything published up to tail
	for n < max && head+uint64(n) < tail {
		out[n] = r.buf[(head+uint64(n))%ringSize]
		n++
	}
	r.head.Store(head + uint64(n))
	r.mtx.Unlock()
	return n
}

// AsyncBatchedBackend implements Fabric with a background goroutine that
// continuously reads the underlying socket into a completion ring, and a
// submission path that retries partial writes rather than dropping them.
type AsyncBatchedBackend struct {
	conn    *net.UDPConn
	ring    *completionRing
	running atomic.Bool
}

// OpenAsyncBatched binds port and starts the background completion-filling
// goroutine.
func OpenAsyncBatched(port uint16) (*AsyncBatchedBackend, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, err
	}
	b := &AsyncBatchedBackend{conn: conn, ring: newCompletionRing()}
	b.running.Store(true)
	go b.pump()
	return b, nil
}

func (b *AsyncBatchedBackend) pump() {
	buf := make([]byte, MaxPacketSize)
	for b.running.Load() {
		b.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, src, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		var pb PacketBuffer
		pb.Len = copy(pb.Bytes[:], buf[:n])
		pb.SrcAddr = *src
		pb.Timestamp = time.Now()
		b.ring.push(pb)
	}
}

// RecvBatch waits for at least one completion (up to 50ms) and drains up
// to len(batch.Slots()) of them.
func (b *AsyncBatchedBackend) RecvBatch(batch *Batch) (int, error) {
	if !b.running.Load() {
		return 0, ErrClosed
	}
	slots := batch.Slots()
	return b.ring.submitAndWait(1, len(slots), 50*time.Millisecond, slots), nil
}

// SendBatch writes each packet in pkts to dst, retrying a short-write
// submission rather than treating it as a dropped packet.
func (b *AsyncBatchedBackend) SendBatch(pkts []PacketBuffer, dst net.UDPAddr) (int, error) {
	if !b.running.Load() {
		return 0, ErrClosed
	}
	sent := 0
	for _, p := range pkts {
		data := p.Data()
		for len(data) > 0 {
			n, err := b.conn.WriteToUDP(data, &dst)
			if err != nil {
				return sent, err
			}
			data = data[n:]
		}
		sent++
	}
	return sent, nil
}

// Close stops the pump goroutine and closes the socket.
func (b *AsyncBatchedBackend) Close() error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	return b.conn.Close()
}
