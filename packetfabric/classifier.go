/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package packetfabric

import (
	"errors"
	"sync"
)

// ErrClassifierAttached is returned by Register when called after Attach.
// Registering a port after the classifier has attached to the interface
// would race an in-flight packet into a socket that is not yet ready to
// receive it, so the ordering is enforced rather than merely documented.
var ErrClassifierAttached = errors.New("packetfabric: cannot register port on an attached classifier")

// Classifier is the shared in-kernel packet classifier every kernel-bypass
// backend on a host may register its listening ports with. All ports must
// register before the classifier attaches; attaching is a one-way
// transition and registration after it is rejected.
type Classifier struct {
	mtx      sync.Mutex
	ports    map[uint16]*kernelBypassSocket
	attached bool
}

// NewClassifier returns an unattached Classifier ready for port
// registration.
func NewClassifier() *Classifier {
	return &Classifier{ports: make(map[uint16]*kernelBypassSocket)}
}

// Register adds sock as the destination for traffic on port. It fails once
// the classifier has attached.
func (c *Classifier) Register(port uint16, sock *kernelBypassSocket) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.attached {
		return ErrClassifierAttached
	}
	c.ports[port] = sock
	return nil
}

// Attach finalizes the classifier's port set and begins steering matching
// traffic to each registered socket. It is idempotent.
func (c *Classifier) Attach() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.attached = true
}

// Detach reverses Attach, allowing further Register calls. Detaching an
// unattached classifier is a no-op.
func (c *Classifier) Detach() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.attached = false
}

// dispatch routes a packet observed for port to its registered socket, if
// any and if the classifier is attached. It never blocks: a full inbox
// drops the packet. No backend in this package runs a demultiplexing loop
// that calls it.
func (c *Classifier) dispatch(port uint16, pb PacketBuffer) {
	c.mtx.Lock()
	sock, ok := c.ports[port]
	attached := c.attached
	c.mtx.Unlock()
	if !ok || !attached {
		return
	}
	select {
	case sock.inbox <- pb:
	default:
		// backpressure: drop rather than block the shared demux loop
	}
}
