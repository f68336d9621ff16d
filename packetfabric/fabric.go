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
	"net"
)

// ErrClosed is returned by a backend's Recv/SendBatch once Close has been
// called.
var ErrClosed = errors.New("packetfabric: backend is closed")

// Fabric is the uniform batch I/O surface every backend implements:
// receive what is queued (an empty batch on no data, never blocking
// indefinitely), send a batch to one destination, and close.
type Fabric interface {
	RecvBatch(batch *Batch) (int, error)
	SendBatch(pkts []PacketBuffer, dst net.UDPAddr) (int, error)
	Close() error
}

// Backend names a selected Fabric implementation, reported for logging.
type Backend string

const (
	BackendKernelBypass Backend = "kernel-bypass"
	BackendAsyncBatched Backend = "async-batched"
	BackendPortable     Backend = "portable"
)

// Open selects the best available backend for port in priority order:
// kernel-bypass first (whenever its socket can be created and bound;
// classif may be nil, in which case no classifier registration happens),
// then async-batched, then the portable fallback.
// Each failed tier is logged by the caller via the returned Backend value
// when err is nil; Open itself only reports the final outcome.
func Open(port uint16, classif *Classifier) (Fabric, Backend, error) {
	if kb, err := OpenKernelBypass(port, classif); err == nil {
		return kb, BackendKernelBypass, nil
	}
	if ab, err := OpenAsyncBatched(port); err == nil {
		return ab, BackendAsyncBatched, nil
	}
	pb, err := OpenPortable(port)
	if err != nil {
		return nil, "", err
	}
	return pb, BackendPortable, nil
}
