/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import "errors"

// ErrHostUnresolved is returned by resolveHost when no A record is found
// for a configured entrypoint hostname.
var ErrHostUnresolved = errors.New("gossip: entrypoint host did not resolve")

// ErrNotRunning is returned by operations that require the engine's
// receive loop to already be started.
var ErrNotRunning = errors.New("gossip: engine is not running")
