/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import (
	"net"
	"time"

	"github.com/vexor-validator/vexor/wire"
)

// Peer is one entry in the engine's local directory of known cluster
// members, built entirely from accepted contact-info CRDS values.
type Peer struct {
	Identity    wire.Identity
	Gossip      net.UDPAddr
	ServeRepair net.UDPAddr // zero value if the peer never advertised one
	Wallclock   uint64
	LastPong    time.Time // zero if never ponged
}

// HasServeRepair reports whether p advertised a usable repair address.
func (p Peer) HasServeRepair() bool {
	return p.ServeRepair.Port != 0 && p.ServeRepair.IP != nil && !p.ServeRepair.IP.IsUnspecified()
}

func peerFromLegacy(identity wire.Identity, ci *wire.LegacyContactInfo) Peer {
	return Peer{
		Identity:    identity,
		Gossip:      net.UDPAddr{IP: ci.Gossip.IP, Port: int(ci.Gossip.Port)},
		ServeRepair: net.UDPAddr{IP: ci.ServeRepair.IP, Port: int(ci.ServeRepair.Port)},
		Wallclock:   ci.WallclockMs,
	}
}

func peerFromModern(identity wire.Identity, ci *wire.ContactInfo) Peer {
	p := Peer{Identity: identity, Wallclock: ci.WallclockMs}
	ports := ci.AbsolutePorts()
	for i, sock := range ci.Sockets {
		if int(sock.AddrIndex) >= len(ci.Addresses) || i >= len(ports) {
			continue
		}
		addr := net.UDPAddr{IP: ci.Addresses[sock.AddrIndex].IP, Port: int(ports[i])}
		switch sock.Tag {
		case wire.SocketTagGossip:
			p.Gossip = addr
		case wire.SocketTagServeRepair:
			p.ServeRepair = addr
		}
	}
	return p
}
