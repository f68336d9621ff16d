/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

// LegacyContactInfoNumSockets is the fixed number of socket addresses
// carried by LegacyContactInfo, in wire order.
const LegacyContactInfoNumSockets = 10

// LegacyContactInfoSizeV4 is the exact serialized length of a
// LegacyContactInfo when every socket address is IPv4: 32 (identity) +
// 10*10 (sockets) + 8 (wallclock) + 2 (shred version) = 142.
const LegacyContactInfoSizeV4 = IdentitySize + LegacyContactInfoNumSockets*SocketAddrV4Size + 8 + 2

// Socket tags recognized in modern ContactInfo socket entries.
const (
	SocketTagGossip       uint8 = 0
	SocketTagRepair       uint8 = 1
	SocketTagRPC          uint8 = 2
	SocketTagRPCPubsub    uint8 = 3
	SocketTagServeRepair  uint8 = 4
	SocketTagTPU          uint8 = 5
	SocketTagTPUForwards  uint8 = 6
	SocketTagTPUForwardsQ uint8 = 7
	SocketTagTPUQuic      uint8 = 8
	SocketTagTPUVote      uint8 = 9
	SocketTagTVU          uint8 = 10
	SocketTagTVUQuic      uint8 = 11
)

// LegacyContactInfo is the original fixed-layout cluster contact record:
// identity, ten socket addresses in a fixed order, wallclock, shred version.
type LegacyContactInfo struct {
	Identity     Identity
	Gossip       SocketAddress
	TVU          SocketAddress
	TVUForwards  SocketAddress
	Repair       SocketAddress
	TPU          SocketAddress
	TPUForwards  SocketAddress
	TPUVote      SocketAddress
	RPC          SocketAddress
	RPCPubsub    SocketAddress
	ServeRepair  SocketAddress
	WallclockMs  uint64
	ShredVersion uint16
}

func (ci *LegacyContactInfo) sockets() [LegacyContactInfoNumSockets]*SocketAddress {
	return [LegacyContactInfoNumSockets]*SocketAddress{
		&ci.Gossip, &ci.TVU, &ci.TVUForwards, &ci.Repair, &ci.TPU,
		&ci.TPUForwards, &ci.TPUVote, &ci.RPC, &ci.RPCPubsub, &ci.ServeRepair,
	}
}

// Len returns the exact serialized length of ci.
func (ci *LegacyContactInfo) Len() int {
	n := IdentitySize + 8 + 2
	for _, s := range ci.sockets() {
		n += s.Len()
	}
	return n
}

// Encode writes ci's wire form to dst.
func (ci *LegacyContactInfo) Encode(dst []byte) (int, error) {
	need := ci.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	cur := dst
	var err error
	if cur, err = WriteFixed(cur, ci.Identity[:]); err != nil {
		return 0, err
	}
	for _, s := range ci.sockets() {
		n, err := s.Encode(cur)
		if err != nil {
			return 0, err
		}
		cur = cur[n:]
	}
	PutUint64(cur, ci.WallclockMs)
	cur = cur[8:]
	PutUint16(cur, ci.ShredVersion)
	return need, nil
}

// DecodeLegacyContactInfo reads a LegacyContactInfo from the front of b and
// returns the exact number of bytes consumed so callers (gossip message
// parsing) can advance without knowing the layout length up front.
func DecodeLegacyContactInfo(b []byte) (*LegacyContactInfo, int, error) {
	orig := b
	ci := &LegacyContactInfo{}
	var err error
	if ci.Identity, b, err = ReadIdentity(b); err != nil {
		return nil, 0, err
	}
	for _, s := range ci.sockets() {
		addr, rest, err := DecodeSocketAddress(b)
		if err != nil {
			return nil, 0, err
		}
		*s = addr
		b = rest
	}
	if ci.WallclockMs, b, err = ReadUint64(b); err != nil {
		return nil, 0, err
	}
	if ci.ShredVersion, b, err = ReadUint16(b); err != nil {
		return nil, 0, err
	}
	return ci, len(orig) - len(b), nil
}

// VersionInfo is the compact version record embedded in modern ContactInfo.
type VersionInfo struct {
	Major   uint16
	Minor   uint16
	Patch   uint16
	Commit  uint32
	Feature uint32
	Client  uint16
}

// SocketEntry is one compact socket-table row in modern ContactInfo:
// tag, an index into the address list, and either the absolute port (first
// entry) or a delta from the previous entry's absolute port.
type SocketEntry struct {
	Tag       uint8
	AddrIndex uint8
	PortDelta uint16
}

// ContactInfo is the modern, extensible cluster contact record.
type ContactInfo struct {
	Identity           Identity
	WallclockMs        uint64
	InstanceCreationUs uint64
	ShredVersion       uint16
	Version            VersionInfo
	Addresses          []IPAddr      // unique IPs referenced by socket entries, no ports
	Sockets            []SocketEntry // sorted ascending by absolute port
	// Extensions is always empty in this core; the count must serialize as 0.
}

// AbsolutePorts returns the sockets' absolute ports in order, reconstructing
// them from the first-absolute/rest-delta encoding.
func (ci *ContactInfo) AbsolutePorts() []uint16 {
	out := make([]uint16, len(ci.Sockets))
	var prev uint16
	for i, s := range ci.Sockets {
		if i == 0 {
			out[i] = s.PortDelta
		} else {
			out[i] = prev + s.PortDelta
		}
		prev = out[i]
	}
	return out
}

// EncodeSockets converts a set of (tag, addrIndex, absolutePort) triples,
// already sorted ascending by port, into the first-absolute/rest-delta
// SocketEntry form required on the wire.
func EncodeSockets(tags []uint8, addrIdx []uint8, ports []uint16) []SocketEntry {
	out := make([]SocketEntry, len(ports))
	var prev uint16
	for i := range ports {
		d := ports[i]
		if i > 0 {
			d = ports[i] - prev
		}
		out[i] = SocketEntry{Tag: tags[i], AddrIndex: addrIdx[i], PortDelta: d}
		prev = ports[i]
	}
	return out
}

// Len returns the exact serialized length of ci.
func (ci *ContactInfo) Len() int {
	n := IdentitySize
	n += VarintLen(ci.WallclockMs)
	n += 8 // instance creation us
	n += 2 // shred version
	n += VarintLen(uint64(ci.Version.Major))
	n += VarintLen(uint64(ci.Version.Minor))
	n += VarintLen(uint64(ci.Version.Patch))
	n += 4 + 4 // commit, feature set
	n += VarintLen(uint64(ci.Version.Client))
	n += CompactU16Len(uint16(len(ci.Addresses)))
	for _, a := range ci.Addresses {
		n += a.Len()
	}
	n += CompactU16Len(uint16(len(ci.Sockets)))
	n += len(ci.Sockets) * 2 // tag + addr_index
	for _, s := range ci.Sockets {
		n += CompactU16Len(s.PortDelta)
	}
	n += CompactU16Len(0) // extensions count, always 0
	return n
}

// Encode writes ci's wire form to dst.
func (ci *ContactInfo) Encode(dst []byte) (int, error) {
	need := ci.Len()
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	cur := dst
	var err error
	if cur, err = WriteFixed(cur, ci.Identity[:]); err != nil {
		return 0, err
	}
	if n, err := PutVarint(cur, ci.WallclockMs); err != nil {
		return 0, err
	} else {
		cur = cur[n:]
	}
	PutUint64(cur, ci.InstanceCreationUs)
	cur = cur[8:]
	PutUint16(cur, ci.ShredVersion)
	cur = cur[2:]
	for _, v := range []uint64{uint64(ci.Version.Major), uint64(ci.Version.Minor), uint64(ci.Version.Patch)} {
		n, err := PutVarint(cur, v)
		if err != nil {
			return 0, err
		}
		cur = cur[n:]
	}
	PutUint32(cur, ci.Version.Commit)
	cur = cur[4:]
	PutUint32(cur, ci.Version.Feature)
	cur = cur[4:]
	if n, err := PutVarint(cur, uint64(ci.Version.Client)); err != nil {
		return 0, err
	} else {
		cur = cur[n:]
	}
	if n, err := PutCompactU16(cur, uint16(len(ci.Addresses))); err != nil {
		return 0, err
	} else {
		cur = cur[n:]
	}
	for _, a := range ci.Addresses {
		n, err := a.Encode(cur)
		if err != nil {
			return 0, err
		}
		cur = cur[n:]
	}
	if n, err := PutCompactU16(cur, uint16(len(ci.Sockets))); err != nil {
		return 0, err
	} else {
		cur = cur[n:]
	}
	for _, s := range ci.Sockets {
		if len(cur) < 2 {
			return 0, ErrBufferTooSmall
		}
		cur[0] = s.Tag
		cur[1] = s.AddrIndex
		cur = cur[2:]
		n, err := PutCompactU16(cur, s.PortDelta)
		if err != nil {
			return 0, err
		}
		cur = cur[n:]
	}
	if n, err := PutCompactU16(cur, 0); err != nil {
		return 0, err
	} else {
		cur = cur[n:]
	}
	return need, nil
}

// DecodeContactInfo reads a ContactInfo from the front of b and returns the
// exact number of bytes consumed.
func DecodeContactInfo(b []byte) (*ContactInfo, int, error) {
	orig := b
	ci := &ContactInfo{}
	var err error
	if ci.Identity, b, err = ReadIdentity(b); err != nil {
		return nil, 0, err
	}
	if ci.WallclockMs, b, err = ReadVarint(b); err != nil {
		return nil, 0, err
	}
	if ci.InstanceCreationUs, b, err = ReadUint64(b); err != nil {
		return nil, 0, err
	}
	if ci.ShredVersion, b, err = ReadUint16(b); err != nil {
		return nil, 0, err
	}
	var major, minor, patch uint64
	if major, b, err = ReadVarint(b); err != nil {
		return nil, 0, err
	}
	if minor, b, err = ReadVarint(b); err != nil {
		return nil, 0, err
	}
	if patch, b, err = ReadVarint(b); err != nil {
		return nil, 0, err
	}
	ci.Version.Major, ci.Version.Minor, ci.Version.Patch = uint16(major), uint16(minor), uint16(patch)
	if ci.Version.Commit, b, err = ReadUint32(b); err != nil {
		return nil, 0, err
	}
	if ci.Version.Feature, b, err = ReadUint32(b); err != nil {
		return nil, 0, err
	}
	var client uint64
	if client, b, err = ReadVarint(b); err != nil {
		return nil, 0, err
	}
	ci.Version.Client = uint16(client)

	addrCount, b, err := ReadCompactU16(b)
	if err != nil {
		return nil, 0, err
	}
	ci.Addresses = make([]IPAddr, addrCount)
	for i := range ci.Addresses {
		addr, rest, err := DecodeIPAddr(b)
		if err != nil {
			return nil, 0, err
		}
		ci.Addresses[i] = addr
		b = rest
	}

	sockCount, b, err := ReadCompactU16(b)
	if err != nil {
		return nil, 0, err
	}
	ci.Sockets = make([]SocketEntry, sockCount)
	for i := range ci.Sockets {
		if len(b) < 2 {
			return nil, 0, ErrInvalidData
		}
		tag, idx := b[0], b[1]
		b = b[2:]
		delta, rest, err := ReadCompactU16(b)
		if err != nil {
			return nil, 0, err
		}
		ci.Sockets[i] = SocketEntry{Tag: tag, AddrIndex: idx, PortDelta: delta}
		b = rest
	}

	extCount, b, err := ReadCompactU16(b)
	if err != nil {
		return nil, 0, err
	}
	if extCount != 0 {
		return nil, 0, ErrInvalidData
	}
	return ci, len(orig) - len(b), nil
}
