/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import "net"

const (
	familyV4 uint32 = 0
	familyV6 uint32 = 1

	// SocketAddrV4Size is the wire length of a v4 SocketAddress: 4-byte
	// family discriminant + 4 address bytes + 2-byte port.
	SocketAddrV4Size = 4 + 4 + 2
	// SocketAddrV6Size is the wire length of a v6 SocketAddress: 4-byte
	// family discriminant + 16 address bytes + 2-byte port.
	SocketAddrV6Size = 4 + 16 + 2
)

// SocketAddress is the tagged address family + address bytes + port used
// throughout the gossip wire formats. IsV6 selects between a 4 and 16 byte
// address payload on the wire.
type SocketAddress struct {
	IsV6 bool
	IP   net.IP // 4 or 16 bytes, matching IsV6
	Port uint16
}

// Len returns the exact wire length of sa.
func (sa SocketAddress) Len() int {
	if sa.IsV6 {
		return SocketAddrV6Size
	}
	return SocketAddrV4Size
}

// Encode writes sa's wire form (4-byte LE family discriminant, 4 or 16
// address bytes, 2-byte LE port) to dst and returns the bytes consumed.
func (sa SocketAddress) Encode(dst []byte) (int, error) {
	n := sa.Len()
	if len(dst) < n {
		return 0, ErrBufferTooSmall
	}
	fam := familyV4
	addrLen := 4
	ip := sa.IP.To4()
	if sa.IsV6 {
		fam = familyV6
		addrLen = 16
		ip = sa.IP.To16()
	}
	if ip == nil {
		return 0, ErrInvalidData
	}
	PutUint32(dst, fam)
	copy(dst[4:4+addrLen], ip)
	PutUint16(dst[4+addrLen:], sa.Port)
	return n, nil
}

// DecodeSocketAddress reads a family discriminant, 4 or 16 address bytes,
// and a port from the front of b.
func DecodeSocketAddress(b []byte) (SocketAddress, []byte, error) {
	fam, rest, err := ReadUint32(b)
	if err != nil {
		return SocketAddress{}, nil, err
	}
	var addrLen int
	var isV6 bool
	switch fam {
	case familyV4:
		addrLen = 4
	case familyV6:
		addrLen = 16
		isV6 = true
	default:
		return SocketAddress{}, nil, ErrInvalidEnumTag
	}
	addr, rest, err := ReadFixed(rest, addrLen)
	if err != nil {
		return SocketAddress{}, nil, err
	}
	ip := make(net.IP, addrLen)
	copy(ip, addr)
	port, rest, err := ReadUint16(rest)
	if err != nil {
		return SocketAddress{}, nil, err
	}
	return SocketAddress{IsV6: isV6, IP: ip, Port: port}, rest, nil
}

// SocketAddressV4 builds a v4 SocketAddress, the common case used by
// LegacyContactInfo and most of the cluster's current peer set.
func SocketAddressV4(ip net.IP, port uint16) SocketAddress {
	return SocketAddress{IP: ip.To4(), Port: port}
}

// IPAddr is a bare tagged IP address with no port: 4-byte LE family
// discriminant followed by 4 or 16 address bytes. Modern ContactInfo's
// address list uses this form; the ports live in the socket-entry table.
type IPAddr struct {
	IsV6 bool
	IP   net.IP // 4 or 16 bytes, matching IsV6
}

// IPAddrV4 builds a v4 IPAddr.
func IPAddrV4(ip net.IP) IPAddr {
	return IPAddr{IP: ip.To4()}
}

// Len returns the exact wire length of a.
func (a IPAddr) Len() int {
	if a.IsV6 {
		return 4 + 16
	}
	return 4 + 4
}

// Encode writes a's wire form (4-byte LE family discriminant, 4 or 16
// address bytes) to dst and returns the bytes consumed.
func (a IPAddr) Encode(dst []byte) (int, error) {
	n := a.Len()
	if len(dst) < n {
		return 0, ErrBufferTooSmall
	}
	fam := familyV4
	addrLen := 4
	ip := a.IP.To4()
	if a.IsV6 {
		fam = familyV6
		addrLen = 16
		ip = a.IP.To16()
	}
	if ip == nil {
		return 0, ErrInvalidData
	}
	PutUint32(dst, fam)
	copy(dst[4:4+addrLen], ip)
	return n, nil
}

// DecodeIPAddr reads a family discriminant and 4 or 16 address bytes from
// the front of b.
func DecodeIPAddr(b []byte) (IPAddr, []byte, error) {
	fam, rest, err := ReadUint32(b)
	if err != nil {
		return IPAddr{}, nil, err
	}
	var addrLen int
	var isV6 bool
	switch fam {
	case familyV4:
		addrLen = 4
	case familyV6:
		addrLen = 16
		isV6 = true
	default:
		return IPAddr{}, nil, ErrInvalidEnumTag
	}
	addr, rest, err := ReadFixed(rest, addrLen)
	if err != nil {
		return IPAddr{}, nil, err
	}
	ip := make(net.IP, addrLen)
	copy(ip, addr)
	return IPAddr{IsV6: isV6, IP: ip}, rest, nil
}
