/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package gossip

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Entrypoint is a configured cluster bootstrap address: a host (literal
// IPv4 or hostname) and gossip port, resolved once at add-time. The cached
// IP is never re-resolved afterwards.
type Entrypoint struct {
	Host string
	Port uint16
	IP   net.IP
}

// resolverAddr is the DNS server queried for hostname entrypoints.
// Overridable for tests.
var resolverAddr = "8.8.8.8:53"

// resolveHost resolves host to its first A record via a direct DNS query,
// bypassing the system resolver the way a validator's gossip bootstrap
// does so a misconfigured /etc/resolv.conf cannot silently stall startup.
// A literal IPv4 address is returned unresolved.
func resolveHost(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	c := new(dns.Client)
	c.Timeout = 3 * time.Second
	resp, _, err := c.ExchangeContext(context.Background(), m, resolverAddr)
	if err != nil {
		return nil, err
	}
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A, nil
		}
	}
	return nil, ErrHostUnresolved
}

// Addr returns the entrypoint's resolved gossip UDP address.
func (e Entrypoint) Addr() net.UDPAddr {
	return net.UDPAddr{IP: e.IP, Port: int(e.Port)}
}
