// Package client provides one-shot unicast mDNS/DNS lookups on top of
// github.com/miekg/dns, for callers that want a single answer without
// running a full responder. It is the resolver-side counterpart to the
// original mquery.c one-shot query tool named in SPEC_FULL.md section 12:
// the engine's Query API already covers the responder side (standing
// queries, known-answer suppression, retries); this package is for code
// that just wants to ask once and get an answer back.
package client

import (
	"context"

	"github.com/miekg/dns"
)

// Unicast performs a synchronous DNS query against a single name server.
type Unicast interface {
	Query(ctx context.Context, req *dns.Msg, ns string) (*dns.Msg, error)
}

// DefaultUnicast is the package's default Unicast implementation.
var DefaultUnicast Unicast = &StandardUnicast{}

// StandardUnicast is a thin wrapper around *dns.Client.
type StandardUnicast struct {
	// Client is the underlying client to use. A nil Client is replaced
	// with a zero-value *dns.Client for every call.
	Client *dns.Client
}

// Query sends req to ns and returns the response.
func (c *StandardUnicast) Query(ctx context.Context, req *dns.Msg, ns string) (*dns.Msg, error) {
	cli := c.Client
	if cli == nil {
		cli = &dns.Client{}
	}
	res, _, err := cli.ExchangeContext(ctx, req, ns)
	return res, err
}

// Lookup performs a single one-shot mDNS query for (name, qtype) against
// ns (typically "224.0.0.251:5353"), per RFC 6762 section 5.1's "One-Shot
// Multicast DNS Queries": the transaction ID is preserved (legacy framing,
// per wire.NewQuery(legacy=true)) since a one-shot querier does not keep a
// standing registration to correlate replies by content alone.
func Lookup(ctx context.Context, u Unicast, ns, name string, qtype uint16) (*dns.Msg, error) {
	if u == nil {
		u = DefaultUnicast
	}

	req := new(dns.Msg)
	req.Id = dns.Id()
	req.RecursionDesired = false
	req.Question = []dns.Question{{Name: dns.Fqdn(name), Qtype: qtype, Qclass: dns.ClassINET}}

	return u.Query(ctx, req, ns)
}
