// Package wire builds and validates RFC 1035 / RFC 6762 DNS messages.
//
// It is a thin layer over github.com/miekg/dns: the codec itself (label
// compression, rdata parsing) is delegated to that library, exactly as
// the mDNS responders in this corpus do. What this package adds is the
// mDNS-specific framing rules from RFC 6762 section 18 (which header bits
// must be zero, where the cache-flush/unicast-request bits live) and the
// frame-size budget from the engine's configuration.
package wire

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// MaxCoreFrameSize is the hard ceiling on an encoded message, independent of
// any caller-supplied frame size. RFC 6762 does not impose this limit
// itself; it exists so a single malformed or adversarial publication cannot
// grow a message without bound.
const MaxCoreFrameSize = 4000

// UnicastResponseBit is the top bit of a question's class field. A querier
// sets it to request a unicast reply instead of the default multicast one.
//
// See https://tools.ietf.org/html/rfc6762#section-18.12.
const UnicastResponseBit = 1 << 15

// CacheFlushBit is the top bit of an answer's class field. It tells
// receivers that this record is the entire current rrset for its name and
// type, and that they should discard any previously cached members.
//
// See https://tools.ietf.org/html/rfc6762#section-10.2.
const CacheFlushBit = 1 << 15

// WantsUnicastResponse returns true if q requested a unicast reply, along
// with a copy of q with the request bit cleared so the class reflects the
// real query class.
func WantsUnicastResponse(q dns.Question) (bool, dns.Question) {
	u := q.Qclass&UnicastResponseBit != 0
	q.Qclass &^= UnicastResponseBit
	return u, q
}

// SetUnicastResponse returns a copy of q with the unicast-response bit set.
func SetUnicastResponse(q dns.Question) dns.Question {
	q.Qclass |= UnicastResponseBit
	return q
}

// IsCacheFlush returns true if r is marked as a complete rrset (the
// cache-flush bit is set), along with a copy of r with the bit cleared.
func IsCacheFlush(r dns.RR) (bool, dns.RR) {
	if r.Header().Class&CacheFlushBit == 0 {
		return false, r
	}
	r = dns.Copy(r)
	r.Header().Class &^= CacheFlushBit
	return true, r
}

// SetCacheFlush returns a copy of r with the cache-flush bit set.
func SetCacheFlush(r dns.RR) dns.RR {
	r = dns.Copy(r)
	r.Header().Class |= CacheFlushBit
	return r
}

// NewQuery returns a new, empty mDNS query message.
//
// If legacy is true, the query is addressed to a "one-shot" querier that
// expects a standard unicast DNS reply (RFC 6762 section 6.7), so the
// transaction ID is preserved rather than zeroed.
func NewQuery(legacy bool) *dns.Msg {
	m := new(dns.Msg)

	// https://tools.ietf.org/html/rfc6762#section-18.1
	//
	// A legacy one-shot querier expects a standard unicast DNS reply
	// correlated by transaction ID; a normal multicast query always uses 0.
	if legacy {
		m.Id = dns.Id()
	}

	// https://tools.ietf.org/html/rfc6762#section-18.3
	m.Opcode = dns.OpcodeQuery

	// https://tools.ietf.org/html/rfc6762#section-18.4
	m.Authoritative = false

	// https://tools.ietf.org/html/rfc6762#section-18.6 through 18.11
	m.Truncated = false
	m.RecursionDesired = false
	m.RecursionAvailable = false
	m.Zero = false
	m.AuthenticatedData = false
	m.CheckingDisabled = false
	m.Rcode = dns.RcodeSuccess

	// https://tools.ietf.org/html/rfc6762#section-18.14
	m.Compress = true

	return m
}

// ValidateQuery returns an error if m is not a well-formed mDNS query.
//
// Per RFC 6762 section 18.3 and 18.11, a responder that receives a query
// violating these rules MUST silently ignore it; the caller is expected to
// drop m rather than surface this error to the user.
func ValidateQuery(m *dns.Msg) error {
	if m.Response {
		return errors.New("message is a response, not a query")
	}
	if m.Opcode != dns.OpcodeQuery {
		return fmt.Errorf("opcode must be zero in mDNS queries, got %d", m.Opcode)
	}
	if m.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("rcode must be zero in mDNS queries, got %d", m.Rcode)
	}
	return nil
}

// NewResponse returns a new response message.
//
// If unicast is false, the response is prepared for multicast: the
// transaction ID is zeroed and the question section (if any, from the
// query being answered) is discarded, per RFC 6762 section 6.
func NewResponse(unicast bool) *dns.Msg {
	m := new(dns.Msg)
	m.Response = true
	m.Opcode = dns.OpcodeQuery
	m.Authoritative = true
	m.Compress = true

	m.Truncated = false
	m.RecursionDesired = false
	m.RecursionAvailable = false
	m.Zero = false
	m.AuthenticatedData = false
	m.CheckingDisabled = false
	m.Rcode = dns.RcodeSuccess

	if !unicast {
		m.Id = 0
	}

	return m
}

// Pack marshals m, refusing to emit a packet larger than frameSize octets
// (and never larger than MaxCoreFrameSize). It returns the encoded bytes,
// or an error if the message does not fit.
func Pack(m *dns.Msg, frameSize int) ([]byte, error) {
	if frameSize <= 0 || frameSize > MaxCoreFrameSize {
		frameSize = MaxCoreFrameSize
	}

	buf := make([]byte, frameSize)
	out, err := m.PackBuffer(buf)
	if err != nil {
		return nil, err
	}

	// PackBuffer may allocate its own, larger buffer when buf is too small
	// instead of failing; enforce the budget explicitly.
	if len(out) > frameSize {
		return nil, fmt.Errorf("message of %d octets exceeds frame size of %d octets", len(out), frameSize)
	}

	// copy out of the pooled/scratch buffer so callers can reuse buf.
	packed := make([]byte, len(out))
	copy(packed, out)
	return packed, nil
}

// Unmarshal decodes b into a DNS message. Per RFC 1035/6762, malformed
// input must not be treated as a protocol error: the caller should drop
// the datagram and continue. Unmarshal reports the parse error so the
// caller can log it, but callers implementing the engine's `in` operation
// must treat any error here as "silently drop this datagram".
func Unmarshal(b []byte) (*dns.Msg, error) {
	m := new(dns.Msg)
	if err := m.Unpack(b); err != nil {
		return nil, err
	}
	return m, nil
}
