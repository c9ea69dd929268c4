// Package service implements the DNS-SD record conventions of RFC 6763 on
// top of the engine package: service types, instance names, and the
// PTR/SRV/TXT/A/AAAA records that make up one advertised instance.
//
// It is a thin, I/O-free layer: building an Instance never touches the
// network. Publish binds one to a running *engine.Engine.
package service

import (
	"errors"
	"net"
	"time"

	"github.com/jmalloc/mdnsd/engine"
	"github.com/jmalloc/mdnsd/names"
	"github.com/miekg/dns"
)

// DefaultTTL is the TTL applied to an instance's records when TTL is zero.
const DefaultTTL = 120 * time.Second

// DefaultPriority and DefaultWeight are the SRV field defaults used when an
// Instance does not set them explicitly; RFC 2782 treats both as ordinary
// load-balancing hints with no special meaning at zero beyond "lowest
// priority" / "no weighting".
const (
	DefaultPriority = 0
	DefaultWeight   = 0
)

// Instance is a single DNS-SD service instance: "name.service.domain.",
// e.g. "Office Printer._ipp._tcp.local.".
type Instance struct {
	// Name is the unqualified, human-readable instance name (RFC 6763
	// section 4.1 calls this the <Instance> portion).
	Name names.Rel

	// Type is the service type, e.g. "_ipp._tcp".
	Type Type

	// Domain is the registration domain, almost always "local." for mDNS.
	Domain names.FQDN

	// Host is the fully-qualified name of the host offering the service;
	// it is looked up for its address records separately and may be
	// shared by multiple instances.
	Host names.FQDN

	// Port is the TCP or UDP port the service listens on.
	Port uint16

	// Priority and Weight are the SRV record's load-balancing fields, per
	// RFC 2782. Both default to zero.
	Priority, Weight uint16

	// Text is the instance's TXT record content.
	Text *Text

	// TTL is applied to every record this instance produces. Zero means
	// DefaultTTL.
	TTL time.Duration
}

// FQDN returns the instance's fully-qualified name.
func (i *Instance) FQDN() names.FQDN {
	return i.Name.Qualify(i.Type.Qualify(i.Domain))
}

// EnumName returns the name browsed to discover instances of this
// instance's service type within its domain.
func (i *Instance) EnumName() names.FQDN {
	return InstanceEnumName(i.Type, i.Domain)
}

// Validate returns an error if the instance is not fully specified.
func (i *Instance) Validate() error {
	if err := i.Name.Validate(); err != nil {
		return err
	}
	if err := i.Type.Validate(); err != nil {
		return err
	}
	if err := i.Domain.Validate(); err != nil {
		return err
	}
	if err := i.Host.Validate(); err != nil {
		return err
	}
	if i.Port == 0 {
		return errors.New("service: port must not be zero")
	}
	return nil
}

// ttlSeconds returns the effective TTL in seconds.
func (i *Instance) ttlSeconds() uint32 {
	ttl := i.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return uint32(ttl.Seconds())
}

// PTR returns the shared PTR record mapping the service's enumeration name
// to this instance. Multiple instances of the same type share this name,
// so it is never probed (RFC 6762 section 8.1's uniqueness requirement
// only applies to the SRV/TXT/address records below).
func (i *Instance) PTR() *dns.PTR {
	return &dns.PTR{
		Hdr: dns.RR_Header{
			Name:   i.EnumName().DNSString(),
			Rrtype: dns.TypePTR,
			Class:  dns.ClassINET,
			Ttl:    i.ttlSeconds(),
		},
		Ptr: i.FQDN().DNSString(),
	}
}

// SRV returns the instance's SRV record, per RFC 2782. It is unique: at
// most one responder on the link should publish this name/type pair with a
// given set of field values.
func (i *Instance) SRV() *dns.SRV {
	return &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   i.FQDN().DNSString(),
			Rrtype: dns.TypeSRV,
			Class:  dns.ClassINET,
			Ttl:    i.ttlSeconds(),
		},
		Priority: i.Priority,
		Weight:   i.Weight,
		Port:     i.Port,
		Target:   i.Host.DNSString(),
	}
}

// TXT returns the instance's TXT record. It is unique, same as SRV.
func (i *Instance) TXT() *dns.TXT {
	text := i.Text
	if text == nil {
		text = &Text{}
	}
	return text.RR(i.FQDN().DNSString(), i.ttlSeconds())
}

// A returns the instance's host A record for ip.
func (i *Instance) A(ip net.IP) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{Name: i.Host.DNSString(), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: i.ttlSeconds()},
		A:   ip.To4(),
	}
}

// AAAA returns the instance's host AAAA record for ip.
func (i *Instance) AAAA(ip net.IP) *dns.AAAA {
	return &dns.AAAA{
		Hdr:  dns.RR_Header{Name: i.Host.DNSString(), Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: i.ttlSeconds()},
		AAAA: ip,
	}
}

// Published holds the engine records an Instance was published as, so
// Withdraw can de-list every one of them.
type Published struct {
	PTR     *engine.Record
	SRV     *engine.Record
	TXT     *engine.Record
	Address *engine.Record
}

// Publish registers i's records with e: the PTR as shared, and SRV/TXT/the
// host address record as unique (probed) records, per spec.md section 4.4's
// shared-vs-unique distinction. onConflict is invoked, per unique record,
// if another responder asserts conflicting data for it.
func Publish(e *engine.Engine, i *Instance, ip net.IP, onConflict engine.ConflictHandler) (*Published, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}

	p := &Published{}
	p.PTR = e.PublishShared(i.PTR())
	p.SRV = e.PublishUnique(i.SRV(), onConflict)
	p.TXT = e.PublishUnique(i.TXT(), onConflict)

	if v4 := ip.To4(); v4 != nil {
		p.Address = e.PublishUnique(i.A(v4), onConflict)
	} else {
		p.Address = e.PublishUnique(i.AAAA(ip), onConflict)
	}

	return p, nil
}

// Withdraw de-lists every record a Published instance holds, triggering a
// goodbye announcement for each one that has finished probing; a record
// still probing is freed without a goodbye (spec.md section 4.4).
func Withdraw(e *engine.Engine, p *Published) {
	e.Done(p.PTR)
	e.Done(p.SRV)
	e.Done(p.TXT)
	e.Done(p.Address)
}
