package wire

import (
	"reflect"
	"strings"

	"github.com/miekg/dns"
)

// SameName reports whether a and b refer to the same DNS name under mDNS's
// case-insensitive comparison rules.
func SameName(a, b string) bool {
	return strings.EqualFold(dns.Fqdn(a), dns.Fqdn(b))
}

// SameRecordSet reports whether r is a member of the rrset named by
// name/qtype: it must have that name and type.
func SameRecordSet(r dns.RR, name string, qtype uint16) bool {
	h := r.Header()
	return h.Rrtype == qtype && SameName(h.Name, name)
}

// DataEqual implements the record-matching rule used throughout the engine
// (cache refresh/expiry, conflict detection, known-answer suppression): two
// records are the same data if they have the same name and type, and:
//
//   - for SRV, the target, port, weight and priority are all equal;
//   - for NS/CNAME/PTR, the target names are equal;
//   - otherwise, the rdata is byte-for-byte equal.
func DataEqual(a, b dns.RR) bool {
	ah, bh := a.Header(), b.Header()

	if ah.Rrtype != bh.Rrtype || !SameName(ah.Name, bh.Name) {
		return false
	}

	switch x := a.(type) {
	case *dns.SRV:
		y, ok := b.(*dns.SRV)
		return ok &&
			x.Priority == y.Priority &&
			x.Weight == y.Weight &&
			x.Port == y.Port &&
			SameName(x.Target, y.Target)

	case *dns.NS:
		y, ok := b.(*dns.NS)
		return ok && SameName(x.Ns, y.Ns)

	case *dns.CNAME:
		y, ok := b.(*dns.CNAME)
		return ok && SameName(x.Target, y.Target)

	case *dns.PTR:
		y, ok := b.(*dns.PTR)
		return ok && SameName(x.Ptr, y.Ptr)

	case *dns.A:
		y, ok := b.(*dns.A)
		return ok && x.A.Equal(y.A)

	case *dns.AAAA:
		y, ok := b.(*dns.AAAA)
		return ok && x.AAAA.Equal(y.AAAA)

	case *dns.TXT:
		y, ok := b.(*dns.TXT)
		return ok && reflect.DeepEqual(x.Txt, y.Txt)

	default:
		if a.Header().Rrtype != b.Header().Rrtype {
			return false
		}
		ac, bc := dns.Copy(a), dns.Copy(b)
		ac.Header().Ttl, bc.Header().Ttl = 0, 0
		ac.Header().Class, bc.Header().Class = 0, 0
		return reflect.DeepEqual(ac, bc)
	}
}
