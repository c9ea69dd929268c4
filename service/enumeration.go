package service

import "github.com/jmalloc/mdnsd/names"

// TypeEnumName is the DNS name queried to perform "service type
// enumeration" in domain: the set of service types advertised anywhere
// within it.
//
// See https://tools.ietf.org/html/rfc6763#section-9.
func TypeEnumName(domain names.FQDN) names.FQDN {
	return names.UDN("_services._dns-sd._udp").Qualify(domain)
}

// SubTypeEnumName is the DNS name queried to perform "selective instance
// enumeration" for a given service sub-type within domain.
//
// See https://tools.ietf.org/html/rfc6763#section-7.1.
func SubTypeEnumName(subtype names.Label, t Type, domain names.FQDN) names.FQDN {
	return names.UDN(subtype.String() + "._sub." + t.String()).Qualify(domain)
}

// InstanceEnumName is the DNS name queried to "browse" for instances of
// service type t within domain. The resulting PTR answers name the
// individual instances.
//
// See https://tools.ietf.org/html/rfc6763#section-4.
func InstanceEnumName(t Type, domain names.FQDN) names.FQDN {
	return t.Qualify(domain)
}
