package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmalloc/mdnsd/names"
)

// Type is a DNS-SD service type, such as "_http._tcp" or "_printer._sub._http._tcp".
//
// It implements names.Name so it can be qualified against a domain the same
// way any other relative name is, per RFC 6763 section 4.
type Type string

// IsQualified returns false.
func (t Type) IsQualified() bool {
	return false
}

// Qualify returns a fully-qualified domain name produced by qualifying t
// with domain.
func (t Type) Qualify(domain names.FQDN) names.FQDN {
	return names.FQDN(t.String() + "." + domain.String())
}

// Labels returns the DNS labels that form this service type.
func (t Type) Labels() []names.Label {
	s := t.String()
	var labels []names.Label

	for {
		i := strings.Index(s, ".")
		if i == -1 {
			return append(labels, names.Label(s))
		}
		labels = append(labels, names.Label(s[:i]))
		s = s[i+1:]
	}
}

// Split splits the first label from the service type.
func (t Type) Split() (head names.Label, tail names.Name) {
	s := t.String()
	i := strings.Index(s, ".")

	head = names.Label(s[:i])
	if i != -1 {
		tail = names.UDN(s[i+1:])
	}
	return
}

// Join returns a name produced by concatenating t with n.
func (t Type) Join(n names.Name) names.Name {
	return names.MustParse(t.String() + "." + n.String())
}

// Validate returns nil if t is a well-formed service type: exactly two
// underscore-prefixed labels ("_service._proto"), optionally preceded by
// subtype labels, per RFC 6763 section 7.
func (t Type) Validate() error {
	if t == "" {
		return errors.New("service type must not be empty")
	}
	if t[0] == '.' {
		return fmt.Errorf("service type %q is invalid, unexpected leading dot", string(t))
	}
	if t[len(t)-1] == '.' {
		return fmt.Errorf("service type %q is invalid, unexpected trailing dot", string(t))
	}

	// Split the raw string: Labels() calls String(), which calls Validate().
	var labels []names.Label
	for _, l := range strings.Split(string(t), ".") {
		labels = append(labels, names.Label(l))
	}
	if len(labels) < 2 {
		return fmt.Errorf("service type %q must have at least a service and protocol label", string(t))
	}

	proto := labels[len(labels)-1]
	if proto != "_tcp" && proto != "_udp" {
		return fmt.Errorf("service type %q has unrecognized protocol label %q, want _tcp or _udp", string(t), string(proto))
	}

	if svc := labels[len(labels)-2]; !strings.HasPrefix(string(svc), "_") {
		return fmt.Errorf("service type %q has service label %q, want an underscore prefix", string(t), string(svc))
	}

	for _, l := range labels {
		if err := l.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// String returns the presentation-form service type. It panics if t is
// invalid.
func (t Type) String() string {
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return string(t)
}
