package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// Text is the set of key/value pairs encoded in a service instance's TXT
// record, per RFC 6763 section 6. Keys are case-insensitive; this type
// folds them to lower-case on Set so lookups don't depend on the casing a
// caller happened to use.
//
// This is the in-core representation spec.md places in scope; the
// xht-based key=value wire encoder the original used is out of scope (see
// spec.md section 1), so Pairs/ParseText below are this package's own
// minimal stand-in, not a port of that library.
type Text struct {
	pairs map[string]string
}

// NewText builds a Text from a set of key/value pairs.
func NewText(kv map[string]string) *Text {
	t := &Text{}
	for k, v := range kv {
		t.Set(k, v)
	}
	return t
}

// Get returns the value associated with k, if any.
func (t *Text) Get(k string) (string, bool) {
	v, ok := t.pairs[strings.ToLower(k)]
	return v, ok
}

// Set associates v with k, overwriting any existing value.
//
// RFC 6763 section 6.4 recommends keys no longer than 9 characters; that
// is a SHOULD, not enforced here, but the hard limits from section 6.1
// (no '=' in the key, total pair length fitting the TXT string format) are.
func (t *Text) Set(k, v string) error {
	if err := ValidateTextKey(k); err != nil {
		return err
	}
	n := len(k)
	if v != "" {
		n += 1 + len(v)
	}
	if n > 255 {
		return fmt.Errorf("txt pair for key %q is %d octets, exceeding the 255 octet string limit", k, n)
	}
	if t.pairs == nil {
		t.pairs = make(map[string]string)
	}
	t.pairs[strings.ToLower(k)] = v
	return nil
}

// SetBool sets a boolean-style (value-less) attribute, per RFC 6763
// section 6.4, by setting k to an empty value when v is true and deleting
// it otherwise.
func (t *Text) SetBool(k string, v bool) error {
	if !v {
		t.Delete(k)
		return nil
	}
	return t.Set(k, "")
}

// Has reports whether k is present, regardless of its value.
func (t *Text) Has(k string) bool {
	_, ok := t.pairs[strings.ToLower(k)]
	return ok
}

// Delete removes k, if present.
func (t *Text) Delete(k string) {
	delete(t.pairs, strings.ToLower(k))
}

// Pairs returns the "key=value" (or bare "key", for an empty value)
// strings that make up the TXT record's character-strings, sorted by key
// for deterministic output.
func (t *Text) Pairs() []string {
	keys := make([]string, 0, len(t.pairs))
	for k := range t.pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := t.pairs[k]
		if v == "" {
			pairs = append(pairs, k)
		} else {
			pairs = append(pairs, k+"="+v)
		}
	}
	return pairs
}

// RR builds the dns.TXT record for name/ttl from t's pairs. An empty Text
// still produces a single empty character-string, per RFC 6763 section 6.1.
func (t *Text) RR(name string, ttl uint32) *dns.TXT {
	pairs := t.Pairs()
	if len(pairs) == 0 {
		pairs = []string{""}
	}
	return &dns.TXT{
		Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: ttl},
		Txt: pairs,
	}
}

// ParseText decodes the character-strings of a TXT record's rdata back
// into a Text, splitting each on the first '='.
func ParseText(strs []string) *Text {
	t := &Text{}
	for _, s := range strs {
		if s == "" {
			continue
		}
		if i := strings.IndexByte(s, '='); i >= 0 {
			_ = t.Set(s[:i], s[i+1:])
		} else {
			_ = t.Set(s, "")
		}
	}
	return t
}

// ValidateTextKey returns an error if k cannot be used as a TXT record key:
// it must be non-empty and must not contain '=', per RFC 6763 section 6.4.
func ValidateTextKey(k string) error {
	if k == "" {
		return fmt.Errorf("txt key must not be empty")
	}
	if strings.ContainsRune(k, '=') {
		return fmt.Errorf("txt key %q must not contain '='", k)
	}
	return nil
}
