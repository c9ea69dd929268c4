package engine

import (
	"strings"

	"github.com/miekg/dns"
)

// recordKey identifies a resource record set: a normalized name paired with
// a type. Names are folded to lower-case at construction, since mDNS name
// comparison is case-insensitive (RFC 6762 section 16) but the wire codec
// and the rest of the corpus work with the mixed-case presentation form.
type recordKey struct {
	name  string
	qtype uint16
}

func newRecordKey(name string, qtype uint16) recordKey {
	return recordKey{
		name:  strings.ToLower(dns.Fqdn(name)),
		qtype: qtype,
	}
}

// elfHash is the "ELF hash" used by the original mdnsd's xht string
// hashtable to bucket entries by name:
//
//	h = (h<<4) + byte
//	g = h & 0xF0000000
//	if g != 0 { h ^= g>>24; h &^= g }
//
// We keep it, rather than relying solely on Go's built-in map hashing,
// because it gives the bucketed chains the same distribution and bucket
// counts the spec documents (108 for queries/publications, 1009 for the
// cache) so the index's behavior under the "under 100 records per
// responder" population it targets is the one the spec describes.
func elfHash(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = (h << 4) + uint32(s[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

const (
	queryBuckets       = 108
	publicationBuckets = 108
	cacheBuckets       = 1009
)

type chainEntry[V any] struct {
	key   recordKey
	value V
}

// nameIndex is a bucketed, chained map from a recordKey to any number of
// values sharing that key. Collisions within a bucket are resolved by
// linear scan, which is fine for the small (<100 record) populations this
// protocol targets.
type nameIndex[V any] struct {
	buckets [][]chainEntry[V]
}

func newNameIndex[V any](bucketCount int) *nameIndex[V] {
	return &nameIndex[V]{buckets: make([][]chainEntry[V], bucketCount)}
}

func (idx *nameIndex[V]) bucketIndex(k recordKey) int {
	return int(elfHash(k.name) % uint32(len(idx.buckets)))
}

// Append adds v under key k.
func (idx *nameIndex[V]) Append(k recordKey, v V) {
	b := idx.bucketIndex(k)
	idx.buckets[b] = append(idx.buckets[b], chainEntry[V]{k, v})
}

// Get returns every value stored under key k.
func (idx *nameIndex[V]) Get(k recordKey) []V {
	var out []V
	for _, e := range idx.buckets[idx.bucketIndex(k)] {
		if e.key == k {
			out = append(out, e.value)
		}
	}
	return out
}

// RemoveMatching removes every value under key k for which match returns
// true, returning the removed values.
func (idx *nameIndex[V]) RemoveMatching(k recordKey, match func(V) bool) []V {
	b := idx.bucketIndex(k)
	chain := idx.buckets[b]

	var removed []V
	kept := chain[:0]
	for _, e := range chain {
		if e.key == k && match(e.value) {
			removed = append(removed, e.value)
			continue
		}
		kept = append(kept, e)
	}
	idx.buckets[b] = kept
	return removed
}

// RemoveAll removes every value stored under key k, returning them.
func (idx *nameIndex[V]) RemoveAll(k recordKey) []V {
	return idx.RemoveMatching(k, func(V) bool { return true })
}

// RemoveValue removes a single value, found by identity via eq.
func (idx *nameIndex[V]) RemoveValue(k recordKey, eq func(V) bool) {
	idx.RemoveMatching(k, eq)
}

// WalkBucketsAndRemove visits every bucket in the index; fn inspects each
// entry's value and returns true if it should be removed. Used for the
// brute-force GC sweep, which walks the entire table regardless of key.
func (idx *nameIndex[V]) WalkBucketsAndRemove(fn func(key recordKey, v V) bool) []V {
	var removed []V
	for b, chain := range idx.buckets {
		kept := chain[:0]
		for _, e := range chain {
			if fn(e.key, e.value) {
				removed = append(removed, e.value)
				continue
			}
			kept = append(kept, e)
		}
		idx.buckets[b] = kept
	}
	return removed
}

// Len returns the total number of entries across all buckets.
func (idx *nameIndex[V]) Len() int {
	n := 0
	for _, chain := range idx.buckets {
		n += len(chain)
	}
	return n
}

// All returns every value in the index, in bucket order.
func (idx *nameIndex[V]) All() []V {
	var out []V
	for _, chain := range idx.buckets {
		for _, e := range chain {
			out = append(out, e.value)
		}
	}
	return out
}
