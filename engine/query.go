package engine

import (
	"time"

	"github.com/miekg/dns"
)

// maxQueryRetries is the number of retransmissions a query makes, at
// second-granularity intervals, before quiescing until a new answer
// appears in the cache.
const maxQueryRetries = 3

// Answer is the view of a cache entry passed to a QueryCallback.
//
// It is valid only for the duration of the callback invocation: the
// underlying cache entry may be mutated or removed immediately afterwards.
type Answer struct {
	RR  dns.RR
	TTL uint32
}

// QueryCallback receives answers for a registered query.
//
// It is invoked once immediately for every cached answer already present
// when the query is registered, once for every new or refreshed answer
// that arrives afterwards, and once more with a zero-TTL Answer when a
// previously-delivered answer expires or is withdrawn.
//
// Returning false deregisters the query -- the sentinel described in the
// spec as "the callback returns -1".
type QueryCallback func(*Answer) bool

// query is a single outstanding question in the registry (component C6).
type query struct {
	Name     string
	Type     uint16
	Callback QueryCallback
	NextTry  time.Time
	Tries    int
}

func (q *query) key() recordKey {
	return newRecordKey(q.Name, q.Type)
}

// fire invokes the callback with the given record and TTL, returning false
// if the callback asked to be deregistered (the "-1" sentinel).
func (q *query) fire(rr dns.RR, ttl uint32) bool {
	return q.Callback(&Answer{RR: rr, TTL: ttl})
}

// queryRegistry holds every outstanding query (component C6).
type queryRegistry struct {
	idx *nameIndex[*query]
}

func newQueryRegistry() *queryRegistry {
	return &queryRegistry{idx: newNameIndex[*query](queryBuckets)}
}

// lookup returns the single query registered for (name, type), if any.
// Invariant 2 of the spec guarantees at most one exists.
func (r *queryRegistry) lookup(name string, qtype uint16) *query {
	key := newRecordKey(name, qtype)
	for _, q := range r.idx.Get(key) {
		return q
	}
	return nil
}

// register inserts or updates the query for (name, type). It returns the
// query (new or existing) and whether it is newly created.
func (r *queryRegistry) register(name string, qtype uint16, cb QueryCallback, now time.Time) (*query, bool) {
	if q := r.lookup(name, qtype); q != nil {
		q.Callback = cb
		return q, false
	}

	q := &query{
		Name:    name,
		Type:    qtype,
		Callback: cb,
		NextTry: now,
	}
	r.idx.Append(q.key(), q)
	return q, true
}

// unregister removes the query for (name, type), if any.
func (r *queryRegistry) unregister(name string, qtype uint16) {
	key := newRecordKey(name, qtype)
	r.idx.RemoveAll(key)
}

// remove removes a specific query instance (used when a callback returns
// the deregistration sentinel).
func (r *queryRegistry) remove(q *query) {
	r.idx.RemoveMatching(q.key(), func(x *query) bool { return x == q })
}

// dueQueries returns every query whose NextTry has passed and that has not
// quiesced (NextTry.IsZero after exhausting retries).
func (r *queryRegistry) dueQueries(now time.Time) []*query {
	var due []*query
	for _, q := range r.idx.All() {
		if q.NextTry.IsZero() {
			continue
		}
		if !q.NextTry.After(now) {
			due = append(due, q)
		}
	}
	return due
}

// checkpoint returns the minimum NextTry across all active (non-quiesced)
// queries, or the zero Time if there are none.
func (r *queryRegistry) checkpoint() time.Time {
	var min time.Time
	for _, q := range r.idx.All() {
		if q.NextTry.IsZero() {
			continue
		}
		if min.IsZero() || q.NextTry.Before(min) {
			min = q.NextTry
		}
	}
	return min
}

// resetAll quiesces every active query's retry counters and, if now is
// non-zero, restarts them immediately -- used by Engine.Flush.
func (r *queryRegistry) resetAll(now time.Time) {
	for _, q := range r.idx.All() {
		q.Tries = 0
		q.NextTry = now
	}
}
