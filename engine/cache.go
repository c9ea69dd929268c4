package engine

import (
	"time"

	"github.com/jmalloc/mdnsd/wire"
	"github.com/miekg/dns"
)

// cacheExpiryGrace is the additional grace period added to an entry's
// half-life expiry. The original mdnsd comment calls this "BAD SPEC, start
// retrying just after half-waypoint, then expire"; RFC 6762 section 5.2
// instead describes re-querying at 80-100% of the TTL with jitter. We keep
// the half-life behavior (see SPEC_FULL.md section 13, decision 1): it is
// what the spec's testable properties pin, and the only consequence of the
// deviation is that we refresh cached answers sooner than the RFC would,
// which is conservative rather than harmful.
const cacheExpiryGrace = 8 * time.Second

// bruteForceGCInterval is how often the cache is swept in its entirety,
// regardless of individual entry expiry, as a backstop against any entry
// that was missed by the normal per-bucket sweep (e.g. because no query or
// insert ever touched its bucket again).
const bruteForceGCInterval = 24 * time.Hour

// cacheEntry is a single received resource record held in the cache.
type cacheEntry struct {
	RR     dns.RR
	Expiry time.Time // absolute, per the Clock supplied to the engine
	Query  *query    // last query this entry was matched against, if any
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.Expiry.After(now)
}

// remainingTTL returns the TTL, in seconds, that should be advertised for
// this entry if it were to be included in an outgoing known-answer list at
// time now: the record's original TTL minus however much of its half-life
// has already elapsed, floored at zero.
func (e *cacheEntry) remainingTTL(now time.Time) uint32 {
	full := e.RR.Header().Ttl
	halfLife := time.Duration(full) * time.Second / 2
	inserted := e.Expiry.Add(-halfLife - cacheExpiryGrace)
	elapsed := now.Sub(inserted)
	remaining := time.Duration(full)*time.Second - elapsed
	if remaining < 0 {
		return 0
	}
	return uint32(remaining / time.Second)
}

// expireNotifier is invoked once per cache entry that is removed, whether
// by expiry, cache-flush, or an incoming goodbye. The engine façade
// supplies this to fire the entry's attached query callback with ttl=0 and
// handle the deregistration sentinel.
type expireNotifier func(e *cacheEntry)

// cache is the engine's store of received resource records (component C3).
type cache struct {
	clock    Clock
	idx      *nameIndex[*cacheEntry]
	nextGC   time.Time
	onInsert func(*cacheEntry)
}

func newCache(clock Clock) *cache {
	return &cache{
		clock:  clock,
		idx:    newNameIndex[*cacheEntry](cacheBuckets),
		nextGC: clock.Now().Add(bruteForceGCInterval),
	}
}

// setInsertHook registers fn to be called every time an entry is freshly
// inserted or refreshed, so the query registry can fire matching callbacks.
func (c *cache) setInsertHook(fn func(*cacheEntry)) {
	c.onInsert = fn
}

// Insert processes an incoming answer RR. flush indicates the cache-flush
// bit was set on the record (RFC 6762 section 10.2). notify is called for
// every query whose answer was invalidated, so the caller (the engine
// façade) can run the callback and handle deregistration.
func (c *cache) Insert(now time.Time, rr dns.RR, flush bool, notify expireNotifier) {
	hdr := rr.Header()
	key := newRecordKey(hdr.Name, hdr.Rrtype)

	if flush {
		// https://tools.ietf.org/html/rfc6762#section-10.2
		//
		// A cache-flush answer asserts that it is the entire current rrset;
		// anything else cached under this name/type is stale.
		removed := c.idx.RemoveMatching(key, func(e *cacheEntry) bool {
			return !wire.DataEqual(e.RR, rr)
		})
		for _, e := range removed {
			c.expireEntry(e, notify)
		}
	}

	if hdr.Ttl == 0 {
		// Goodbye: withdraw any entry whose data matches. A goodbye for a
		// name that was never cached is a no-op.
		removed := c.idx.RemoveMatching(key, func(e *cacheEntry) bool {
			return wire.DataEqual(e.RR, rr)
		})
		for _, e := range removed {
			c.expireEntry(e, notify)
		}
		return
	}

	// Refresh in place if this is the same data, otherwise add a new member
	// of the rrset.
	for _, e := range c.idx.Get(key) {
		if wire.DataEqual(e.RR, rr) {
			e.RR = rr
			e.Expiry = now.Add(time.Duration(hdr.Ttl)*time.Second/2 + cacheExpiryGrace)
			if c.onInsert != nil {
				c.onInsert(e)
			}
			return
		}
	}

	entry := &cacheEntry{
		RR:     rr,
		Expiry: now.Add(time.Duration(hdr.Ttl)*time.Second/2 + cacheExpiryGrace),
	}
	c.idx.Append(key, entry)
	if c.onInsert != nil {
		c.onInsert(entry)
	}
}

func (c *cache) expireEntry(e *cacheEntry, notify expireNotifier) {
	if e.Query != nil {
		notify(e)
	}
}

// List returns cached entries for (name, qtype).
func (c *cache) List(name string, qtype uint16) []*cacheEntry {
	return c.idx.Get(newRecordKey(name, qtype))
}

// Sweep removes expired entries from the bucket holding (name, qtype),
// notifying any attached query one final time with ttl=0.
func (c *cache) Sweep(now time.Time, name string, qtype uint16, notify expireNotifier) {
	key := newRecordKey(name, qtype)
	removed := c.idx.RemoveMatching(key, func(e *cacheEntry) bool {
		return e.expired(now)
	})
	for _, e := range removed {
		c.expireEntry(e, notify)
	}
}

// SweepAll walks every bucket, removing any entry that has expired. Out()
// invokes it once bruteForceGCInterval has passed since the last full sweep,
// on a call that has no other packet to emit.
func (c *cache) SweepAll(now time.Time, notify expireNotifier) {
	removed := c.idx.WalkBucketsAndRemove(func(_ recordKey, e *cacheEntry) bool {
		return e.expired(now)
	})
	for _, e := range removed {
		c.expireEntry(e, notify)
	}

	if !now.Before(c.nextGC) {
		c.nextGC = now.Add(bruteForceGCInterval)
	}
}

// Flush clears the entire cache without firing expiry notifications; used
// by Engine.Flush (see SPEC_FULL.md section 12).
func (c *cache) Flush() {
	for b := range c.idx.buckets {
		c.idx.buckets[b] = nil
	}
}
