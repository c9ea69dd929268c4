package engine

import (
	"time"

	"github.com/miekg/dns"
)

// UniqueState is the probing/announcement state of a published record.
//
// See spec.md section 4.4's probing state machine.
type UniqueState int

const (
	// StateShared marks a record that is never probed: any number of
	// responders may hold the same data for this name and type.
	StateShared UniqueState = 0

	// StateProbe1 through StateProbe4 are the four probe rounds a unique
	// record passes through before it may be announced, one network probe
	// per state (RFC 6762 section 8.1 calls for three; spec.md's table adds
	// a fourth). Promotion to StatePublished happens on the pass after the
	// state-4 probe is sent, never within the same pass.
	StateProbe1 UniqueState = 1
	StateProbe2 UniqueState = 2
	StateProbe3 UniqueState = 3
	StateProbe4 UniqueState = 4

	// StatePublished marks a unique record that has completed probing
	// without conflict and is now announced on the network.
	StatePublished UniqueState = 5
)

// probeCount is the number of probe packets sent before a unique record is
// eligible for promotion to StatePublished: one per pass through states
// StateProbe1 to StateProbe4. Promotion itself happens on the pass after
// the fourth probe, not the same pass that sends it (spec.md section 4.4).
const probeCount = 4

// announceBurst is the number of announcements sent when a record is first
// published (or re-announced after a data change), per spec.md section 4.4.
const announceBurst = 4

// announceInterval is the spacing between announcements within a burst.
const announceInterval = 2 * time.Second

// probeInterval is the minimum spacing between probe rounds, per RFC 6762
// section 8.1.
const probeInterval = 250 * time.Millisecond

// pauseJitterMin and pauseJitterMax bound the random delay applied before
// announcing a freshly-published shared record, per RFC 6762 section 6 and
// spec.md's open question about the source's biased jitter: we use
// math/rand's Intn for a uniform distribution over [20ms, 120ms], rather
// than the source's tv_usec-modulo scheme.
const (
	pauseJitterMin = 20 * time.Millisecond
	pauseJitterMax = 120 * time.Millisecond
)

// ConflictHandler is invoked when a unique record is found to conflict with
// data asserted by another responder. The record has already been
// de-listed by the time the handler runs.
type ConflictHandler func(rec *Record)

// queueLocation tracks which of the publication store's queues currently
// holds a record, so a record is never enqueued twice and Done() can remove
// it from wherever it is.
type queueLocation int

const (
	locationNone queueLocation = iota
	locationNow
	locationPause
	locationPublish
	locationProbe
)

// Record is a locally-published resource record (component C4).
type Record struct {
	Name   string
	Type   uint16
	RR     dns.RR
	Unique bool
	State  UniqueState
	Tries  int
	Conflict ConflictHandler

	lastSent     time.Time
	pauseUntil   time.Time
	nextAnnounce time.Time
	goodbye      bool
	location     queueLocation
}

// Key returns the (name, type) this record publishes.
func (r *Record) Key() recordKey {
	return newRecordKey(r.Name, r.Type)
}

// IsProbing returns true if the record is still establishing uniqueness.
func (r *Record) IsProbing() bool {
	return r.Unique && r.State >= StateProbe1 && r.State < StatePublished
}

// publicationStore holds every locally-owned record and its announce/probe
// queues (component C4).
type publicationStore struct {
	clock Clock
	idx   *nameIndex[*Record]

	now     []*Record // a_now: send as soon as possible
	pause   []*Record // a_pause: jittered aggregation window for shared records
	publish []*Record // a_publish: retried announce burst
	probe   []*Record // records in states 1-4, probed in FIFO order

	pauseDeadline   time.Time
	probeDeadline   time.Time
	publishDeadline time.Time

	rand func(n int) int
}

func newPublicationStore(clock Clock, rnd func(int) int) *publicationStore {
	return &publicationStore{
		clock: clock,
		idx:   newNameIndex[*Record](publicationBuckets),
		rand:  rnd,
	}
}

func (s *publicationStore) enqueueNow(r *Record) {
	s.dequeue(r)
	r.location = locationNow
	s.now = append(s.now, r)
}

func (s *publicationStore) enqueuePause(r *Record, now time.Time) {
	s.dequeue(r)
	r.location = locationPause
	s.pause = append(s.pause, r)

	delay := pauseJitterMin + time.Duration(s.rand(int(pauseJitterMax-pauseJitterMin)+1))
	deadline := now.Add(delay)
	if s.pauseDeadline.IsZero() || deadline.Before(s.pauseDeadline) {
		s.pauseDeadline = deadline
	}
}

func (s *publicationStore) enqueuePublish(r *Record, now time.Time) {
	s.dequeue(r)
	r.location = locationPublish
	s.publish = append(s.publish, r)

	if s.publishDeadline.IsZero() || now.Before(s.publishDeadline) {
		s.publishDeadline = now
	}
}

func (s *publicationStore) enqueueProbe(r *Record, now time.Time) {
	s.dequeue(r)
	r.location = locationProbe
	s.probe = append(s.probe, r)

	if s.probeDeadline.IsZero() || now.Before(s.probeDeadline) {
		s.probeDeadline = now
	}
}

// dequeue removes r from whichever queue it currently occupies.
func (s *publicationStore) dequeue(r *Record) {
	switch r.location {
	case locationNow:
		s.now = removeRecord(s.now, r)
	case locationPause:
		s.pause = removeRecord(s.pause, r)
	case locationPublish:
		s.publish = removeRecord(s.publish, r)
	case locationProbe:
		s.probe = removeRecord(s.probe, r)
	}
	r.location = locationNone
}

func removeRecord(queue []*Record, r *Record) []*Record {
	for i, x := range queue {
		if x == r {
			return append(queue[:i], queue[i+1:]...)
		}
	}
	return queue
}

// PublishShared registers a shared record. Shared records are never probed
// and may be held identically by multiple responders.
func (s *publicationStore) PublishShared(now time.Time, name string, qtype uint16, rr dns.RR) *Record {
	r := &Record{Name: name, Type: qtype, RR: rr, Unique: false, State: StateShared}
	s.idx.Append(r.Key(), r)
	s.enqueuePause(r, now)
	return r
}

// PublishUnique registers a unique record, starting its probe cycle.
func (s *publicationStore) PublishUnique(now time.Time, name string, qtype uint16, rr dns.RR, cb ConflictHandler) *Record {
	r := &Record{Name: name, Type: qtype, RR: rr, Unique: true, State: StateProbe1, Conflict: cb}
	s.idx.Append(r.Key(), r)
	s.enqueueProbe(r, now)
	return r
}

// Lookup returns every published record for (name, type).
func (s *publicationStore) Lookup(name string, qtype uint16) []*Record {
	return s.idx.Get(newRecordKey(name, qtype))
}

// Mutate replaces r's data, restarting the probe cycle if r is unique
// (invariant 7: a mutated unique record is re-probed for conflicts).
func (s *publicationStore) Mutate(now time.Time, r *Record, rr dns.RR) {
	r.RR = rr
	r.Tries = 0

	if r.Unique {
		r.State = StateProbe1
		s.enqueueProbe(r, now)
	} else {
		s.enqueuePause(r, now)
	}
}

// Done de-lists r. A record that is still probing is removed at once, with
// no goodbye. Otherwise a goodbye (ttl=0) announcement is queued for
// immediate send, and the record is removed from the index once Out has
// emitted that goodbye.
func (s *publicationStore) Done(now time.Time, r *Record) {
	wasProbing := r.IsProbing()
	r.goodbye = true
	r.RR.Header().Ttl = 0

	if wasProbing {
		// Never announced: nothing to retract, free immediately.
		s.dequeue(r)
		s.idx.RemoveMatching(r.Key(), func(x *Record) bool { return x == r })
		return
	}

	r.Tries = 0
	s.enqueueNow(r)
}

// forgetIfGoodbye removes r from the index once its goodbye has been sent.
func (s *publicationStore) forgetIfGoodbye(r *Record) {
	if r.goodbye {
		s.idx.RemoveMatching(r.Key(), func(x *Record) bool { return x == r })
	}
}

// ShutdownAll marks every still-live record for goodbye and queues it for
// immediate send, per the spec's two-phase shutdown.
func (s *publicationStore) ShutdownAll(now time.Time) {
	for _, r := range s.idx.All() {
		if r.goodbye {
			continue
		}
		s.Done(now, r)
	}
}

// HasPendingWork reports whether there is anything left to drain: used by
// the caller to know when it may free() the engine after shutdown.
func (s *publicationStore) HasPendingWork() bool {
	return len(s.now) > 0 || len(s.pause) > 0 || len(s.publish) > 0 || len(s.probe) > 0
}

// Flush moves every unique published record back to probing state 1,
// leaving shared records untouched. Used by Engine.Flush.
func (s *publicationStore) Flush(now time.Time) {
	for _, r := range s.idx.All() {
		if !r.Unique || r.goodbye {
			continue
		}
		r.State = StateProbe1
		r.Tries = 0
		s.enqueueProbe(r, now)
	}
}

// checkConflict compares one asserted record (an authority seen while r is
// probing, or an answer once r is published) against r's own data. If they
// differ, it de-lists r and invokes its conflict handler, returning true.
func (s *publicationStore) checkConflict(r *Record, asserted dns.RR, dataEqual func(a, b dns.RR) bool) bool {
	if !dataEqual(r.RR, asserted) {
		s.dequeue(r)
		s.idx.RemoveMatching(r.Key(), func(x *Record) bool { return x == r })
		if r.Conflict != nil {
			r.Conflict(r)
		}
		return true
	}
	return false
}
