package engine

import "time"

// scheduler computes the engine's next wake-up deadline from the five time
// horizons described in spec.md section 4.5 (component C5). It holds no
// state of its own beyond the query checkpoint and the background GC
// horizon; the publication store owns the now/pause/probe/publish
// deadlines it is responsible for.
type scheduler struct {
	queries *queryRegistry
	pub     *publicationStore
	cache   *cache
}

func newScheduler(q *queryRegistry, p *publicationStore, c *cache) *scheduler {
	return &scheduler{queries: q, pub: p, cache: c}
}

// readyNow reports whether Out() has immediate work: a non-empty a_now
// queue or a pending unicast reply. The caller passes hasUnicast in
// because the unicast-reply queue is owned by the engine façade.
func (s *scheduler) readyNow(hasUnicast bool) bool {
	return hasUnicast || len(s.pub.now) > 0
}

// sleep computes the duration the caller should wait before invoking Out()
// again, per spec.md section 4.5: the minimum positive delta across every
// horizon, shortened so that published records are re-transmitted at least
// 2 seconds before their TTL would lapse.
func (s *scheduler) sleep(now time.Time, hasUnicast bool) time.Duration {
	if s.readyNow(hasUnicast) {
		return 0
	}

	min := s.cache.nextGC

	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if t.Before(min) {
			min = t
		}
	}

	consider(s.pub.pauseDeadline)
	consider(s.pub.probeDeadline)
	consider(s.pub.publishDeadline)
	consider(s.queries.checkpoint())

	for _, r := range s.pub.idx.All() {
		if r.goodbye || r.RR.Header().Ttl == 0 {
			continue
		}
		// Invariant 4: every published record is resent at least once in
		// the second half of its TTL window, i.e. no later than
		// lastSent + ttl - 2s margin.
		refresh := r.lastSent.Add(time.Duration(r.RR.Header().Ttl) * time.Second / 2)
		consider(refresh.Add(-2 * time.Second))
	}

	d := min.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
