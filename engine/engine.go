// Package engine implements the non-blocking mDNS/DNS-SD protocol core: a
// single-threaded state machine that a caller drives with In, Out, and
// Sleep, supplying its own socket I/O and clock. No goroutine, channel, or
// lock lives inside this package; see the responder package for a daemon
// wrapper that drives one Engine per network interface concurrently.
package engine

import (
	"math/rand"
	"net"
	"time"

	"github.com/jmalloc/mdnsd/wire"
	"github.com/miekg/dns"
)

// MulticastAddr4 and MulticastAddr6 are the well-known mDNS group addresses.
const (
	MulticastAddr4 = "224.0.0.251:5353"
	MulticastAddr6 = "[ff02::fb]:5353"
)

// Stats counts engine activity for observability; it carries no behavior.
type Stats struct {
	AnswersCached      uint64
	QuestionsAnswered  uint64
	Conflicts          uint64
	MalformedDropped   uint64
	PacketsSent        uint64
	PacketsReceived    uint64
}

// ReceiveCallback is invoked once for every incoming answer, before it is
// cached, purely for observability -- it cannot veto or alter the answer.
type ReceiveCallback func(rr dns.RR)

// Config supplies the engine's external dependencies. Clock defaults to
// SystemClock if nil. FrameSize bounds outgoing packets and defaults to
// wire.MaxCoreFrameSize. Network selects which multicast group Out directs
// its packets to; it defaults to "udp4". An engine instance answers for a
// single address family -- the responder package drives one engine per
// interface/family pair, per section 5's concurrency model.
type Config struct {
	Clock     Clock
	FrameSize int
	Network   string
}

// Packet is a unit of work returned by Out: a wire message plus the
// destination it should be sent to. Unicast replies carry a specific
// destination; everything else targets the multicast group.
type Packet struct {
	Message *dns.Msg
	Dest    net.Addr
}

type unicastReply struct {
	msg  *dns.Msg
	dest net.Addr
}

// Engine is one non-blocking instance of the protocol core (component C7).
// It is not safe for concurrent use; drive it from a single goroutine.
type Engine struct {
	clock     Clock
	frameSize int
	network   string

	cache     *cache
	pub       *publicationStore
	queries   *queryRegistry
	scheduler *scheduler

	unicast []unicastReply
	onRecv  ReceiveCallback

	shuttingDown bool
	stats        Stats
}

// New creates an engine ready to be driven by In/Out/Sleep.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = wire.MaxCoreFrameSize
	}
	network := cfg.Network
	if network == "" {
		network = "udp4"
	}

	c := newCache(clock)
	p := newPublicationStore(clock, rand.Intn)
	q := newQueryRegistry()

	e := &Engine{
		clock:     clock,
		frameSize: frameSize,
		network:   network,
		cache:     c,
		pub:       p,
		queries:   q,
		scheduler: newScheduler(q, p, c),
	}

	c.setInsertHook(e.notifyQueriesOfInsert)
	return e
}

// notifyQueriesOfInsert fires the matching query's callback when a cache
// entry is freshly inserted or refreshed.
func (e *Engine) notifyQueriesOfInsert(entry *cacheEntry) {
	hdr := entry.RR.Header()
	q := e.queries.lookup(hdr.Name, hdr.Rrtype)
	if q == nil {
		return
	}
	entry.Query = q
	if !q.fire(entry.RR, hdr.Ttl) {
		e.queries.remove(q)
	}
}

// notifyQueryOfExpiry fires ttl=0 to the query attached to an expiring
// cache entry, deregistering it if the callback returns false.
func (e *Engine) notifyQueryOfExpiry(entry *cacheEntry) {
	q := entry.Query
	if q == nil {
		return
	}
	if !q.fire(entry.RR, 0) {
		e.queries.remove(q)
	}
}

// In processes one received message. src is the sender's address; it is
// inspected only for its port, to decide whether a unicast reply is owed.
// Malformed messages and unsupported data are silently dropped, per the
// error-handling policy: the core never raises asynchronously on bad input.
func (e *Engine) In(msg *dns.Msg, src net.Addr) {
	if msg == nil {
		return
	}
	e.stats.PacketsReceived++
	now := e.clock.Now()

	if !msg.Response {
		e.handleQuestions(msg, src, now)
		return
	}
	e.handleAnswers(msg, now)
}

func (e *Engine) handleQuestions(msg *dns.Msg, src net.Addr, now time.Time) {
	unicastRequested := false
	if a, ok := addrPort(src); ok && a != 5353 {
		unicastRequested = true
	}

	for _, question := range msg.Question {
		records := e.pub.Lookup(question.Name, question.Qtype)
		if len(records) == 0 {
			continue
		}

		for _, r := range records {
			if r.IsProbing() {
				// A still-probing record can't yet answer questions; it can
				// only lose a simultaneous probe conflict.
				e.conflictsWithAuthority(r, msg)
				continue
			}

			if e.matchedByKnownAnswer(r, msg) {
				continue
			}

			r.Tries = 0
			e.pub.enqueueNow(r)
		}

		if unicastRequested {
			e.queueUnicastReply(question, records, src, msg.Id)
		}
	}
}

// conflictsWithAuthority checks a probing record's name/type against the
// authority section of an incoming question, per section 4.3.1's matching
// rule; on conflict it de-lists r and invokes its conflict handler.
func (e *Engine) conflictsWithAuthority(r *Record, msg *dns.Msg) bool {
	for _, ns := range msg.Ns {
		if !wire.SameRecordSet(ns, r.Name, r.Type) {
			continue
		}
		if e.pub.checkConflict(r, ns, wire.DataEqual) {
			e.stats.Conflicts++
			return true
		}
	}
	return false
}

// matchedByKnownAnswer reports whether an answer already present in the
// querier's known-answer list (RFC 6762 section 7.1) covers r, in which
// case our reply is suppressed.
func (e *Engine) matchedByKnownAnswer(r *Record, msg *dns.Msg) bool {
	for _, an := range msg.Answer {
		if wire.SameRecordSet(an, r.Name, r.Type) && wire.DataEqual(an, r.RR) && an.Header().Ttl > r.RR.Header().Ttl/2 {
			return true
		}
	}
	return false
}

func (e *Engine) queueUnicastReply(q dns.Question, records []*Record, src net.Addr, id uint16) {
	msg := wire.NewResponse(true)
	msg.Id = id
	for _, r := range records {
		msg.Answer = append(msg.Answer, r.RR)
	}
	e.unicast = append(e.unicast, unicastReply{msg: msg, dest: src})
}

func (e *Engine) handleAnswers(msg *dns.Msg, now time.Time) {
	for _, an := range msg.Answer {
		if e.onRecv != nil {
			e.onRecv(an)
		}

		hdr := an.Header()
		cacheFlush := hdr.Class&wire.CacheFlushBit != 0

		for _, r := range e.pub.Lookup(hdr.Name, hdr.Rrtype) {
			if r.Unique && !wire.DataEqual(r.RR, an) {
				if e.pub.checkConflict(r, an, wire.DataEqual) {
					e.stats.Conflicts++
				}
			}
		}

		e.cache.Insert(now, an, cacheFlush, e.notifyQueryOfExpiry)
		e.stats.AnswersCached++
	}
}

// Out drains one unit of outgoing work, in the strict priority order of
// section 4.7: unicast replies, then immediate responses, then publication
// retries, then paused (jittered) responses, then probes, then query
// retransmissions. The returned bool reports whether Out should be called
// again immediately (more work pending) without waiting on Sleep.
func (e *Engine) Out() (*Packet, bool) {
	now := e.clock.Now()

	if len(e.unicast) > 0 {
		r := e.unicast[0]
		e.unicast = e.unicast[1:]
		e.stats.PacketsSent++
		return &Packet{Message: r.msg, Dest: r.dest}, e.hasMoreWork(now)
	}

	if len(e.pub.now) > 0 {
		return e.drainAnswerQueue(&e.pub.now, now), e.hasMoreWork(now)
	}

	if !e.pub.publishDeadline.IsZero() && !now.Before(e.pub.publishDeadline) && len(e.pub.publish) > 0 {
		pkt := e.drainPublishBurst(now)
		return pkt, e.hasMoreWork(now)
	}

	if !e.pub.pauseDeadline.IsZero() && !now.Before(e.pub.pauseDeadline) && len(e.pub.pause) > 0 {
		return e.drainAnswerQueue(&e.pub.pause, now), e.hasMoreWork(now)
	}

	if !e.pub.probeDeadline.IsZero() && !now.Before(e.pub.probeDeadline) && len(e.pub.probe) > 0 {
		pkt := e.drainProbe(now)
		return pkt, e.hasMoreWork(now)
	}

	if cp := e.queries.checkpoint(); !cp.IsZero() && !now.Before(cp) {
		pkt := e.drainQueryRetransmits(now)
		return pkt, e.hasMoreWork(now)
	}

	if !now.Before(e.cache.nextGC) {
		e.cache.SweepAll(now, e.notifyQueryOfExpiry)
	}

	return nil, false
}

func (e *Engine) hasMoreWork(now time.Time) bool {
	if len(e.unicast) > 0 || len(e.pub.now) > 0 {
		return true
	}
	if !e.pub.publishDeadline.IsZero() && !now.Before(e.pub.publishDeadline) && len(e.pub.publish) > 0 {
		return true
	}
	if !e.pub.pauseDeadline.IsZero() && !now.Before(e.pub.pauseDeadline) && len(e.pub.pause) > 0 {
		return true
	}
	if !e.pub.probeDeadline.IsZero() && !now.Before(e.pub.probeDeadline) && len(e.pub.probe) > 0 {
		return true
	}
	if cp := e.queries.checkpoint(); !cp.IsZero() && !now.Before(cp) {
		return true
	}
	return false
}

// drainAnswerQueue empties queue (a_now or a_pause) into a single response
// message, respecting the configured frame size, and retires any record
// whose goodbye has just been sent.
func (e *Engine) drainAnswerQueue(queue *[]*Record, now time.Time) *Packet {
	msg := wire.NewResponse(false)

	budget := e.frameSize
	kept := (*queue)[:0]
	for _, r := range *queue {
		size := estimateRRSize(r.RR)
		if size > budget && len(msg.Answer) > 0 {
			// Does not fit: leave it queued for the next Out.
			kept = append(kept, r)
			continue
		}
		msg.Answer = append(msg.Answer, r.RR)
		r.lastSent = now
		budget -= size

		r.location = locationNone
		if r.goodbye {
			e.pub.forgetIfGoodbye(r)
		}
	}
	*queue = kept

	e.stats.PacketsSent++
	e.stats.QuestionsAnswered += uint64(len(msg.Answer))
	return &Packet{Message: msg, Dest: e.multicastAddr()}
}

// drainPublishBurst emits one announcement for every record in a_publish,
// incrementing their retry counters; records that have completed the
// 4-announcement burst are dropped from the queue (they remain published,
// simply quiescent until mutated or re-probed), and records whose goodbye
// has just gone out are freed.
func (e *Engine) drainPublishBurst(now time.Time) *Packet {
	msg := wire.NewResponse(false)

	var kept []*Record
	for _, r := range e.pub.publish {
		msg.Answer = append(msg.Answer, r.RR)
		r.lastSent = now
		r.Tries++

		if r.goodbye {
			e.pub.forgetIfGoodbye(r)
			continue
		}
		if r.Tries < announceBurst {
			kept = append(kept, r)
		} else {
			r.location = locationNone
		}
	}
	e.pub.publish = kept

	if len(kept) > 0 {
		e.pub.publishDeadline = now.Add(announceInterval)
	} else {
		e.pub.publishDeadline = time.Time{}
	}

	e.stats.PacketsSent++
	return &Packet{Message: msg, Dest: e.multicastAddr()}
}

// drainProbe emits one probe packet for every record in the probe queue
// that still has a probe left to send: QD entries asking about (name,
// type), plus an authority section carrying the tentative data so other
// probers can detect a simultaneous conflict. Four such passes occur, one
// for each of StateProbe1 through StateProbe4; a record that sent its
// fourth and final probe on the prior pass is promoted to StatePublished
// on this pass instead of sending a fifth one.
func (e *Engine) drainProbe(now time.Time) *Packet {
	msg := wire.NewQuery(false)

	var remaining []*Record
	for _, r := range e.pub.probe {
		if r.Tries >= probeCount {
			r.State = StatePublished
			r.Tries = 0 // the announce burst counts its own tries
			r.location = locationNone
			e.pub.enqueuePublish(r, now)
			continue
		}

		msg.Question = append(msg.Question, dns.Question{
			Name:   r.Name,
			Qtype:  r.Type,
			Qclass: dns.ClassINET,
		})
		msg.Ns = append(msg.Ns, r.RR)
		r.Tries++
		if r.State < StateProbe4 {
			r.State++
		}
		remaining = append(remaining, r)
	}
	e.pub.probe = remaining

	if len(remaining) > 0 {
		e.pub.probeDeadline = now.Add(probeInterval)
	} else {
		e.pub.probeDeadline = time.Time{}
	}

	e.stats.PacketsSent++
	return &Packet{Message: msg, Dest: e.multicastAddr()}
}

// drainQueryRetransmits emits one query packet covering every due query,
// with known-answer suppression lists attached from the cache as long as
// the packet's frame-size budget permits, per section 4.6's retry policy.
func (e *Engine) drainQueryRetransmits(now time.Time) *Packet {
	msg := wire.NewQuery(false)
	budget := e.frameSize

	for _, q := range e.queries.dueQueries(now) {
		msg.Question = append(msg.Question, dns.Question{
			Name:   q.Name,
			Qtype:  q.Type,
			Qclass: dns.ClassINET,
		})

		for _, entry := range e.cache.List(q.Name, q.Type) {
			if entry.expired(now) {
				continue
			}
			if budget <= 0 {
				break
			}
			rr := dns.Copy(entry.RR)
			rr.Header().Ttl = entry.remainingTTL(now)
			msg.Answer = append(msg.Answer, rr)
			budget -= estimateRRSize(rr)
		}

		q.Tries++
		if q.Tries < maxQueryRetries {
			q.NextTry = now.Add(time.Duration(q.Tries) * time.Second)
		} else {
			e.cache.Sweep(now, q.Name, q.Type, e.notifyQueryOfExpiry)
			q.Tries = 0
			q.NextTry = time.Time{}
		}
	}

	e.stats.PacketsSent++
	return &Packet{Message: msg, Dest: e.multicastAddr()}
}

// Sleep returns how long the caller may wait before invoking Out again.
// Zero means Out has immediate work.
func (e *Engine) Sleep() time.Duration {
	return e.scheduler.sleep(e.clock.Now(), len(e.unicast) > 0)
}

// Query registers or updates a standing question for (name, qtype). Pass a
// nil callback to deregister, per section 4.6.
func (e *Engine) Query(name string, qtype uint16, cb QueryCallback) {
	if cb == nil {
		e.queries.unregister(name, qtype)
		return
	}

	now := e.clock.Now()
	q, created := e.queries.register(name, qtype, cb, now)
	if !created {
		return
	}

	for _, entry := range e.cache.List(name, qtype) {
		if entry.expired(now) {
			continue
		}
		entry.Query = q
		if !cb(&Answer{RR: entry.RR, TTL: entry.RR.Header().Ttl}) {
			e.queries.remove(q)
			return
		}
	}
}

// ListCache returns the cached resource records for (name, qtype).
func (e *Engine) ListCache(name string, qtype uint16) []*Answer {
	now := e.clock.Now()
	var out []*Answer
	for _, entry := range e.cache.List(name, qtype) {
		if entry.expired(now) {
			continue
		}
		out = append(out, &Answer{RR: entry.RR, TTL: entry.remainingTTL(now)})
	}
	return out
}

// PublishShared registers rr as a shared record: never probed, and
// compatible with other responders asserting the same data.
func (e *Engine) PublishShared(rr dns.RR) *Record {
	hdr := rr.Header()
	return e.pub.PublishShared(e.clock.Now(), hdr.Name, hdr.Rrtype, rr)
}

// PublishUnique registers rr as a unique record, starting its probe cycle.
// cb is invoked, with the record already de-listed, if a conflicting
// assertion is observed from another responder.
func (e *Engine) PublishUnique(rr dns.RR, cb ConflictHandler) *Record {
	hdr := rr.Header()
	return e.pub.PublishUnique(e.clock.Now(), hdr.Name, hdr.Rrtype, rr, cb)
}

// SetRaw replaces r's record with an arbitrary pre-built RR, triggering
// re-announcement (re-probing, if r is unique).
func (e *Engine) SetRaw(r *Record, rr dns.RR) {
	e.pub.Mutate(e.clock.Now(), r, rr)
}

// SetHost republishes r as a CNAME alias to target.
func (e *Engine) SetHost(r *Record, target string) {
	rr := &dns.CNAME{
		Hdr:    dns.RR_Header{Name: r.Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: r.RR.Header().Ttl},
		Target: dns.Fqdn(target),
	}
	e.SetRaw(r, rr)
}

// SetIP republishes r as an A record if ip is an IPv4 address, and as an
// AAAA record otherwise; r's existing record type is not consulted.
func (e *Engine) SetIP(r *Record, ip net.IP) {
	ttl := r.RR.Header().Ttl
	if v4 := ip.To4(); v4 != nil {
		e.SetRaw(r, &dns.A{
			Hdr: dns.RR_Header{Name: r.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
			A:   v4,
		})
		return
	}
	e.SetRaw(r, &dns.AAAA{
		Hdr:  dns.RR_Header{Name: r.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: ttl},
		AAAA: ip,
	})
}

// SetSRV republishes r as an RFC 2782 SRV record.
func (e *Engine) SetSRV(r *Record, priority, weight, port uint16, target string) {
	rr := &dns.SRV{
		Hdr:      dns.RR_Header{Name: r.Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: r.RR.Header().Ttl},
		Priority: priority,
		Weight:   weight,
		Port:     port,
		Target:   dns.Fqdn(target),
	}
	e.SetRaw(r, rr)
}

// Done de-lists r: a goodbye announcement is queued if it was ever
// published, otherwise it is freed immediately (still probing).
func (e *Engine) Done(r *Record) {
	e.pub.Done(e.clock.Now(), r)
}

// Shutdown marks every still-live publication for goodbye and queues it for
// immediate send. The caller must keep draining Out until it returns no
// packet, then call Free.
func (e *Engine) Shutdown() {
	e.shuttingDown = true
	e.pub.ShutdownAll(e.clock.Now())
}

// Free reports whether shutdown's goodbye announcements have all been
// drained and the engine may be discarded.
func (e *Engine) Free() bool {
	return e.shuttingDown && !e.pub.HasPendingWork() && len(e.unicast) == 0
}

// Flush clears the cache, restarts every unique publication's probe cycle,
// and resets every standing query's retry schedule to fire immediately --
// used to recover from events like a network interface address change. See
// SPEC_FULL.md section 12 for why this exists outside the original API.
func (e *Engine) Flush() {
	now := e.clock.Now()
	e.cache.Flush()
	e.pub.Flush(now)
	e.queries.resetAll(now)
}

// RegisterReceiveCallback installs an observability hook invoked on every
// incoming answer before it is cached. Pass nil to remove it.
func (e *Engine) RegisterReceiveCallback(cb ReceiveCallback) {
	e.onRecv = cb
}

// Stats returns a snapshot of the engine's activity counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

func addrPort(a net.Addr) (int, bool) {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.Port, true
	default:
		return 0, false
	}
}

// multicastAddr resolves the well-known mDNS group address for this
// engine's configured address family.
func (e *Engine) multicastAddr() net.Addr {
	group := MulticastAddr4
	network := e.network
	if network == "" {
		network = "udp4"
	}
	if network == "udp6" {
		group = MulticastAddr6
	}

	addr, err := net.ResolveUDPAddr(network, group)
	if err != nil {
		return nil
	}
	return addr
}

// estimateRRSize gives a conservative estimate of rr's encoded size, used
// only to decide when to stop packing more records into a frame; the wire
// codec performs the exact, authoritative size accounting at Pack time.
func estimateRRSize(rr dns.RR) int {
	m := new(dns.Msg)
	m.Answer = []dns.RR{rr}
	buf := make([]byte, 65535)
	b, err := m.PackBuffer(buf)
	if err != nil {
		// Fall back to the presentation-format length, which over-estimates
		// but never under-estimates badly enough to blow the frame budget.
		return len(rr.String())
	}
	return len(b)
}
