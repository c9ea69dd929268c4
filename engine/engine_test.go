package engine_test

import (
	"net"
	"time"

	"github.com/jmalloc/mdnsd/engine"
	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func aRecord(name string, ip string, ttl uint32) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   net.ParseIP(ip).To4(),
	}
}

var _ = Describe("Engine", func() {
	var (
		clock *fakeClock
		e     *engine.Engine
	)

	BeforeEach(func() {
		clock = newFakeClock()
		e = engine.New(engine.Config{Clock: clock})
	})

	Describe("PublishUnique", func() {
		It("probes four times before announcing", func() {
			r := e.PublishUnique(aRecord("host.local.", "10.0.0.1", 120), nil)
			Expect(r.IsProbing()).To(BeTrue())

			for i := 0; i < 4; i++ {
				Expect(e.Sleep()).To(Equal(time.Duration(0)))
				pkt, _ := e.Out()
				Expect(pkt).NotTo(BeNil())
				Expect(pkt.Message.Question).To(HaveLen(1))
				Expect(pkt.Message.Question[0].Name).To(Equal("host.local."))
				clock.Advance(250 * time.Millisecond)
			}

			// The fourth probe has been sent, but promotion happens on the
			// next pass, not this one.
			Expect(r.IsProbing()).To(BeTrue())

			Expect(e.Sleep()).To(Equal(time.Duration(0)))
			promote, _ := e.Out()
			Expect(promote).NotTo(BeNil())
			Expect(promote.Message.Question).To(BeEmpty())
			Expect(r.IsProbing()).To(BeFalse())

			// The completed probe cycle enqueues the first of a 4-packet
			// announce burst, due immediately.
			pkt, _ := e.Out()
			Expect(pkt).NotTo(BeNil())
			Expect(pkt.Message.Response).To(BeTrue())
			Expect(pkt.Message.Answer).To(HaveLen(1))
		})
	})

	Describe("PublishShared", func() {
		It("emits the record after its jittered pause, never probing", func() {
			r := e.PublishShared(aRecord("_svc._tcp.local.", "10.0.0.2", 4500))
			Expect(r.IsProbing()).To(BeFalse())

			clock.Advance(200 * time.Millisecond)
			pkt, more := e.Out()
			Expect(pkt).NotTo(BeNil())
			Expect(more).To(BeFalse())
			Expect(pkt.Message.Answer[0].Header().Name).To(Equal("_svc._tcp.local."))
		})
	})

	Describe("Done", func() {
		It("queues an immediate goodbye for an already-published record", func() {
			r := e.PublishShared(aRecord("_svc._tcp.local.", "10.0.0.2", 4500))
			clock.Advance(200 * time.Millisecond)
			e.Out() // drain the initial announce

			e.Done(r)
			Expect(e.Sleep()).To(Equal(time.Duration(0)))

			pkt, _ := e.Out()
			Expect(pkt).NotTo(BeNil())
			Expect(pkt.Message.Answer[0].Header().Ttl).To(Equal(uint32(0)))
		})

		It("frees a still-probing record without announcing a goodbye", func() {
			r := e.PublishUnique(aRecord("host.local.", "10.0.0.1", 120), nil)
			e.Done(r)

			pkt, more := e.Out()
			Expect(pkt).To(BeNil())
			Expect(more).To(BeFalse())
		})
	})

	Describe("In/Query", func() {
		It("caches an incoming answer and serves it from ListCache", func() {
			msg := new(dns.Msg)
			msg.Response = true
			msg.Answer = []dns.RR{aRecord("host.local.", "10.0.0.9", 120)}

			e.In(msg, &net.UDPAddr{Port: 5353})

			answers := e.ListCache("host.local.", dns.TypeA)
			Expect(answers).To(HaveLen(1))
			Expect(answers[0].RR.(*dns.A).A.String()).To(Equal("10.0.0.9"))
		})

		It("delivers a later-arriving answer to a registered query callback", func() {
			var got []dns.RR
			e.Query("host.local.", dns.TypeA, func(a *engine.Answer) bool {
				got = append(got, a.RR)
				return true
			})

			msg := new(dns.Msg)
			msg.Response = true
			msg.Answer = []dns.RR{aRecord("host.local.", "10.0.0.9", 120)}
			e.In(msg, &net.UDPAddr{Port: 5353})

			Expect(got).To(HaveLen(1))
		})
	})

	Describe("Out priority order", func() {
		It("answers a unicast question before draining a pending shared announce", func() {
			e.PublishShared(aRecord("_svc._tcp.local.", "10.0.0.2", 4500))

			q := new(dns.Msg)
			q.Question = []dns.Question{{Name: "_svc._tcp.local.", Qtype: dns.TypeA, Qclass: dns.ClassINET}}
			e.In(q, &net.UDPAddr{Port: 9999})

			pkt, more := e.Out()
			Expect(pkt).NotTo(BeNil())
			Expect(pkt.Dest).To(Equal(&net.UDPAddr{Port: 9999}))
			Expect(more).To(BeTrue())
		})
	})

	Describe("Shutdown/Free", func() {
		It("is not free until every goodbye has been drained", func() {
			e.PublishShared(aRecord("_svc._tcp.local.", "10.0.0.2", 4500))
			clock.Advance(200 * time.Millisecond)
			e.Out()

			e.Shutdown()
			Expect(e.Free()).To(BeFalse())

			e.Out()
			Expect(e.Free()).To(BeTrue())
		})
	})

	Describe("Flush", func() {
		It("clears the cache and restarts unique probing", func() {
			msg := new(dns.Msg)
			msg.Response = true
			msg.Answer = []dns.RR{aRecord("other.local.", "10.0.0.9", 120)}
			e.In(msg, &net.UDPAddr{Port: 5353})
			Expect(e.ListCache("other.local.", dns.TypeA)).To(HaveLen(1))

			r := e.PublishUnique(aRecord("host.local.", "10.0.0.1", 120), nil)
			for i := 0; i < 5; i++ {
				e.Out()
				clock.Advance(250 * time.Millisecond)
			}
			Expect(r.IsProbing()).To(BeFalse())

			e.Flush()

			Expect(e.ListCache("other.local.", dns.TypeA)).To(BeEmpty())
			Expect(r.IsProbing()).To(BeTrue())
		})
	})
})
