package wire_test

import (
	"testing"

	"github.com/jmalloc/mdnsd/wire"
	"github.com/miekg/dns"
)

func TestNewQueryFraming(t *testing.T) {
	m := wire.NewQuery(false)

	if m.Id != 0 {
		t.Errorf("non-legacy query must use transaction id 0, got %d", m.Id)
	}
	if m.Response {
		t.Error("NewQuery produced a response-flagged message")
	}
	if m.RecursionDesired || m.Opcode != dns.OpcodeQuery {
		t.Error("NewQuery did not zero the mDNS-reserved header bits")
	}
}

func TestNewQueryLegacyKeepsTransactionID(t *testing.T) {
	m := wire.NewQuery(true)
	if m.Id == 0 {
		t.Error("a legacy one-shot query should carry a non-zero transaction id")
	}
}

func TestNewResponseMulticastZeroesID(t *testing.T) {
	m := wire.NewResponse(false)
	if m.Id != 0 {
		t.Errorf("multicast response must use transaction id 0, got %d", m.Id)
	}
	if !m.Response || !m.Authoritative {
		t.Error("NewResponse must set Response and Authoritative")
	}
}

func TestValidateQueryRejectsResponses(t *testing.T) {
	m := wire.NewResponse(false)
	if err := wire.ValidateQuery(m); err == nil {
		t.Error("expected a response message to fail query validation")
	}
}

func TestUnicastResponseBitRoundTrip(t *testing.T) {
	q := dns.Question{Name: "host.local.", Qtype: dns.TypeA, Qclass: dns.ClassINET}

	marked := wire.SetUnicastResponse(q)
	wants, cleared := wire.WantsUnicastResponse(marked)

	if !wants {
		t.Error("expected WantsUnicastResponse to report true")
	}
	if cleared.Qclass != dns.ClassINET {
		t.Errorf("expected the class to be restored to ClassINET, got %d", cleared.Qclass)
	}
}

func TestCacheFlushBitRoundTrip(t *testing.T) {
	rr := &dns.A{Hdr: dns.RR_Header{Name: "host.local.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120}}

	flagged := wire.SetCacheFlush(rr)
	isFlush, cleared := wire.IsCacheFlush(flagged)

	if !isFlush {
		t.Error("expected IsCacheFlush to report true")
	}
	if cleared.Header().Class != dns.ClassINET {
		t.Errorf("expected the class to be restored to ClassINET, got %d", cleared.Header().Class)
	}
}

func TestPackRejectsOversizedMessage(t *testing.T) {
	m := wire.NewResponse(false)
	for i := 0; i < 100; i++ {
		m.Answer = append(m.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: "host.local.", Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 120},
			Txt: []string{"some reasonably long text value to pad out the record"},
		})
	}

	if _, err := wire.Pack(m, 100); err == nil {
		t.Error("expected an oversized message to be rejected at a 100-octet frame size")
	}
}

func TestPackUnmarshalRoundTrip(t *testing.T) {
	m := wire.NewResponse(false)
	m.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: "host.local.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120},
		A:   []byte{10, 0, 0, 1},
	}}

	packed, err := wire.Pack(m, wire.MaxCoreFrameSize)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	got, err := wire.Unmarshal(packed)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got.Answer) != 1 || got.Answer[0].Header().Name != "host.local." {
		t.Fatalf("round-tripped message did not match: %+v", got)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := wire.Unmarshal([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("expected an error unmarshalling a truncated/garbage packet")
	}
}
