package transport_test

import (
	"net"
	"testing"

	"github.com/jmalloc/mdnsd/transport"
	"github.com/miekg/dns"
)

func TestEndpointIsLegacy(t *testing.T) {
	std := transport.Endpoint{Address: &net.UDPAddr{Port: transport.Port}}
	if std.IsLegacy() {
		t.Error("expected the well-known mDNS port to not be legacy")
	}

	oneShot := transport.Endpoint{Address: &net.UDPAddr{Port: 54321}}
	if !oneShot.IsLegacy() {
		t.Error("expected a non-5353 source port to be treated as a legacy querier")
	}
}

func TestNewOutboundPacketRejectsOversizedMessage(t *testing.T) {
	msg := new(dns.Msg)
	msg.Answer = []dns.RR{&dns.TXT{
		Hdr: dns.RR_Header{Name: "host.local.", Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 120},
		Txt: []string{"some reasonably long padding value to exceed the tiny frame budget"},
	}}

	dest := transport.Endpoint{Address: &net.UDPAddr{Port: transport.Port}}
	if _, err := transport.NewOutboundPacket(dest, msg, 10); err == nil {
		t.Error("expected an oversized message to be rejected at a 10-octet frame size")
	}
}

func TestNewOutboundPacketRoundTrip(t *testing.T) {
	msg := new(dns.Msg)
	msg.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: "host.local.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120},
		A:   net.ParseIP("10.0.0.1").To4(),
	}}

	dest := transport.Endpoint{Address: &net.UDPAddr{Port: transport.Port}}
	pkt, err := transport.NewOutboundPacket(dest, msg, 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	in := &transport.InboundPacket{Source: dest, Data: pkt.Data}
	decoded, err := in.Message()
	if err != nil {
		t.Fatalf("unexpected error decoding packet: %s", err)
	}
	if len(decoded.Answer) != 1 || decoded.Answer[0].Header().Name != "host.local." {
		t.Fatalf("round-tripped message did not match: %+v", decoded)
	}
}
