// Package transport supplies the engine's only required external
// collaborator beyond a clock: opaque datagram I/O. It owns multicast
// socket creation and interface enumeration, which spec.md section 1
// explicitly places outside the protocol core.
//
// This package is grounded on the teacher's mdns/transport package: one
// Transport implementation per address family, each wrapping a
// golang.org/x/net/ipv4 or ipv6 PacketConn joined to the mDNS multicast
// group on a set of interfaces.
package transport

import (
	"net"

	"github.com/miekg/dns"
)

// Port is the well-known mDNS port.
const Port = 5353

// Endpoint identifies the interface and address a packet arrived from or
// is destined to.
type Endpoint struct {
	InterfaceIndex int
	Address        *net.UDPAddr
}

// IsLegacy reports whether this endpoint is a "one-shot" querier that does
// not speak the full mDNS protocol and expects a unicast reply correlated
// by transaction ID, per RFC 6762 section 6.7: it is any source port other
// than the well-known mDNS port.
func (ep Endpoint) IsLegacy() bool {
	return ep.Address.Port != Port
}

// InboundPacket is a single datagram received from a Transport.
type InboundPacket struct {
	Source Endpoint
	Data   []byte
}

// Message decodes the packet's payload into a DNS message.
func (p *InboundPacket) Message() (*dns.Msg, error) {
	m := new(dns.Msg)
	return m, m.Unpack(p.Data)
}

// OutboundPacket is a single datagram to be sent via a Transport.
type OutboundPacket struct {
	Destination Endpoint
	Data        []byte
}

// Transport is opaque datagram I/O for one address family: the "receive
// bytes from a source address; send bytes to a destination address"
// collaborator spec.md section 1 names as (ii).
type Transport interface {
	// Listen joins the mDNS multicast group on every given interface.
	Listen(ifaces []net.Interface) error

	// Read blocks for the next inbound packet.
	Read() (*InboundPacket, error)

	// Write sends an outbound packet.
	Write(*OutboundPacket) error

	// Group returns this transport's multicast group address.
	Group() *net.UDPAddr

	// Close releases the underlying socket, unblocking any pending Read.
	Close() error
}

// NewOutboundPacket marshals m for delivery to dest.
func NewOutboundPacket(dest Endpoint, m *dns.Msg, frameSize int) (*OutboundPacket, error) {
	buf := getBuffer()
	d, err := m.PackBuffer(buf)
	if err != nil {
		putBuffer(buf)
		return nil, err
	}
	if frameSize > 0 && len(d) > frameSize {
		putBuffer(buf)
		return nil, errFrameTooLarge(len(d), frameSize)
	}
	out := make([]byte, len(d))
	copy(out, d)
	putBuffer(buf)
	return &OutboundPacket{Destination: dest, Data: out}, nil
}
