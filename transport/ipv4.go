package transport

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
	ipvx "golang.org/x/net/ipv4"
)

var (
	// IPv4Group is the mDNS IPv4 multicast group, per RFC 6762 section 3.
	IPv4Group = net.ParseIP("224.0.0.251")

	// IPv4GroupAddr is IPv4Group paired with the mDNS port.
	IPv4GroupAddr = &net.UDPAddr{IP: IPv4Group, Port: Port}

	// ipv4ListenAddr binds to the group address's network, not the group
	// itself, so membership can be controlled precisely per interface.
	ipv4ListenAddr = &net.UDPAddr{IP: net.ParseIP("224.0.0.0"), Port: Port}
)

// IPv4Transport is a Transport for mDNS over IPv4.
type IPv4Transport struct {
	Logger logging.Logger

	pc *ipvx.PacketConn
}

// Listen joins the mDNS IPv4 group on every interface in ifaces.
func (t *IPv4Transport) Listen(ifaces []net.Interface) error {
	conn, err := net.ListenUDP("udp4", ipv4ListenAddr)
	if err != nil {
		logListenError(t.Logger, ipv4ListenAddr, err)
		return err
	}

	t.pc = ipvx.NewPacketConn(conn)
	_ = t.pc.SetControlMessage(ipvx.FlagInterface, true)

	joined, err := joinGroup(t.pc, IPv4Group, ifaces, t.Logger)
	if err != nil {
		t.pc.Close()
		return err
	}
	logListening(t.Logger, ipv4ListenAddr, joined)
	return nil
}

// Read blocks for the next inbound IPv4 datagram.
func (t *IPv4Transport) Read() (*InboundPacket, error) {
	buf := getBuffer()
	n, cm, src, err := t.pc.ReadFrom(buf)
	if err != nil {
		putBuffer(buf)
		logReadError(t.Logger, t.Group(), err)
		return nil, err
	}

	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}

	return &InboundPacket{
		Source: Endpoint{InterfaceIndex: ifIndex, Address: src.(*net.UDPAddr)},
		Data:   buf[:n],
	}, nil
}

// Write sends an outbound IPv4 datagram.
func (t *IPv4Transport) Write(p *OutboundPacket) error {
	_, err := t.pc.WriteTo(p.Data, &ipvx.ControlMessage{IfIndex: p.Destination.InterfaceIndex}, p.Destination.Address)
	if err != nil {
		logWriteError(t.Logger, p.Destination.Address, t.Group(), err)
	}
	return err
}

// Group returns the mDNS IPv4 group address.
func (t *IPv4Transport) Group() *net.UDPAddr {
	return IPv4GroupAddr
}

// Close releases the underlying socket.
func (t *IPv4Transport) Close() error {
	return t.pc.Close()
}
