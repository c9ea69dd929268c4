package transport

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
	ipvx "golang.org/x/net/ipv6"
)

var (
	// IPv6Group is the mDNS IPv6 multicast group, per RFC 6762 section 3.
	IPv6Group = net.ParseIP("ff02::fb")

	// IPv6GroupAddr is IPv6Group paired with the mDNS port.
	IPv6GroupAddr = &net.UDPAddr{IP: IPv6Group, Port: Port}

	ipv6ListenAddr = &net.UDPAddr{IP: net.ParseIP("ff02::"), Port: Port}
)

// IPv6Transport is a Transport for mDNS over IPv6.
type IPv6Transport struct {
	Logger logging.Logger

	pc *ipvx.PacketConn
}

// Listen joins the mDNS IPv6 group on every interface in ifaces.
func (t *IPv6Transport) Listen(ifaces []net.Interface) error {
	conn, err := net.ListenUDP("udp6", ipv6ListenAddr)
	if err != nil {
		logListenError(t.Logger, ipv6ListenAddr, err)
		return err
	}

	t.pc = ipvx.NewPacketConn(conn)
	if err := t.pc.SetControlMessage(ipvx.FlagInterface, true); err != nil {
		t.pc.Close()
		logListenError(t.Logger, ipv6ListenAddr, err)
		return err
	}

	joined, err := joinGroup(t.pc, IPv6Group, ifaces, t.Logger)
	if err != nil {
		t.pc.Close()
		return err
	}
	logListening(t.Logger, ipv6ListenAddr, joined)
	return nil
}

// Read blocks for the next inbound IPv6 datagram.
func (t *IPv6Transport) Read() (*InboundPacket, error) {
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

// Write sends an outbound IPv6 datagram.
func (t *IPv6Transport) Write(p *OutboundPacket) error {
	_, err := t.pc.WriteTo(p.Data, &ipvx.ControlMessage{IfIndex: p.Destination.InterfaceIndex}, p.Destination.Address)
	if err != nil {
		logWriteError(t.Logger, p.Destination.Address, t.Group(), err)
	}
	return err
}

// Group returns the mDNS IPv6 group address.
func (t *IPv6Transport) Group() *net.UDPAddr {
	return IPv6GroupAddr
}

// Close releases the underlying socket.
func (t *IPv6Transport) Close() error {
	return t.pc.Close()
}
