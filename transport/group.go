package transport

import (
	"fmt"
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

// packetConn is the subset of *ipv4.PacketConn / *ipv6.PacketConn that
// joinGroup needs.
type packetConn interface {
	JoinGroup(*net.Interface, net.Addr) error
}

// joinGroup joins the multicast group addr on every interface in ifaces,
// logging (but not failing on) any interface that can't join -- a
// loopback-only or down interface is common and not fatal as long as at
// least one interface succeeds.
func joinGroup(pc packetConn, group net.IP, ifaces []net.Interface, logger logging.Logger) ([]net.Interface, error) {
	addr := &net.UDPAddr{IP: group}
	joined := make([]net.Interface, 0, len(ifaces))

	for _, iface := range ifaces {
		i := iface
		if err := pc.JoinGroup(&i, addr); err != nil {
			logging.Debug(logger, "unable to join the %s multicast group on %s: %s", addr.IP, i.Name, err)
			continue
		}
		joined = append(joined, i)
	}

	if len(joined) == 0 {
		return nil, fmt.Errorf("unable to join the %s multicast group on any interface", addr.IP)
	}
	return joined, nil
}
