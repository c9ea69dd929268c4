package responder

import (
	"errors"
	"net"

	gopsutilnet "github.com/shirou/gopsutil/v3/net"
)

// internetInterface returns the network interface used to reach the
// internet, by dialing a well-known address and matching the local address
// it binds to one of the host's interfaces. This is the teacher's own
// heuristic: naive, but good enough as the default when the caller (or the
// daemon's -i flag) does not pin an interface explicitly.
func internetInterface() (net.Interface, error) {
	candidates, err := net.Interfaces()
	if err != nil {
		return net.Interface{}, err
	}

	con, err := net.Dial("udp4", "8.8.8.8:53")
	if err != nil {
		return net.Interface{}, err
	}
	ip := con.LocalAddr().(*net.UDPAddr).IP
	con.Close()

	for _, i := range candidates {
		addrs, err := i.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.Equal(ip) {
				return i, nil
			}
		}
	}

	return net.Interface{}, errors.New("responder: could not find internet network interface")
}

// MulticastCapableInterfaces enumerates the interfaces that are up and
// support multicast, cross-checking net.Interfaces()'s flags against
// gopsutil/v3/net's own interface listing. It is an exported helper for
// callers that want every eligible interface rather than just the one used
// to reach the internet (e.g. to run one Responder per interface). Neither
// Daemon nor cmd/mdnsd calls it: with no interfaces configured they use
// internetInterface.
func MulticastCapableInterfaces() ([]net.Interface, error) {
	stats, err := gopsutilnet.Interfaces()
	if err != nil {
		return nil, err
	}
	up := make(map[string]bool, len(stats))
	for _, s := range stats {
		flags := make(map[string]bool, len(s.Flags))
		for _, f := range s.Flags {
			flags[f] = true
		}
		up[s.Name] = flags["up"] && flags["multicast"] && !flags["loopback"]
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var eligible []net.Interface
	for _, i := range ifaces {
		if up[i.Name] {
			eligible = append(eligible, i)
		}
	}
	return eligible, nil
}
