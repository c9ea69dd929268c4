package responder

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

// Option applies a configuration choice to a Responder created by New.
type Option func(*Responder) error

// UseLogger sets the logger the responder uses for diagnostic tracing of
// transport and engine activity.
func UseLogger(l logging.Logger) Option {
	return func(r *Responder) error {
		r.logger = l
		return nil
	}
}

// UseInterface pins the responder to a specific network interface. If this
// option is not given, the responder chooses the interface used to reach
// the internet, per the teacher's own heuristic.
func UseInterface(iface net.Interface) Option {
	return func(r *Responder) error {
		r.iface = &iface
		return nil
	}
}

// UseFrameSize overrides the engine's outgoing packet size budget. It
// defaults to the daemon's 1000-octet cap (spec.md section 6), not the
// core's 4000-octet hard ceiling.
func UseFrameSize(n int) Option {
	return func(r *Responder) error {
		r.frameSize = n
		return nil
	}
}

// DisableIPv4 prevents the responder from listening for or sending IPv4
// traffic.
func DisableIPv4(r *Responder) error {
	r.disableIPv4 = true
	return nil
}

// DisableIPv6 prevents the responder from listening for or sending IPv6
// traffic.
func DisableIPv6(r *Responder) error {
	r.disableIPv6 = true
	return nil
}
