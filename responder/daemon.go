package responder

import (
	"context"
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/mdnsd/engine"
	"golang.org/x/sync/errgroup"
)

// Daemon runs one Responder per network interface, fanning their Run loops
// in with an errgroup, the way the teacher's own Responder.Run fans in its
// per-family receive loops. This is the "daemon wrapper... on one or more
// network interfaces" spec.md section 1 describes.
type Daemon struct {
	Interfaces  []net.Interface
	Clock       engine.Clock
	Logger      logging.Logger
	FrameSize   int
	DisableIPv4 bool
	DisableIPv6 bool

	responders []*Responder
}

// Start creates one Responder per configured interface (or, if none are
// configured, the single internet-facing interface) without yet running
// them, so the caller can publish records against each family's engine
// before traffic starts flowing.
func (d *Daemon) Start() error {
	ifaces := d.Interfaces
	if len(ifaces) == 0 {
		iface, err := internetInterface()
		if err != nil {
			return err
		}
		ifaces = []net.Interface{iface}
	}

	for _, iface := range ifaces {
		opts := []Option{UseInterface(iface), UseLogger(d.Logger)}
		if d.FrameSize > 0 {
			opts = append(opts, UseFrameSize(d.FrameSize))
		}
		if d.DisableIPv4 {
			opts = append(opts, DisableIPv4)
		}
		if d.DisableIPv6 {
			opts = append(opts, DisableIPv6)
		}

		r, err := New(d.Clock, opts...)
		if err != nil {
			return err
		}
		d.responders = append(d.responders, r)
	}

	return nil
}

// Responders returns the per-interface Responders created by Start, so a
// caller can publish the same service across every interface's engines.
func (d *Daemon) Responders() []*Responder {
	return d.responders
}

// Run drives every Responder until ctx is canceled or one fails.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range d.responders {
		r := r
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}
