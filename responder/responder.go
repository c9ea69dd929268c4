// Package responder drives one engine.Engine per network interface and
// address family, wiring its non-blocking In/Out/Sleep loop to a real
// transport.Transport. This is the "small daemon wrapper" spec.md section
// 1 describes as driving the core -- everything here is an external
// collaborator to the engine, never imported by it.
package responder

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/mdnsd/engine"
	"github.com/jmalloc/mdnsd/transport"
	"golang.org/x/sync/errgroup"
)

// DefaultFrameSize is the daemon's default emission cap, per spec.md
// section 6 (smaller than the core's 4000-octet hard ceiling).
const DefaultFrameSize = 1000

// Responder runs one engine for a single network interface, across
// whichever address families are enabled, for as long as Run's context
// stays alive.
type Responder struct {
	iface       *net.Interface
	disableIPv4 bool
	disableIPv6 bool
	frameSize   int
	logger      logging.Logger

	engines map[string]*engine.Engine // by network: "udp4", "udp6"
}

// New returns a Responder ready to Run. clock, if nil, defaults to
// engine.SystemClock.
func New(clock engine.Clock, options ...Option) (*Responder, error) {
	r := &Responder{
		frameSize: DefaultFrameSize,
		engines:   make(map[string]*engine.Engine),
	}

	for _, opt := range options {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.disableIPv4 && r.disableIPv6 {
		return nil, errors.New("responder: both IPv4 and IPv6 are disabled")
	}

	if r.iface == nil {
		iface, err := internetInterface()
		if err != nil {
			return nil, err
		}
		r.iface = &iface
	}

	if !r.disableIPv4 {
		r.engines["udp4"] = engine.New(engine.Config{Clock: clock, FrameSize: r.frameSize, Network: "udp4"})
	}
	if !r.disableIPv6 {
		r.engines["udp6"] = engine.New(engine.Config{Clock: clock, FrameSize: r.frameSize, Network: "udp6"})
	}

	return r, nil
}

// Engine returns the responder's engine for the given network ("udp4" or
// "udp6"), or nil if that family is disabled. Callers use this to publish
// records and register queries before or during Run.
func (r *Responder) Engine(network string) *engine.Engine {
	return r.engines[network]
}

// Each calls fn for every enabled engine, so a caller can publish the same
// record set across every active address family at once.
func (r *Responder) Each(fn func(network string, e *engine.Engine)) {
	for network, e := range r.engines {
		fn(network, e)
	}
}

// Run drives every enabled family's transport and engine until ctx is
// canceled or a fatal transport error occurs.
func (r *Responder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// RFC 6762 section 8.1: wait a short random delay before the first
	// probe, so a group of hosts powered on simultaneously don't all probe
	// in lock-step.
	if err := sleep(ctx, randDuration(250*time.Millisecond)); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if e, ok := r.engines["udp4"]; ok {
		t := &transport.IPv4Transport{Logger: r.logger}
		g.Go(func() error { return r.driveFamily(ctx, t, e) })
	}
	if e, ok := r.engines["udp6"]; ok {
		t := &transport.IPv6Transport{Logger: r.logger}
		g.Go(func() error { return r.driveFamily(ctx, t, e) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// driveFamily owns one engine exclusively: one goroutine reads inbound
// packets and feeds them to e.In, interleaved with draining e.Out on e's
// own schedule, so the engine is never touched concurrently (per spec.md
// section 5's single-threaded, cooperative model).
func (r *Responder) driveFamily(ctx context.Context, t transport.Transport, e *engine.Engine) error {
	if err := t.Listen([]net.Interface{*r.iface}); err != nil {
		return err
	}
	defer t.Close()

	inbound := make(chan *transport.InboundPacket)
	readErr := make(chan error, 1)

	go func() {
		for {
			p, err := t.Read()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = t.Close() // unblock t.Read()
	}()

	for {
		if err := r.drainOut(t, e); err != nil {
			logging.Log(r.logger, "error sending mDNS packet: %s", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if isClosedError(err) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}
			return err

		case p := <-inbound:
			r.handleInbound(e, p)

		case <-time.After(sleepFloor(e.Sleep())):
		}
	}
}

// drainOut empties e's Out queue completely before returning, per the
// engine's "caller should re-invoke without sleeping" contract.
func (r *Responder) drainOut(t transport.Transport, e *engine.Engine) error {
	for {
		pkt, more := e.Out()
		if pkt == nil {
			return nil
		}

		dest, ok := pkt.Dest.(*net.UDPAddr)
		if !ok {
			continue
		}

		out, err := transport.NewOutboundPacket(transport.Endpoint{Address: dest}, pkt.Message, r.frameSize)
		if err != nil {
			return err
		}
		if err := t.Write(out); err != nil {
			return err
		}

		if !more {
			return nil
		}
	}
}

func (r *Responder) handleInbound(e *engine.Engine, p *transport.InboundPacket) {
	m, err := p.Message()
	if err != nil {
		logging.Debug(r.logger, "dropping malformed mDNS packet from %s: %s", p.Source.Address, err)
		return
	}

	if m.Truncated {
		// https://tools.ietf.org/html/rfc6762#section-18.5
		//
		// A truncated query may have more known-answer records following in
		// a subsequent packet; we answer immediately anyway, same as the
		// teacher, since the host OS's own resolver is typically also on
		// the link and this responder is not the sole authority.
		logging.DebugString(r.logger, "received mDNS message with non-zero TC flag")
	}

	e.In(m, p.Source.Address)
}

// sleepFloor clamps d so the select loop always re-checks for inbound work
// at least once a second, even if the engine reports nothing pending.
func sleepFloor(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d > time.Second {
		return time.Second
	}
	return d
}

func randDuration(max time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(max)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isClosedError(err error) bool {
	for {
		e, ok := err.(*net.OpError)
		if !ok {
			return false
		}
		if e.Err.Error() == "use of closed network connection" {
			return true
		}
		err = e.Err
	}
}
