// Command mdnsd is a small daemon wrapper around the engine, responder,
// and service packages: it reads a directory of service files and
// announces the services they describe on one or more network interfaces,
// per spec.md section 6's CLI surface.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/jmalloc/mdnsd/engine"
	"github.com/jmalloc/mdnsd/responder"
	"github.com/jmalloc/mdnsd/service"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		iface      = pflag.StringP("interface", "i", "", "network interface to use (default: auto-detect)")
		level      = pflag.StringP("level", "l", "info", "log level: debug, info, none")
		foreground = pflag.BoolP("foreground", "n", false, "run in the foreground (accepted for compatibility; mdnsd never daemonizes)")
		syslogOut  = pflag.BoolP("syslog", "s", false, "log to syslog (not supported: a notice is printed and logging stays on stderr)")
		ttl        = pflag.UintP("ttl", "t", uint(service.DefaultTTL/time.Second), "default TTL, in seconds, for published records")
		verbose    = pflag.BoolP("verbose", "v", false, "enable verbose (debug) logging, equivalent to -l debug")
	)
	pflag.Parse()

	if *verbose {
		*level = "debug"
	}

	dir := "/etc/mdns.d"
	if pflag.NArg() > 0 {
		dir = pflag.Arg(0)
	}

	logger := newLogger(*level, *syslogOut)

	_ = foreground // daemonization itself is out of scope for the core; see spec.md section 1

	records, err := loadServiceFiles(dir)
	if err != nil {
		logging.Log(logger, "mdnsd: %s", err)
		return 1
	}

	var ifaces []net.Interface
	if *iface != "" {
		i, err := net.InterfaceByName(*iface)
		if err != nil {
			logging.Log(logger, "mdnsd: %s", err)
			return 1
		}
		ifaces = []net.Interface{*i}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForSignal(cancel)

	d := &responder.Daemon{
		Interfaces: ifaces,
		Clock:      engine.SystemClock{},
		Logger:     logger,
		FrameSize:  responder.DefaultFrameSize,
	}
	if err := d.Start(); err != nil {
		logging.Log(logger, "mdnsd: %s", err)
		return 1
	}

	publishAll(d, records, time.Duration(*ttl)*time.Second, logger)

	if err := d.Run(ctx); err != nil {
		logging.Log(logger, "mdnsd: %s", err)
		return 1
	}
	return 0
}

func publishAll(d *responder.Daemon, records []serviceRecord, defaultTTL time.Duration, logger logging.Logger) {
	for _, r := range d.Responders() {
		r.Each(func(network string, e *engine.Engine) {
			for _, sr := range records {
				if err := sr.publish(e, defaultTTL); err != nil {
					logging.Log(logger, "mdnsd: skipping service %q on %s: %s", sr.Name, network, err)
				}
			}
		})
	}
}

func waitForSignal(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	cancel()
}

func newLogger(level string, useSyslog bool) logging.Logger {
	var base logging.Logger
	switch level {
	case "none":
		base = logging.DiscardLogger
	default:
		base = &logging.StandardLogger{CaptureDebug: level == "debug"}
	}

	if useSyslog {
		// Syslog output is a peripheral daemon concern (spec.md section 1);
		// we fall back to the base logger rather than depend on an
		// additional platform-specific syslog package the corpus does not
		// otherwise use.
		fmt.Fprintln(os.Stderr, "mdnsd: -s requires platform syslog support, logging to stderr instead")
	}

	return base
}
