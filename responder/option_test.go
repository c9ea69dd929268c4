package responder_test

import (
	"net"
	"testing"

	"github.com/jmalloc/mdnsd/engine"
	"github.com/jmalloc/mdnsd/responder"
)

func TestNewWithBothFamiliesDisabledFails(t *testing.T) {
	_, err := responder.New(engine.SystemClock{},
		responder.UseInterface(net.Interface{Name: "lo0"}),
		responder.DisableIPv4,
		responder.DisableIPv6,
	)
	if err == nil {
		t.Fatal("expected an error when both address families are disabled")
	}
}

func TestNewCreatesOneEnginePerEnabledFamily(t *testing.T) {
	r, err := responder.New(engine.SystemClock{},
		responder.UseInterface(net.Interface{Name: "lo0"}),
		responder.DisableIPv6,
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if r.Engine("udp4") == nil {
		t.Error("expected a udp4 engine to be created")
	}
	if r.Engine("udp6") != nil {
		t.Error("expected no udp6 engine when IPv6 is disabled")
	}

	seen := map[string]bool{}
	r.Each(func(network string, e *engine.Engine) { seen[network] = true })
	if !seen["udp4"] || seen["udp6"] {
		t.Errorf("unexpected Each coverage: %v", seen)
	}
}

func TestNewAcceptsUseFrameSize(t *testing.T) {
	r, err := responder.New(engine.SystemClock{},
		responder.UseInterface(net.Interface{Name: "lo0"}),
		responder.UseFrameSize(500),
		responder.DisableIPv6,
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r.Engine("udp4") == nil {
		t.Fatal("expected a udp4 engine")
	}
}
