package client_test

import (
	"context"
	"testing"

	"github.com/jmalloc/mdnsd/client"
	"github.com/miekg/dns"
)

type fakeUnicast struct {
	req *dns.Msg
	res *dns.Msg
	err error
}

func (f *fakeUnicast) Query(ctx context.Context, req *dns.Msg, ns string) (*dns.Msg, error) {
	f.req = req
	return f.res, f.err
}

func TestLookupBuildsNonRecursiveQuery(t *testing.T) {
	fake := &fakeUnicast{res: new(dns.Msg)}

	_, err := client.Lookup(context.Background(), fake, "224.0.0.251:5353", "host.local", dns.TypeA)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if fake.req.RecursionDesired {
		t.Error("expected an mDNS lookup to not request recursion")
	}
	if len(fake.req.Question) != 1 || fake.req.Question[0].Name != "host.local." {
		t.Fatalf("unexpected question section: %+v", fake.req.Question)
	}
	if fake.req.Question[0].Qtype != dns.TypeA {
		t.Errorf("expected qtype A, got %d", fake.req.Question[0].Qtype)
	}
}

func TestDefaultUnicastIsSet(t *testing.T) {
	if client.DefaultUnicast == nil {
		t.Fatal("expected DefaultUnicast to be non-nil")
	}
}
