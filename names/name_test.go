package names_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jmalloc/mdnsd/names"
)

func TestFQDNValidate(t *testing.T) {
	cases := []struct {
		name    string
		n       names.FQDN
		wantErr bool
	}{
		{"valid", "printer.local.", false},
		{"missing trailing dot", "printer.local", true},
		{"leading dot", ".printer.local.", true},
		{"empty", "", true},
		{"label too long", names.FQDN(strings.Repeat("a", 64) + ".local."), true},
		{"name too long", names.FQDN(strings.Repeat("a.", 128) + "local."), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.n.Validate()
			if c.wantErr && err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		})
	}
}

func TestRelValidate(t *testing.T) {
	cases := []struct {
		name    string
		n       names.Rel
		wantErr bool
	}{
		{"valid single label", "Office Printer", false},
		{"valid multi label", "foo.bar", false},
		{"trailing dot", "foo.", true},
		{"leading dot", ".foo", true},
		{"empty", "", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.n.Validate()
			if c.wantErr && err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
		})
	}
}

func TestRelQualify(t *testing.T) {
	got := names.Rel("Office Printer").Qualify("local.")
	want := names.FQDN("Office Printer.local.")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// UDN.Validate previously recursed forever: Labels() calls String(), which
// calls Validate() again. This exercises the fixed, direct split.
func TestUDNValidateDoesNotRecurse(t *testing.T) {
	done := make(chan error, 1)
	go func() { done <- names.UDN("foo.bar").Validate() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Validate did not return, suspected infinite recursion")
	}
}

func TestLabelValidate(t *testing.T) {
	if err := names.Label(strings.Repeat("a", 63)).Validate(); err != nil {
		t.Fatalf("expected a 63-octet label to be valid, got %s", err)
	}
	if err := names.Label(strings.Repeat("a", 64)).Validate(); err == nil {
		t.Fatal("expected a 64-octet label to be rejected")
	}
}
