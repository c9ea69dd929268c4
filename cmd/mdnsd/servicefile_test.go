package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeServiceFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing service file: %s", err)
	}
	return path
}

func TestParseServiceFile(t *testing.T) {
	dir := t.TempDir()
	path := writeServiceFile(t, dir, "printer", `
# office printer
type _ipp._tcp
name Office Printer
port 631
txt rp=ipp/print
txt note=Second Floor
`)

	sr, err := parseServiceFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if sr.Type != "_ipp._tcp" {
		t.Errorf("unexpected type: %q", sr.Type)
	}
	if sr.Name != "Office Printer" {
		t.Errorf("unexpected name: %q", sr.Name)
	}
	if sr.Port != 631 {
		t.Errorf("unexpected port: %d", sr.Port)
	}
	if sr.Text["rp"] != "ipp/print" || sr.Text["note"] != "Second Floor" {
		t.Errorf("unexpected text pairs: %+v", sr.Text)
	}
}

func TestParseServiceFileRejectsBadPort(t *testing.T) {
	dir := t.TempDir()
	path := writeServiceFile(t, dir, "bad", "type _ipp._tcp\nname X\nport notanumber\n")

	if _, err := parseServiceFile(path); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

func TestLoadServiceFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeServiceFile(t, dir, "printer", "type _ipp._tcp\nname X\nport 631\n")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	records, err := loadServiceFiles(dir)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}
}

func TestEnsureFQDN(t *testing.T) {
	if got := ensureFQDN("host.local"); got != "host.local." {
		t.Errorf("ensureFQDN(%q) = %q", "host.local", got)
	}
	if got := ensureFQDN("host.local."); got != "host.local." {
		t.Errorf("ensureFQDN(%q) = %q", "host.local.", got)
	}
}
