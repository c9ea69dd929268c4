package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmalloc/mdnsd/engine"
	"github.com/jmalloc/mdnsd/names"
	"github.com/jmalloc/mdnsd/service"
	"github.com/miekg/dns"
)

// serviceRecord is one service-file's worth of configuration: whitespace-
// delimited "key value" lines naming a service's type, name, port, target
// host, optional cname, and any number of "txt key=value" pairs.
//
// Grounded on the original source's conf.c: a "type"/"name"/"port"/
// "target"/"cname"/"txt" key vocabulary, one assignment per line, "#" for
// comments. The key=value split inside a "txt" line's argument is this
// command's own small helper, not a core dependency (spec.md section 1
// places the "xht" string-hashtable TXT encoder out of scope; this parser
// lives in cmd/mdnsd precisely so the core never needs it).
type serviceRecord struct {
	Path string

	Type   string
	Name   string
	Port   uint16
	Target string
	CNAME  string
	Text   map[string]string
}

func (sr serviceRecord) publish(e *engine.Engine, defaultTTL time.Duration) error {
	if sr.Type == "" || sr.Name == "" {
		return fmt.Errorf("%s: missing required 'type' or 'name'", sr.Path)
	}

	host := sr.Target
	if host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return err
		}
		host = hostname + ".local."
	}

	instance := &service.Instance{
		Name:   names.Rel(sr.Name),
		Type:   service.Type(sr.Type),
		Domain: "local.",
		Host:   names.FQDN(ensureFQDN(host)),
		Port:   sr.Port,
		TTL:    defaultTTL,
		Text:   service.NewText(sr.Text),
	}

	if err := instance.Validate(); err != nil {
		return err
	}

	_, err := service.Publish(e, instance, resolveHost(host), nil)
	if err != nil {
		return err
	}

	if sr.CNAME != "" {
		ttl := uint32(defaultTTL.Seconds())
		rr := &dns.CNAME{
			Hdr:    dns.RR_Header{Name: ensureFQDN(sr.CNAME), Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: ttl},
			Target: ensureFQDN(host),
		}
		e.PublishUnique(rr, nil)
	}

	return nil
}

func ensureFQDN(s string) string {
	if !strings.HasSuffix(s, ".") {
		return s + "."
	}
	return s
}

// resolveHost looks up host's first IPv4 address, or its first address of
// any family if it has no IPv4 one, falling back to 127.0.0.1 only as a last
// resort so a misconfigured service file still produces a publishable (if
// useless) address record rather than a nil one.
func resolveHost(host string) net.IP {
	ips, err := net.LookupIP(strings.TrimSuffix(host, "."))
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return net.IPv4(127, 0, 0, 1)
}

// loadServiceFiles reads every regular file in dir as a service file. Per
// spec.md section 6, this parser is an external collaborator: the engine
// never imports it.
func loadServiceFiles(dir string) ([]serviceRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading service directory %s: %w", dir, err)
	}

	var records []serviceRecord
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		sr, err := parseServiceFile(path)
		if err != nil {
			return nil, err
		}
		records = append(records, sr)
	}
	return records, nil
}

func parseServiceFile(path string) (serviceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return serviceRecord{}, err
	}
	defer f.Close()

	sr := serviceRecord{Path: path, Text: map[string]string{}}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, arg, ok := strings.Cut(line, " ")
		if !ok {
			key, arg, ok = strings.Cut(line, "\t")
		}
		if !ok {
			continue
		}
		arg = strings.TrimSpace(arg)

		switch key {
		case "type":
			sr.Type = arg
		case "name":
			sr.Name = arg
		case "port":
			n, err := strconv.ParseUint(arg, 10, 16)
			if err != nil {
				return serviceRecord{}, fmt.Errorf("%s: bad port number %q: %w", path, arg, err)
			}
			sr.Port = uint16(n)
		case "target":
			sr.Target = arg
		case "cname":
			sr.CNAME = arg
		case "txt":
			k, v, _ := strings.Cut(arg, "=")
			sr.Text[k] = v
		}
	}

	return sr, scanner.Err()
}
