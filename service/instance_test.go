package service_test

import (
	"net"

	"github.com/jmalloc/mdnsd/names"
	"github.com/jmalloc/mdnsd/service"
	"github.com/miekg/dns"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instance", func() {
	var i *service.Instance

	BeforeEach(func() {
		i = &service.Instance{
			Name:   "Office Printer",
			Type:   "_ipp._tcp",
			Domain: "local.",
			Host:   "printer.local.",
			Port:   631,
		}
	})

	Describe("Validate", func() {
		It("accepts a fully-specified instance", func() {
			Expect(i.Validate()).To(Succeed())
		})

		It("rejects a zero port", func() {
			i.Port = 0
			Expect(i.Validate()).To(HaveOccurred())
		})

		It("rejects a service type missing a protocol label", func() {
			i.Type = "_ipp"
			Expect(i.Validate()).To(HaveOccurred())
		})
	})

	Describe("FQDN", func() {
		It("joins the instance name, service type and domain", func() {
			Expect(i.FQDN()).To(Equal(names.FQDN("Office Printer._ipp._tcp.local.")))
		})
	})

	Describe("PTR", func() {
		It("points the service enumeration name at the instance", func() {
			rr := i.PTR()
			Expect(rr.Hdr.Name).To(Equal("_ipp._tcp.local."))
			Expect(rr.Ptr).To(Equal("office printer._ipp._tcp.local."))
		})
	})

	Describe("SRV", func() {
		It("carries the instance's host and port", func() {
			rr := i.SRV()
			Expect(rr.Target).To(Equal("printer.local."))
			Expect(rr.Port).To(Equal(uint16(631)))
		})
	})

	Describe("TXT", func() {
		It("produces a single empty string when Text is unset", func() {
			rr := i.TXT()
			Expect(rr.Txt).To(Equal([]string{""}))
		})

		It("encodes key/value pairs sorted by key", func() {
			i.Text = service.NewText(map[string]string{"b": "2", "a": "1"})
			rr := i.TXT()
			Expect(rr.Txt).To(Equal([]string{"a=1", "b=2"}))
		})
	})

	Describe("A", func() {
		It("names the host, not the instance", func() {
			rr := i.A(net.ParseIP("10.0.0.5"))
			Expect(rr.Hdr.Name).To(Equal("printer.local."))
			Expect(rr.A.String()).To(Equal("10.0.0.5"))
		})
	})

	It("builds records addressable as dns.RR", func() {
		var _ dns.RR = i.PTR()
		var _ dns.RR = i.SRV()
		var _ dns.RR = i.TXT()
	})
})
