package service_test

import (
	"github.com/jmalloc/mdnsd/names"
	"github.com/jmalloc/mdnsd/service"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("enumeration names", func() {
	domain := names.FQDN("local.")

	It("builds the type enumeration name", func() {
		Expect(service.TypeEnumName(domain)).To(Equal(names.FQDN("_services._dns-sd._udp.local.")))
	})

	It("builds the instance enumeration (browse) name", func() {
		Expect(service.InstanceEnumName("_ipp._tcp", domain)).To(Equal(names.FQDN("_ipp._tcp.local.")))
	})

	It("builds the sub-type enumeration name", func() {
		Expect(service.SubTypeEnumName("_printer", "_ipp._tcp", domain)).
			To(Equal(names.FQDN("_printer._sub._ipp._tcp.local.")))
	})
})
