package service_test

import (
	"github.com/jmalloc/mdnsd/names"
	"github.com/jmalloc/mdnsd/service"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Type", func() {
	Describe("Validate", func() {
		It("accepts a plain service/protocol pair", func() {
			Expect(service.Type("_ipp._tcp").Validate()).To(Succeed())
		})

		It("accepts a sub-typed service", func() {
			Expect(service.Type("_printer._sub._ipp._tcp").Validate()).To(Succeed())
		})

		It("rejects a missing protocol label", func() {
			Expect(service.Type("_ipp").Validate()).To(HaveOccurred())
		})

		It("rejects an unrecognized protocol", func() {
			Expect(service.Type("_ipp._foo").Validate()).To(HaveOccurred())
		})

		It("rejects an empty type", func() {
			Expect(service.Type("").Validate()).To(HaveOccurred())
		})
	})

	Describe("Qualify", func() {
		It("appends the domain", func() {
			Expect(service.Type("_ipp._tcp").Qualify("local.")).To(Equal(names.FQDN("_ipp._tcp.local.")))
		})
	})
})
