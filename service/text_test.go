package service_test

import (
	"github.com/jmalloc/mdnsd/service"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Text", func() {
	It("round-trips through Pairs and ParseText", func() {
		t := service.NewText(map[string]string{"path": "/", "tls": ""})
		t2 := service.ParseText(t.Pairs())

		v, ok := t2.Get("path")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("/"))
		Expect(t2.Has("tls")).To(BeTrue())
	})

	It("folds keys to lower-case", func() {
		t := &service.Text{}
		Expect(t.Set("Path", "/")).To(Succeed())

		v, ok := t.Get("path")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("/"))
	})

	It("rejects a key containing '='", func() {
		t := &service.Text{}
		Expect(t.Set("a=b", "1")).To(HaveOccurred())
	})

	It("renders a bare key when SetBool(true)", func() {
		t := &service.Text{}
		Expect(t.SetBool("tls", true)).To(Succeed())
		Expect(t.Pairs()).To(Equal([]string{"tls"}))
	})

	It("removes the key when SetBool(false)", func() {
		t := &service.Text{}
		Expect(t.SetBool("tls", true)).To(Succeed())
		Expect(t.SetBool("tls", false)).To(Succeed())
		Expect(t.Has("tls")).To(BeFalse())
	})
})
