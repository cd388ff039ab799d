package proxy_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arrowlabs/rrlsched/internal/proxy"
)

func TestProxy(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Proxy Suite")
}

var _ = Describe("Echo", func() {
	It("returns the input unchanged", func() {
		out, err := proxy.Echo()("hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hello"))
	})
})

var _ = Describe("Forwarder", func() {
	It("returns the downstream body on success", func() {
		downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
			w.Write(append([]byte("echo:"), body...))
		}))
		defer downstream.Close()

		out, err := proxy.NewForwarder(downstream.URL).Forward("payload")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("echo:payload"))
	})

	It("returns an error on a non-2xx response", func() {
		downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer downstream.Close()

		_, err := proxy.NewForwarder(downstream.URL).Forward("payload")
		Expect(err).To(HaveOccurred())
	})
})
