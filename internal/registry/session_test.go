package registry

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("HTTPSession", func() {
	var (
		server  *ghttp.Server
		session *HTTPSession
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		session = NewHTTPSession(time.Second)
	})

	AfterEach(func() {
		session.Close()
		server.Close()
	})

	When("the page exists", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/article/2208162517"),
				ghttp.VerifyHeaderKV("Accept-Language", "ko-KR,ko;q=0.9"),
				ghttp.RespondWith(http.StatusOK, registryPage("가게", "사업자 정보", foodTaxonomy)),
			))
		})

		It("should return the parsed document", func() {
			doc, err := session.Open(context.Background(), server.URL()+"/article/2208162517")
			Expect(err).NotTo(HaveOccurred())

			n, err := Locate(doc, shopNamePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(Text(n)).To(Equal("가게"))
		})

		It("should send a browser user agent", func() {
			_, err := session.Open(context.Background(), server.URL()+"/article/2208162517")
			Expect(err).NotTo(HaveOccurred())
			Expect(server.ReceivedRequests()[0].UserAgent()).To(ContainSubstring("Mozilla"))
		})
	})

	When("the page does not exist", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "not found"))
		})

		It("returns ErrNoPage", func() {
			_, err := session.Open(context.Background(), server.URL()+"/article/0000000000")
			Expect(err).To(MatchError(ErrNoPage))
		})
	})

	When("the registry fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "overloaded"))
		})

		It("returns an error with the status", func() {
			_, err := session.Open(context.Background(), server.URL()+"/article/2208162517")
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).NotTo(MatchError(ErrNoPage))
		})
	})

	When("the context is already cancelled", func() {
		It("returns the context error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := session.Open(ctx, server.URL()+"/article/2208162517")
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
