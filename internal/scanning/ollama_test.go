package scanning

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		scanner    *Ollama
		imageData  []byte
		detections []Detection
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL(), "qwen2-vl")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))).To(Succeed())
		imageData = buf.Bytes()
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		detections, err = scanner.Scan(context.Background(), imageData, "image/png")
	})

	When("the model answers with a transcription", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `["사업자번호 123-45-67890", "합계 12,500"]`},
					Done:    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the lines", func() {
			Expect(Texts(detections)).To(Equal([]string{"사업자번호 123-45-67890", "합계 12,500"}))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "boom"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the image cannot be read", func() {
		BeforeEach(func() {
			imageData = []byte("fake image data")
		})

		It("returns an ImageReadError without calling the API", func() {
			Expect(err).To(MatchError(ErrUnreadableImage))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})
