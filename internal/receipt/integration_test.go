package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-categorizer/internal/extraction"
	"github.com/zombor/receipt-categorizer/internal/metrics"
	"github.com/zombor/receipt-categorizer/internal/receipt"
	"github.com/zombor/receipt-categorizer/internal/registry"
	"github.com/zombor/receipt-categorizer/internal/scanning"
)

// fixedScanner returns the same OCR lines for every image
type fixedScanner struct {
	lines []string
	err   error
}

func (s *fixedScanner) Scan(ctx context.Context, imageData []byte, contentType string) ([]scanning.Detection, error) {
	if s.err != nil {
		return nil, s.err
	}
	detections := make([]scanning.Detection, 0, len(s.lines))
	for _, line := range s.lines {
		detections = append(detections, scanning.Detection{Text: line, Confidence: 0.9})
	}
	return detections, nil
}

func (s *fixedScanner) Close() error {
	return nil
}

const articleLayout = `<!DOCTYPE html><html><body>
<section><nav>menu</nav></section>
<section><div><div><div><div><div>
<div><div><a href="#"><h1>%s</h1></a></div></div>
<table><tbody>
<tr><th>업태</th><td>음식점</td></tr>
<tr><th>업종</th><td>%s</td></tr>
</tbody></table>
</div></div></div></div></div></section>
</body></html>`

var _ = Describe("Integration", func() {
	var (
		storageDir string
		scanner    *fixedScanner
		registrySv *ghttp.Server
		pool       *registry.SessionPool
		m          *metrics.Metrics
		api        *httptest.Server
	)

	BeforeEach(func() {
		storageDir = GinkgoT().TempDir()
		scanner = &fixedScanner{lines: []string{
			"상호명: 스타벅스 강남점",
			"사업자번호 220-81-62517",
			"거래일시: 2024.01.15 12:30",
			"합계 4,500",
			"대리점 123-45-67890",
		}}

		registrySv = ghttp.NewServer()
		registrySv.RouteToHandler(http.MethodGet, "/article/2208162517", ghttp.RespondWith(http.StatusOK,
			fmt.Sprintf(articleLayout, "스타벅스코리아", "대분류 : 음식점업 중분류 : 비알코올 음료점업 소분류 : 비알코올 음료점업 세분류 : 커피 전문점 세세분류 : 커피 전문점")))
		registrySv.RouteToHandler(http.MethodGet, "/article/1234567890", ghttp.RespondWith(http.StatusNotFound, ""))

		var err error
		pool, err = registry.NewSessionPool(1, func() (registry.Session, error) {
			return registry.NewHTTPSession(time.Second), nil
		})
		Expect(err).NotTo(HaveOccurred())

		m = metrics.New()
	})

	JustBeforeEach(func() {
		store, err := receipt.NewLocalStorage(storageDir)
		Expect(err).NotTo(HaveOccurred())

		enricher := registry.NewEnricher(pool, registry.Config{
			BaseURL: registrySv.URL() + "/article/",
		}, registry.WithObserver(m))

		service := receipt.NewServiceWithDeps(
			extraction.NewExtractor(scanner),
			enricher,
			store,
			receipt.NewUUIDGenerator(),
			m,
			5*time.Second,
		)
		api = httptest.NewServer(receipt.NewServer(service, receipt.BasicAuth{}, m.Handler()).Handler())
	})

	AfterEach(func() {
		api.Close()
		pool.Close()
		registrySv.Close()
	})

	upload := func() *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.jpg")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("jpeg bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(api.URL+"/extract", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("should extract and categorize a receipt end to end", func() {
		resp := upload()
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body receipt.Response
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())

		Expect(body.OCR.BusinessNumbers).To(Equal([]string{"220-81-62517", "123-45-67890"}))
		Expect(body.OCR.StoreNames).To(Equal([]string{"스타벅스 강남점"}))
		Expect(body.OCR.TransactionDates).To(Equal([]string{"2024.01.15"}))
		Expect(*body.OCR.Amount).To(Equal(int64(4500)))

		found := body.Categories["220-81-62517"]
		Expect(found).NotTo(BeNil())
		Expect(found.ShopName).To(Equal("스타벅스코리아"))
		Expect(*found.Sub).To(Equal("커피 전문점"))
		Expect(*found.SubSub).To(Equal("커피 전문점"))
		Expect(body.Categories).To(HaveKeyWithValue("123-45-67890", BeNil()))
	})

	It("should not leave uploads behind", func() {
		resp := upload()
		resp.Body.Close()

		entries, err := os.ReadDir(storageDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("should report lookups on the metrics endpoint", func() {
		resp := upload()
		resp.Body.Close()

		metricsResp, err := http.Get(api.URL + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer metricsResp.Body.Close()
		text, err := io.ReadAll(metricsResp.Body)
		Expect(err).NotTo(HaveOccurred())

		Expect(string(text)).To(ContainSubstring(`receipt_registry_lookups_total{outcome="found"} 1`))
		Expect(string(text)).To(ContainSubstring(`receipt_registry_lookups_total{outcome="not_found"} 1`))
		Expect(string(text)).To(ContainSubstring(`receipt_extract_requests_total{status="ok"} 1`))
	})

	When("OCR finds no business number", func() {
		BeforeEach(func() {
			scanner.lines = []string{"감사합니다"}
		})

		It("should return empty results without calling the registry", func() {
			resp := upload()
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]json.RawMessage
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(string(body["OCR_결과"])).To(MatchJSON(`{"사업자번호":[],"가맹점명":[],"거래일시":[],"금액":null}`))
			Expect(string(body["카테고리_키워드"])).To(MatchJSON(`{}`))
			Expect(registrySv.ReceivedRequests()).To(BeEmpty())
		})
	})
})
