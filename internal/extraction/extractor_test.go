package extraction

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-categorizer/internal/scanning"
)

// mockScanner is a mock implementation of scanning.Scanner
type mockScanner struct {
	detections []scanning.Detection
	scanErr    error
}

func (m *mockScanner) Scan(ctx context.Context, imageData []byte, contentType string) ([]scanning.Detection, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	return m.detections, nil
}

func (m *mockScanner) Close() error {
	return nil
}

var _ = Describe("Extractor", func() {
	var (
		scanner   *mockScanner
		extractor *Extractor
		result    *Result
		err       error
	)

	BeforeEach(func() {
		scanner = &mockScanner{
			detections: []scanning.Detection{
				{Text: "상호명: ABC점", Confidence: 0.9},
				{Text: "123-45-67890", Confidence: 0.8},
				{Text: "total 12,500", Confidence: 0.7},
			},
		}
		extractor = NewExtractor(scanner)
	})

	JustBeforeEach(func() {
		result, err = extractor.Extract(context.Background(), []byte("image"), "image/png")
	})

	When("scanning succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the fields from the detections", func() {
			Expect(result.StoreNames).To(Equal([]string{"ABC점"}))
			Expect(result.BusinessNumbers).To(Equal([]string{"123-45-67890"}))
			Expect(*result.Amount).To(Equal(int64(12500)))
		})
	})

	When("the image cannot be read", func() {
		BeforeEach(func() {
			scanner.scanErr = &scanning.ImageReadError{MimeType: "image/png", Err: errors.New("bad data")}
		})

		It("returns the ImageReadError", func() {
			var readErr *scanning.ImageReadError
			Expect(errors.As(err, &readErr)).To(BeTrue())
			Expect(err).To(MatchError(scanning.ErrUnreadableImage))
		})
	})

	When("nothing is detected", func() {
		BeforeEach(func() {
			scanner.detections = nil
		})

		It("should return empty fields", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BusinessNumbers).To(BeEmpty())
			Expect(result.Amount).To(BeNil())
		})
	})
})
