package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Scanner interface using a local Tesseract install.
// Each detection is one text line.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a Tesseract scanner for the given trained data languages
func NewTesseract(languages []string) (*Tesseract, error) {
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"kor", "eng"}
	}

	return &Tesseract{
		languages:     langs,
		clientFactory: gosseract.NewClient,
	}, nil
}

// Scan recognizes the text lines of a receipt
func (t *Tesseract) Scan(ctx context.Context, imageData []byte, contentType string) ([]Detection, error) {
	finalImageData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// gosseract clients are not safe for concurrent use
	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(finalImageData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text lines: %w", err)
	}

	detections := make([]Detection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		detections = append(detections, Detection{
			Text:       text,
			Box:        b.Box,
			Confidence: clampConfidence(b.Confidence / 100.0),
		})
	}
	return detections, nil
}

// Close is a no-op, clients are created per scan
func (t *Tesseract) Close() error {
	return nil
}
