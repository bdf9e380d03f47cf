package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/receipt-categorizer/internal/scanning"
)

// Extractor turns a receipt image into typed fields
type Extractor struct {
	scanner scanning.Scanner
}

// NewExtractor creates an Extractor backed by the given OCR scanner
func NewExtractor(scanner scanning.Scanner) *Extractor {
	return &Extractor{scanner: scanner}
}

// Extract runs OCR over the image and parses the fields out of the recognized text.
// The error wraps a *scanning.ImageReadError when the image cannot be decoded.
func (e *Extractor) Extract(ctx context.Context, imageData []byte, contentType string) (*Result, error) {
	detections, err := e.scanner.Scan(ctx, imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("scanning image: %w", err)
	}

	fragments := scanning.Texts(detections)
	slog.Debug("OCR complete", "fragments", len(fragments))

	return Fields(fragments), nil
}
