package scanning

import (
	"context"
	"image"
)

// Detection is a single piece of text recognized in an image
type Detection struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"` // 0..1, zero when the engine does not report one
}

// Scanner defines the interface for OCR operations
type Scanner interface {
	// Scan recognizes the text in an image/PDF and returns the detections in engine order
	Scan(ctx context.Context, imageData []byte, contentType string) ([]Detection, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Texts returns the text of every detection, preserving order
func Texts(detections []Detection) []string {
	texts := make([]string, 0, len(detections))
	for _, d := range detections {
		texts = append(texts, d.Text)
	}
	return texts
}
