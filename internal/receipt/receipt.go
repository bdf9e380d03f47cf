package receipt

import (
	"github.com/zombor/receipt-categorizer/internal/extraction"
	"github.com/zombor/receipt-categorizer/internal/registry"
)

// Response is the body returned for an extracted receipt
type Response struct {
	OCR        *extraction.Result `json:"OCR_결과"`
	Categories registry.Records   `json:"카테고리_키워드"`
}
