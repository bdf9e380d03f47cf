package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcribePrompt is the shared prompt used by the LLM providers to read receipt text
const transcribePrompt = `You are reading a Korean receipt or invoice image. Transcribe every line of text exactly as printed, from top to bottom.

Return ONLY a JSON array. Each element is an object:
{"text": "the line exactly as printed", "confidence": 0.0}

Important:
- Keep Korean text, digits, hyphens, commas, colons and dates exactly as they appear
- Do not translate, normalize or correct anything
- confidence is your certainty between 0 and 1
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// ErrUnreadableImage is matched by every ImageReadError
var ErrUnreadableImage = errors.New("image cannot be read")

// ImageReadError reports that the uploaded bytes could not be decoded as an image
type ImageReadError struct {
	MimeType string
	Err      error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("reading %s image: %v", e.MimeType, e.Err)
}

func (e *ImageReadError) Unwrap() error { return e.Err }

// Is reports ErrUnreadableImage as a match
func (e *ImageReadError) Is(target error) bool { return target == ErrUnreadableImage }

// pdfToImage converts the first page of a PDF to a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Receipts are single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeImage decodes HEIC/HEIF or any registered standard format
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	// Go's standard image package doesn't support HEIC
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// imageToPNG converts any image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	img, err := decodeImage(imageData, mimeType)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// convertToPNG converts PDFs and images to PNG format.
// PNG input is still decoded once so that corrupt uploads are rejected before OCR.
func convertToPNG(imageData []byte, mimeType string) ([]byte, error) {
	if mimeType == "application/pdf" {
		return pdfToImage(imageData)
	}
	if mimeType == "image/png" && !isHEICFormat(imageData) {
		if _, err := png.DecodeConfig(bytes.NewReader(imageData)); err != nil {
			return nil, fmt.Errorf("decoding PNG: %w", err)
		}
		return imageData, nil
	}
	return imageToPNG(imageData, mimeType)
}

// prepareImageData normalizes the MIME type and converts the upload to PNG.
// Decode failures are returned as *ImageReadError.
func prepareImageData(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = sniffMimeType(imageData)
	}

	if len(imageData) == 0 {
		return nil, &ImageReadError{MimeType: mimeType, Err: errors.New("empty upload")}
	}

	pngData, err := convertToPNG(imageData, mimeType)
	if err != nil {
		return nil, &ImageReadError{MimeType: mimeType, Err: err}
	}
	return pngData, nil
}

// sniffMimeType guesses the type of an upload that arrived without one
func sniffMimeType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case isHEICFormat(data):
		return "image/heic"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	default:
		return "image/jpeg"
	}
}
