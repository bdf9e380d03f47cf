package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zombor/receipt-categorizer/internal/extraction"
	"github.com/zombor/receipt-categorizer/internal/registry"
)

// Extractor reads the receipt fields out of an uploaded image
type Extractor interface {
	Extract(ctx context.Context, imageData []byte, contentType string) (*extraction.Result, error)
}

// Enricher looks business numbers up on the registry
type Enricher interface {
	Enrich(ctx context.Context, numbers []string) registry.Records
}

// IDGenerator generates unique IDs for uploads
type IDGenerator interface {
	Generate() string
}

// Observer is told about finished extractions and running enrichments
type Observer interface {
	ObserveExtract(duration time.Duration, err error)
	EnrichStarted() func()
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

// NewUUIDGenerator returns an IDGenerator producing random UUIDs
func NewUUIDGenerator() IDGenerator {
	return &uuidGenerator{}
}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type nopObserver struct{}

func (nopObserver) ObserveExtract(time.Duration, error) {}
func (nopObserver) EnrichStarted() func()               { return func() {} }

// DefaultEnrichTimeout bounds the registry lookups of one request
const DefaultEnrichTimeout = 60 * time.Second

// enrichGracePeriod is how long a cancelled enrichment may take to hand back
// the lookups it finished
const enrichGracePeriod = 2 * time.Second

// Service handles receipt extraction requests
type Service struct {
	extractor     Extractor
	enricher      Enricher
	storage       Storage
	idGenerator   IDGenerator
	observer      Observer
	enrichTimeout time.Duration
	enrichGrace   time.Duration
}

// NewService creates a new Service with a UUID generator and the default enrichment timeout
func NewService(extractor Extractor, enricher Enricher, storage Storage) *Service {
	return NewServiceWithDeps(extractor, enricher, storage, NewUUIDGenerator(), nopObserver{}, DefaultEnrichTimeout)
}

// NewServiceWithDeps creates a new Service with custom dependencies
func NewServiceWithDeps(extractor Extractor, enricher Enricher, storage Storage, idGen IDGenerator, observer Observer, enrichTimeout time.Duration) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	if enrichTimeout <= 0 {
		enrichTimeout = DefaultEnrichTimeout
	}
	return &Service{
		extractor:     extractor,
		enricher:      enricher,
		storage:       storage,
		idGenerator:   idGen,
		observer:      observer,
		enrichTimeout: enrichTimeout,
		enrichGrace:   enrichGracePeriod,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	spaceRuns           = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// 50 runes for the base, plus extension
	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "receipt"
	}
	if ext == "." {
		ext = ""
	}
	return base + ext
}

// Extract stores the upload for the duration of the request, reads the receipt
// fields and looks every business number up on the registry.
// Lookups that do not finish within the enrichment timeout map to nil.
func (s *Service) Extract(ctx context.Context, filename string, data []byte, contentType string) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		s.observer.ObserveExtract(time.Since(start), err)
	}()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	defer func() {
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to delete upload", "path", savedPath, "error", delErr)
		}
	}()

	stored, err := s.storage.Get(savedPath)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	result, err := s.extractor.Extract(ctx, stored, contentType)
	if err != nil {
		slog.Error("Failed to extract receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}
	slog.Info("Receipt extracted",
		"filename", filename,
		"business_numbers", len(result.BusinessNumbers),
		"store_names", len(result.StoreNames),
		"dates", len(result.TransactionDates),
	)

	return &Response{
		OCR:        result,
		Categories: s.enrich(ctx, result.BusinessNumbers),
	}, nil
}

// enrich runs the lookups off the request goroutine. At the deadline the
// enricher is cancelled and its finished lookups are kept; a session that
// ignores cancellation past the grace period loses the whole batch.
func (s *Service) enrich(ctx context.Context, numbers []string) registry.Records {
	if len(numbers) == 0 {
		return make(registry.Records)
	}

	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	done := make(chan registry.Records, 1)
	go func() {
		finished := s.observer.EnrichStarted()
		records := s.enricher.Enrich(ctx, numbers)
		finished()
		done <- records
	}()

	var records registry.Records
	select {
	case records = <-done:
	case <-ctx.Done():
		slog.Warn("Registry enrichment timed out", "numbers", len(numbers), "timeout", s.enrichTimeout)
		grace := time.NewTimer(s.enrichGrace)
		defer grace.Stop()
		select {
		case records = <-done:
		case <-grace.C:
			slog.Error("Registry enrichment ignored cancellation", "numbers", len(numbers), "grace", s.enrichGrace)
		}
	}

	// Every extracted number is a key, unfinished lookups included
	complete := make(registry.Records, len(numbers))
	for _, number := range numbers {
		complete[number] = records[number]
	}
	return complete
}
