package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Lookup outcomes reported to a LookupObserver
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeCacheHit = "cache_hit"
)

// errAbandoned marks a page load cut short because the caller's context ended
var errAbandoned = errors.New("lookup abandoned")

// LookupObserver is told the outcome of every business number lookup
type LookupObserver interface {
	ObserveLookup(outcome string)
}

// Config holds the enricher settings
type Config struct {
	// BaseURL is the registry page prefix
	BaseURL string
	// ShopNamePolicy decides whether a missing shop name drops the record
	ShopNamePolicy ShopNamePolicy
	// RequestInterval is the minimum gap between page loads, zero disables pacing
	RequestInterval time.Duration
	// BreakerFailures is the number of consecutive failed page loads that opens the breaker
	BreakerFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open before probing again
	BreakerOpenTimeout time.Duration
}

// Option configures optional Enricher collaborators
type Option func(*Enricher)

// WithCache stores found records and serves repeats from c
func WithCache(c Cache) Option {
	return func(e *Enricher) { e.cache = c }
}

// WithObserver reports lookup outcomes to o
func WithObserver(o LookupObserver) Option {
	return func(e *Enricher) { e.observer = o }
}

// Enricher looks business numbers up on the registry
type Enricher struct {
	pool     *SessionPool
	cfg      Config
	cache    Cache
	observer LookupObserver
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*html.Node]
}

// NewEnricher creates an Enricher that borrows sessions from pool
func NewEnricher(pool *SessionPool, cfg Config, opts ...Option) *Enricher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ShopNamePolicy == "" {
		cfg.ShopNamePolicy = ShopNamePlaceholder
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	e := &Enricher{
		pool: pool,
		cfg:  cfg,
	}
	if cfg.RequestInterval > 0 {
		e.limiter = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	}

	failures := cfg.BreakerFailures
	e.breaker = gobreaker.NewCircuitBreaker[*html.Node](gobreaker.Settings{
		Name:        "registry",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A missing page or an abandoned request says nothing about registry health
			return err == nil || errors.Is(err, ErrNoPage) || errors.Is(err, errAbandoned)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich looks every business number up in input order using one session.
// Every number appears in the result; failed lookups map to nil and never
// stop the batch.
func (e *Enricher) Enrich(ctx context.Context, numbers []string) Records {
	records := make(Records, len(numbers))
	if len(numbers) == 0 {
		return records
	}

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		slog.Error("No registry session available", "error", err, "numbers", len(numbers))
		for _, number := range numbers {
			if _, seen := records[number]; !seen {
				records[number] = nil
				e.observe(OutcomeError)
			}
		}
		return records
	}
	defer e.pool.Release(session)

	for _, number := range numbers {
		if _, seen := records[number]; seen {
			continue
		}
		record, outcome := e.lookup(ctx, session, number)
		records[number] = record
		e.observe(outcome)
	}
	return records
}

func (e *Enricher) lookup(ctx context.Context, session Session, number string) (*CategoryRecord, string) {
	clean := NormalizeBusinessNumber(number)

	if e.cache != nil {
		record, ok, err := e.cache.Get(clean)
		if err != nil {
			slog.Warn("Failed to read category cache", "business_number", number, "error", err)
		} else if ok {
			return record, OutcomeCacheHit
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			slog.Warn("Registry lookup abandoned", "business_number", number, "error", err)
			return nil, OutcomeError
		}
	}
	if err := ctx.Err(); err != nil {
		slog.Warn("Registry lookup abandoned", "business_number", number, "error", err)
		return nil, OutcomeError
	}

	url := LookupURL(e.cfg.BaseURL, clean)
	slog.Info("Visiting registry page", "url", url)

	doc, err := e.breaker.Execute(func() (*html.Node, error) {
		doc, err := session.Open(ctx, url)
		if err != nil && ctx.Err() != nil {
			// Page timeouts of the session itself still count
			return nil, fmt.Errorf("%w: %w", errAbandoned, err)
		}
		return doc, err
	})
	if err != nil {
		if errors.Is(err, ErrNoPage) {
			slog.Info("No registry page", "business_number", number)
			return nil, OutcomeNotFound
		}
		slog.Warn("Failed to load registry page", "business_number", number, "error", err)
		return nil, OutcomeError
	}

	record, err := ParseRegistryPage(doc, e.cfg.ShopNamePolicy)
	if err != nil {
		slog.Info("No category information", "business_number", number, "reason", err)
		return nil, OutcomeNotFound
	}
	slog.Info("Registry categories found",
		"business_number", number,
		"shop_name", record.ShopName,
		"major", deref(record.Major),
		"sub_sub", deref(record.SubSub),
	)

	if e.cache != nil {
		if err := e.cache.Put(clean, record); err != nil {
			slog.Warn("Failed to cache category record", "business_number", number, "error", err)
		}
	}
	return record, OutcomeFound
}

func (e *Enricher) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveLookup(outcome)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
