package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html"
)

// ErrNoPage means the registry has no page for the number
var ErrNoPage = errors.New("registry page does not exist")

// Session loads registry pages. A session is used by one request at a time.
type Session interface {
	// Open navigates to url and returns the loaded document
	Open(ctx context.Context, url string) (*html.Node, error)
	// Close releases the session
	Close() error
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// HTTPSession fetches pages with a plain HTTP client. It suits registry pages
// that are rendered server side.
type HTTPSession struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSession creates an HTTPSession whose page loads are bounded by pageTimeout
func NewHTTPSession(pageTimeout time.Duration) *HTTPSession {
	if pageTimeout <= 0 {
		pageTimeout = 10 * time.Second
	}
	return &HTTPSession{
		client:    &http.Client{Timeout: pageTimeout},
		userAgent: defaultUserAgent,
	}
}

// Open fetches and parses a page
func (s *HTTPSession) Open(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("loading %s: %w", url, ErrNoPage)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("loading %s (status %d): %s", url, resp.StatusCode, string(body))
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return doc, nil
}

// Close releases idle connections
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
