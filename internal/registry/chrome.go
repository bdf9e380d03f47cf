package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

// ChromeSession drives a headless Chrome tab. Use it when the registry
// renders its content with JavaScript.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	pageTimeout time.Duration
}

// NewChromeSession starts a headless browser with one tab
func NewChromeSession(pageTimeout time.Duration, opts ...chromedp.ExecAllocatorOption) (*ChromeSession, error) {
	if pageTimeout <= 0 {
		pageTimeout = 10 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(defaultUserAgent),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocOpts = append(allocOpts, opts...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	// Launch now so a missing browser fails at startup, not on the first upload
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &ChromeSession{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		pageTimeout: pageTimeout,
	}, nil
}

// Open navigates the tab and returns the rendered document
func (c *ChromeSession) Open(ctx context.Context, url string) (*html.Node, error) {
	runCtx, cancel := context.WithTimeout(c.ctx, c.pageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var outer string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &outer, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("loading %s: %w", url, ctxErr)
		}
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}

	doc, err := html.Parse(strings.NewReader(outer))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return doc, nil
}

// Close shuts the browser down
func (c *ChromeSession) Close() error {
	c.cancel()
	c.allocCancel()
	return nil
}
