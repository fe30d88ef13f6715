package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// BrowserRenderer renders JS-heavy pages with headless Chrome. Used only
// for the configured allowlist and pages that declare a browser
// requirement; every render is bounded by the configured timeout.
type BrowserRenderer struct {
	timeout time.Duration
	logger  arbor.ILogger
}

// NewBrowserRenderer creates a renderer with the given per-render timeout.
func NewBrowserRenderer(timeout time.Duration, logger arbor.ILogger) *BrowserRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserRenderer{
		timeout: timeout,
		logger:  logger,
	}
}

// Render loads the URL in headless Chrome and returns the rendered HTML,
// or nil on any failure. Render failures are soft: the caller keeps the
// raw body.
func (r *BrowserRenderer) Render(ctx context.Context, rawURL string) []byte {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(3*time.Second), // let the SPA settle
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", rawURL).Msg("Browser render failed")
		return nil
	}

	r.logger.Debug().
		Str("url", rawURL).
		Int("size", len(html)).
		Msg("Browser render completed")

	return []byte(html)
}
