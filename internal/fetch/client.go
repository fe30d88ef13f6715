package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
)

// Markers in a response body that indicate the page needs a real browser.
var jsRequiredMarkers = []string{
	"unsupported browser",
	"javascript required",
	"enable javascript",
}

// Client is the polite fetch primitive shared by every fetcher. It honors
// robots.txt, per-host token buckets, conditional GET, the body size cap,
// and the redirect limit, and falls back to the headless browser for
// allowlisted JS-rendered hosts.
type Client struct {
	httpClient *http.Client
	robots     *RobotsCache
	limiter    *HostLimiter
	retry      *RetryPolicy
	renderer   *BrowserRenderer
	config     common.FetchConfig
	logger     arbor.ILogger
}

// NewClient creates the fetch client from configuration.
func NewClient(config common.FetchConfig, logger arbor.ILogger) *Client {
	httpClient := &http.Client{
		Timeout: config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		},
	}

	return &Client{
		httpClient: httpClient,
		robots:     NewRobotsCache(httpClient, config.UserAgent, config.RobotsTTL, logger),
		limiter:    NewHostLimiter(config.RequestsPerMinute, config.Burst),
		retry:      NewRetryPolicy(),
		renderer:   NewBrowserRenderer(config.BrowserTimeout, logger),
		config:     config,
		logger:     logger,
	}
}

// Limiter exposes the per-host limiter so API sources can apply their own
// throttle overrides.
func (c *Client) Limiter() *HostLimiter {
	return c.limiter
}

// Get fetches a URL with full politeness. Transport errors never surface
// as Go errors to the orchestrator; they are absorbed into the Result's
// synthetic status and kind.
func (c *Client) Get(ctx context.Context, rawURL string, cond Conditional) *Result {
	start := time.Now()
	result := &Result{URL: rawURL}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		result.Kind = ErrorKindPolicy
		result.Message = fmt.Sprintf("invalid URL: %s", rawURL)
		return result
	}

	// Robots first: a disallow is a synthetic 403.
	allowed, crawlDelay, err := c.robots.Allowed(ctx, parsed.Scheme, parsed.Host, parsed.RequestURI())
	if err == nil && !allowed {
		result.Status = http.StatusForbidden
		result.Kind = ErrorKindRobots
		result.Message = fmt.Sprintf("blocked by robots.txt for %s", parsed.Host)
		result.Duration = time.Since(start)
		return result
	}
	if crawlDelay > 0 {
		// robots crawl-delay tightens the host bucket.
		rpm := int(time.Minute / crawlDelay)
		if rpm >= 1 {
			c.limiter.SetHostRate(parsed.Host, rpm, 1)
		}
	}

	if err := c.limiter.Wait(ctx, parsed.Host); err != nil {
		result.Kind = ErrorKindNetwork
		result.Message = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	status, err := c.retry.ExecuteWithRetry(ctx, c.logger, func() (int, error) {
		return c.doRequest(ctx, rawURL, cond, result)
	})
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = 0
		result.Kind = ErrorKindNetwork
		result.Message = err.Error()
		return result
	}

	result.Status = status
	if status == http.StatusNotModified {
		result.NotModified = true
		return result
	}
	result.Kind = CategorizeStatus(status)
	if result.Kind != ErrorKindNone {
		result.Message = fmt.Sprintf("HTTP %d from %s", status, parsed.Host)
		return result
	}

	// JS-rendered pages get one browser pass when allowlisted or when the
	// body itself says a browser is required.
	if c.needsBrowser(parsed.Host, result.Body) {
		if rendered := c.renderer.Render(ctx, rawURL); rendered != nil {
			result.Body = rendered
			result.Size = len(rendered)
			result.Rendered = true
		}
	}

	return result
}

// doRequest performs one HTTP attempt, filling body and validators on the
// shared result.
func (c *Client) doRequest(ctx context.Context, rawURL string, cond Conditional, result *Result) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if cond.ETag != "" {
		req.Header.Set("If-None-Match", cond.ETag)
	}
	if cond.LastModified != "" {
		req.Header.Set("If-Modified-Since", cond.LastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	result.Headers = resp.Header
	result.ETag = resp.Header.Get("ETag")
	result.LastModified = resp.Header.Get("Last-Modified")

	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, nil
	}

	maxBytes := int64(c.config.MaxBodyKB) * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return resp.StatusCode, err
	}
	if int64(len(body)) > maxBytes {
		body = body[:maxBytes]
		result.Truncated = true
		c.logger.Warn().
			Str("url", rawURL).
			Int("max_kb", c.config.MaxBodyKB).
			Msg("Response body truncated at size cap")
	}
	result.Body = body
	result.Size = len(body)

	return resp.StatusCode, nil
}

// needsBrowser decides whether to re-fetch through the headless renderer.
func (c *Client) needsBrowser(host string, body []byte) bool {
	if c.renderer == nil {
		return false
	}
	for _, allowed := range c.config.BrowserAllowlist {
		if strings.EqualFold(host, allowed) || strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(allowed)) {
			return true
		}
	}
	lower := strings.ToLower(string(body))
	for _, marker := range jsRequiredMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ValidateLink performs a lightweight reachability check used by the
// validate_links administrative operation.
func (c *Client) ValidateLink(ctx context.Context, rawURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.LinkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Some ATSes reject HEAD; fall back to a ranged GET.
	if resp.StatusCode == http.StatusMethodNotAllowed {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Range", "bytes=0-0")
		resp2, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp2.Body.Close()
		return resp2.StatusCode, nil
	}

	return resp.StatusCode, nil
}
