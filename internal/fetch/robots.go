package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"
)

// robotsEntry caches parsed directives for one host.
type robotsEntry struct {
	group      *robotstxt.Group
	crawlDelay time.Duration
	expiresAt  time.Time
	mu         sync.Mutex
}

// RobotsCache fetches and caches /robots.txt per host. Directives expire
// after the configured TTL; a fetch failure is treated as allow-all until
// the next refresh.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	entries   map[string]*robotsEntry
	mu        sync.Mutex
	logger    arbor.ILogger
}

// NewRobotsCache creates a robots cache with the given TTL.
func NewRobotsCache(client *http.Client, userAgent string, ttl time.Duration, logger arbor.ILogger) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		entries:   make(map[string]*robotsEntry),
		logger:    logger,
	}
}

// Allowed reports whether the configured user agent may fetch the URL path
// on the host, plus any crawl-delay directive for the host.
func (c *RobotsCache) Allowed(ctx context.Context, scheme, host, path string) (bool, time.Duration, error) {
	entry := c.entryFor(host)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.group == nil || time.Now().After(entry.expiresAt) {
		if err := c.refresh(ctx, entry, scheme, host); err != nil {
			// Unreachable robots.txt degrades to allow-all for one TTL.
			c.logger.Debug().Err(err).Str("host", host).Msg("robots.txt fetch failed, allowing")
			entry.group = nil
			entry.expiresAt = time.Now().Add(c.ttl)
			return true, 0, nil
		}
	}

	if entry.group == nil {
		return true, entry.crawlDelay, nil
	}
	return entry.group.Test(path), entry.crawlDelay, nil
}

func (c *RobotsCache) entryFor(host string) *robotsEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[host]
	if !ok {
		entry = &robotsEntry{}
		c.entries[host] = entry
	}
	return entry
}

// refresh fetches and parses robots.txt for the host. Caller holds the
// per-host lock.
func (c *RobotsCache) refresh(ctx context.Context, entry *robotsEntry, scheme, host string) error {
	if scheme == "" {
		scheme = "https"
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 4xx means no robots policy; allow everything.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		entry.group = nil
		entry.crawlDelay = 0
		entry.expiresAt = time.Now().Add(c.ttl)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return err
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return err
	}

	group := robots.FindGroup(c.userAgent)
	entry.group = group
	if group != nil {
		entry.crawlDelay = group.CrawlDelay
	}
	entry.expiresAt = time.Now().Add(c.ttl)
	return nil
}
