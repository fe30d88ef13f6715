package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/models"
)

// rssDocument covers RSS 2.0 feeds.
type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// atomDocument covers Atom feeds.
type atomDocument struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

var (
	rssLocationRe = regexp.MustCompile(`(?i)(?:location|duty station|based in)[:\s]+([A-Za-z][A-Za-z ,.'()/-]{1,60})`)
	rssDeadlineRe = regexp.MustCompile(`(?i)(?:deadline|closing date|apply by|due date)[:\s]+([A-Za-z0-9 ,./-]{4,40})`)
	tagStripRe    = regexp.MustCompile(`<[^>]+>`)
)

// RSSFetcher parses feed bodies into raw records. Location and deadline
// are regex-extracted from entry descriptions since feeds rarely carry
// structured fields for them.
type RSSFetcher struct {
	client *Client
	logger arbor.ILogger
}

// NewRSSFetcher creates an RSS fetcher over the polite fetch client.
func NewRSSFetcher(client *Client, logger arbor.ILogger) *RSSFetcher {
	return &RSSFetcher{
		client: client,
		logger: logger,
	}
}

// Fetch retrieves and parses the feed. Conditional GET validators come
// from the source's last run.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string, cond Conditional) (*Result, []RawRecord, error) {
	result := f.client.Get(ctx, feedURL, cond)
	if !result.OK() {
		return result, nil, nil
	}

	records, err := ParseFeed(result.Body)
	if err != nil {
		result.Kind = ErrorKindPolicy
		result.Message = fmt.Sprintf("feed parse failed: %v", err)
		return result, nil, nil
	}

	f.logger.Debug().
		Str("url", feedURL).
		Int("entries", len(records)).
		Msg("Feed parsed")

	return result, records, nil
}

// ParseFeed parses RSS 2.0 or Atom bytes into raw records.
func ParseFeed(body []byte) ([]RawRecord, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		records := make([]RawRecord, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			records = append(records, recordFromEntry(item.Title, item.Link, item.Description, item.PubDate))
		}
		return records, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		records := make([]RawRecord, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			link := ""
			for _, l := range entry.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			body := entry.Summary
			if body == "" {
				body = entry.Content
			}
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			records = append(records, recordFromEntry(entry.Title, link, body, published))
		}
		return records, nil
	}

	return nil, fmt.Errorf("body is neither RSS nor Atom")
}

// recordFromEntry builds a raw record from one feed entry, regex-mining
// the description for location and deadline.
func recordFromEntry(title, link, description, published string) RawRecord {
	plain := strings.TrimSpace(tagStripRe.ReplaceAllString(description, " "))

	record := RawRecord{
		models.FieldTitle:          strings.TrimSpace(title),
		models.FieldApplicationURL: strings.TrimSpace(link),
		models.FieldDescription:    plain,
	}

	if published != "" {
		if parsed, ok := parseFeedDate(published); ok {
			record[models.FieldPostedOn] = parsed
		}
	}
	if m := rssLocationRe.FindStringSubmatch(plain); m != nil {
		record[models.FieldLocation] = strings.TrimSpace(m[1])
	}
	if m := rssDeadlineRe.FindStringSubmatch(plain); m != nil {
		record[models.FieldDeadline] = strings.TrimSpace(m[1])
	}

	return record
}

// parseFeedDate accepts the common feed date layouts and returns
// YYYY-MM-DD.
func parseFeedDate(value string) (string, bool) {
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02",
		"Mon, 2 Jan 2006 15:04:05 -0700",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
