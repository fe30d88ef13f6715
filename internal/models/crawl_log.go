package models

import "time"

// Crawl log status constants
const (
	CrawlStatusOK   = "ok"
	CrawlStatusWarn = "warn"
	CrawlStatusFail = "fail"
)

// MaxCrawlMessageLen caps the stored crawl log message.
const MaxCrawlMessageLen = 500

// CrawlLog is an immutable record of one source run. Append-only;
// retention is handled externally.
type CrawlLog struct {
	ID         string        `json:"id" badgerhold:"key"`
	SourceID   string        `json:"source_id" badgerhold:"index"`
	RanAt      time.Time     `json:"ran_at"`
	DurationMS int64         `json:"duration_ms"`
	Found      int           `json:"found"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Status     string        `json:"status"` // ok, warn, fail
	Message    string        `json:"message,omitempty"`
}

// SetMessage stores the message truncated to the storage cap.
func (c *CrawlLog) SetMessage(msg string) {
	c.Message = TruncateMessage(msg, MaxCrawlMessageLen)
}

// TruncateMessage trims a message to max characters, appending an ellipsis
// marker when content was dropped.
func TruncateMessage(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	if max <= 3 {
		return msg[:max]
	}
	return msg[:max-3] + "..."
}

// Lock is a short-lived exclusion record keyed by source ID. At most one
// lock exists per source; locks are released on crawl completion or
// reclaimed after the staleness timeout.
type Lock struct {
	SourceID   string    `json:"source_id" badgerhold:"key"`
	AcquiredAt time.Time `json:"acquired_at"`
	Owner      string    `json:"owner,omitempty"`
}

// FailedInsert records one insertion failure with a redacted payload
// snapshot. Written to the extraction_logs collaborator table.
type FailedInsert struct {
	ID        string    `json:"id" badgerhold:"key"`
	SourceURL string    `json:"source_url"`
	Operation string    `json:"operation"` // validate, insert, update
	Error     string    `json:"error"`
	Payload   string    `json:"payload,omitempty"` // redacted JSON snapshot
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// EnrichmentHistory snapshots the prior enrichment block before every
// enrichment write.
type EnrichmentHistory struct {
	ID           string      `json:"id" badgerhold:"key"`
	JobID        string      `json:"job_id" badgerhold:"index"`
	Prior        *Enrichment `json:"prior,omitempty"`
	ChangeReason string      `json:"change_reason"`
	ChangedBy    string      `json:"changed_by"`
	ChangedAt    time.Time   `json:"changed_at"`
}
