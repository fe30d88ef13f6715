package models

import (
	"fmt"
	"strings"
	"time"
)

// Source kind constants
const (
	SourceKindHTML = "html"
	SourceKindRSS  = "rss"
	SourceKindAPI  = "api"
)

// Source status constants
const (
	SourceStatusActive = "active"
	SourceStatusPaused = "paused"
)

// Organization category constants. The category seeds the default crawl
// cadence when a source has no explicit cadence configured.
const (
	CategoryUN       = "un"
	CategoryINGO     = "ingo"
	CategoryNGO      = "ngo"
	CategoryPrivate  = "private"
	CategoryAcademic = "academic"
)

// Source is a polled origin of job postings. Mutated only by the
// orchestrator after a run; created and paused/resumed by administrators.
type Source struct {
	ID       string `json:"id" badgerhold:"key"`
	OrgName  string `json:"org_name"`
	BaseURL  string `json:"base_url"`
	Kind     string `json:"kind"` // html, rss, api
	Category string `json:"category"`
	Status   string `json:"status" badgerhold:"index"`

	// ParserHint is a CSS selector for html sources, or the serialized v1
	// JSON configuration for api sources.
	ParserHint string `json:"parser_hint,omitempty"`

	// CadenceDays overrides the category default when > 0.
	CadenceDays float64 `json:"cadence_days,omitempty"`

	LastFetchedAt       time.Time `json:"last_fetched_at"`
	LastStatus          string    `json:"last_status,omitempty"` // ok, warn, fail
	LastMessage         string    `json:"last_message,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	ConsecutiveNoChange int       `json:"consecutive_no_change"`
	NextRunAt           time.Time `json:"next_run_at" badgerhold:"index"`

	// Conditional GET state from the last successful fetch.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`

	// LastSuccessAt feeds the API fetcher's incremental "since" filter.
	LastSuccessAt time.Time `json:"last_success_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DeletedAt time.Time `json:"deleted_at,omitempty"`
}

// DefaultCadenceDays returns the category-seeded base cadence in days.
func DefaultCadenceDays(category string) float64 {
	switch strings.ToLower(category) {
	case CategoryUN:
		return 1
	case CategoryINGO:
		return 2
	case CategoryNGO:
		return 3
	case CategoryPrivate:
		return 5
	case CategoryAcademic:
		return 7
	default:
		return 3
	}
}

// BaseCadenceDays returns the source's configured cadence, falling back to
// the category default.
func (s *Source) BaseCadenceDays() float64 {
	if s.CadenceDays > 0 {
		return s.CadenceDays
	}
	return DefaultCadenceDays(s.Category)
}

// Validate checks the source configuration before it is accepted.
func (s *Source) Validate() error {
	if s.OrgName == "" {
		return fmt.Errorf("organization name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	switch s.Kind {
	case SourceKindHTML, SourceKindRSS, SourceKindAPI:
	default:
		return fmt.Errorf("invalid source kind: %s", s.Kind)
	}
	switch s.Status {
	case "", SourceStatusActive, SourceStatusPaused:
	default:
		return fmt.Errorf("invalid source status: %s", s.Status)
	}
	if s.CadenceDays < 0 {
		return fmt.Errorf("cadence days must be non-negative")
	}
	return nil
}

// Eligible reports whether the source may be scheduled at the given instant.
// Paused sources are never eligible until an operator clears the pause.
func (s *Source) Eligible(now time.Time) bool {
	if s.Status != SourceStatusActive {
		return false
	}
	if !s.DeletedAt.IsZero() {
		return false
	}
	return s.NextRunAt.IsZero() || !s.NextRunAt.After(now)
}
