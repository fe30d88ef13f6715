package models

import (
	"time"
)

// Job status constants
const (
	JobStatusActive = "active"
)

// Enrichment carries the taxonomy labels attached to a job by the
// enrichment engine, together with per-item confidences and the audit
// fields the rule pipeline maintains.
type Enrichment struct {
	ImpactDomains      []string           `json:"impact_domains,omitempty"`
	ImpactConfidences  map[string]float64 `json:"impact_confidences,omitempty"`
	FunctionalRoles    []string           `json:"functional_roles,omitempty"`
	ExperienceLevel    string             `json:"experience_level,omitempty"`
	ExperienceYears    int                `json:"experience_years,omitempty"`
	ExperienceConf     float64            `json:"experience_confidence,omitempty"`
	SDGs               []int              `json:"sdgs,omitempty"`
	SDGConfidences     map[string]float64 `json:"sdg_confidences,omitempty"`
	SDGExplanation     string             `json:"sdg_explanation,omitempty"`
	MatchedKeywords    []string           `json:"matched_keywords,omitempty"`
	OverallConfidence  float64            `json:"overall_confidence,omitempty"`
	LowConfidence      bool               `json:"low_confidence"`
	LowConfidenceNote  string             `json:"low_confidence_reason,omitempty"`
	EnrichmentVersion  string             `json:"enrichment_version,omitempty"`
	EnrichedAt         time.Time          `json:"enriched_at,omitempty"`
}

// Quality holds the pre-upsert quality assessment of a job record.
type Quality struct {
	Score       float64            `json:"score"` // 0..1
	Grade       string             `json:"grade"` // A..F
	Factors     map[string]float64 `json:"factors,omitempty"`
	Issues      []string           `json:"issues,omitempty"`
	NeedsReview bool               `json:"needs_review"`
}

// Geo holds the parsed location block produced by the geocoder.
type Geo struct {
	Country    string  `json:"country,omitempty"`
	CountryISO string  `json:"country_iso,omitempty"` // ISO-2
	City       string  `json:"city,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	Remote     bool    `json:"remote"`
}

// UnknownValue records a raw value dropped during normalization so
// reviewers can promote it into the taxonomy later.
type UnknownValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Job is a deduplicated posting. The canonical hash is unique among
// non-deleted jobs; re-fetches of the same posting upsert rather than
// insert. The source reference is weak: the denormalized org name survives
// source deletion.
type Job struct {
	ID       string `json:"id" badgerhold:"key"`
	SourceID string `json:"source_id" badgerhold:"index"`
	OrgName  string `json:"org_name"`

	Title       string `json:"title"`
	ApplyURL    string `json:"apply_url"`
	LocationRaw string `json:"location_raw,omitempty"`
	PostedOn    string `json:"posted_on,omitempty"` // YYYY-MM-DD
	Deadline    string `json:"deadline,omitempty"`  // YYYY-MM-DD
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`

	Geo Geo `json:"geo"`

	CanonicalHash string `json:"canonical_hash" badgerhold:"index"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Status      string    `json:"status"`

	DeletedAt      time.Time `json:"deleted_at,omitempty"`
	DeletedBy      string    `json:"deleted_by,omitempty"`
	DeletionReason string    `json:"deletion_reason,omitempty"`

	Enrichment *Enrichment `json:"enrichment,omitempty"`
	Quality    *Quality    `json:"quality,omitempty"`

	// RawMetadata carries extraction provenance and the unknown-value
	// capture from normalization.
	RawMetadata map[string]interface{} `json:"raw_metadata,omitempty"`
}

// ShadowJob is a sibling-table row written by shadow-mode crawls. Shadow
// rows are keyed on canonical hash and carry only the comparable fields,
// so an extraction change can be diffed against production before it
// goes live.
type ShadowJob struct {
	CanonicalHash string `json:"canonical_hash" badgerhold:"key"`
	SourceID      string `json:"source_id"`
	OrgName       string `json:"org_name"`

	Title       string `json:"title"`
	ApplyURL    string `json:"apply_url"`
	LocationRaw string `json:"location_raw,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	Snippet     string `json:"snippet,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Deleted reports whether the job is currently soft-deleted.
func (j *Job) Deleted() bool {
	return !j.DeletedAt.IsZero()
}

// Restore clears the soft-delete triple and reactivates the job.
func (j *Job) Restore() {
	j.DeletedAt = time.Time{}
	j.DeletedBy = ""
	j.DeletionReason = ""
	j.Status = JobStatusActive
}

// AddUnknown appends a dropped normalization value to raw_metadata.unknown.
func (j *Job) AddUnknown(field, value string) {
	if j.RawMetadata == nil {
		j.RawMetadata = make(map[string]interface{})
	}
	var unknowns []UnknownValue
	if existing, ok := j.RawMetadata["unknown"].([]UnknownValue); ok {
		unknowns = existing
	}
	unknowns = append(unknowns, UnknownValue{Field: field, Value: value})
	j.RawMetadata["unknown"] = unknowns
}
