package models

import "time"

// FieldSource identifies which pipeline stage produced a field value.
type FieldSource string

// Field source constants, ordered by extractor credence.
const (
	FieldSourceJSONLD    FieldSource = "jsonld"
	FieldSourceAPI       FieldSource = "api"
	FieldSourceMeta      FieldSource = "meta"
	FieldSourceDOM       FieldSource = "dom"
	FieldSourceHeuristic FieldSource = "heuristic"
	FieldSourceRegex     FieldSource = "regex"
	FieldSourceAI        FieldSource = "ai"
)

// SourceConfidence maps a field source to the extractor's credence in
// values it produces. This is per-field credence, not global page quality.
var SourceConfidence = map[FieldSource]float64{
	FieldSourceJSONLD:    0.90,
	FieldSourceAPI:       0.90,
	FieldSourceMeta:      0.80,
	FieldSourceDOM:       0.70,
	FieldSourceHeuristic: 0.60,
	FieldSourceRegex:     0.50,
	FieldSourceAI:        0.40,
}

// Extractable field names.
const (
	FieldTitle          = "title"
	FieldEmployer       = "employer"
	FieldLocation       = "location"
	FieldPostedOn       = "posted_on"
	FieldDeadline       = "deadline"
	FieldDescription    = "description"
	FieldRequirements   = "requirements"
	FieldApplicationURL = "application_url"
)

// FieldResult is one extracted field value with provenance. Stages propose
// field results; the highest-confidence proposal wins.
type FieldResult struct {
	Value      string      `json:"value"`
	Source     FieldSource `json:"source"`
	Confidence float64     `json:"confidence"`
	RawSnippet string      `json:"raw_snippet,omitempty"`
}

// NewFieldResult builds a field result at the source's standard confidence.
func NewFieldResult(value string, source FieldSource) FieldResult {
	return FieldResult{
		Value:      value,
		Source:     source,
		Confidence: SourceConfidence[source],
	}
}

// ExtractionResult is the pipeline output for one page: the winning field
// results plus classification, identity, and validation issues.
type ExtractionResult struct {
	URL             string                 `json:"url"`
	Fields          map[string]FieldResult `json:"fields"`
	IsJob           bool                   `json:"is_job"`
	JobScore        float64                `json:"job_score"`
	CanonicalID     string                 `json:"canonical_id"`
	DedupeHash      string                 `json:"dedupe_hash"`
	Issues          []string               `json:"issues,omitempty"`
	NeedsReview     bool                   `json:"needs_review"`
	ExtractedAt     time.Time              `json:"extracted_at"`
	PipelineVersion string                 `json:"pipeline_version"`
}

// Field returns the winning value for a field name, or empty.
func (r *ExtractionResult) Field(name string) string {
	if fr, ok := r.Fields[name]; ok {
		return fr.Value
	}
	return ""
}

// Propose records a field result if it beats the current winner's
// confidence. Empty values never win.
func (r *ExtractionResult) Propose(name string, fr FieldResult) {
	if fr.Value == "" {
		return
	}
	if current, ok := r.Fields[name]; ok && current.Confidence >= fr.Confidence {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]FieldResult)
	}
	r.Fields[name] = fr
}

// Confidence returns the winning confidence for a field, or 0.
func (r *ExtractionResult) Confidence(name string) float64 {
	if fr, ok := r.Fields[name]; ok {
		return fr.Confidence
	}
	return 0
}
