// Package search syncs job documents into the Meilisearch collaborator.
// The client is deliberately thin: add documents, delete by ID in
// batches, nothing else. Search failures never fail the calling
// operation.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

// deleteBatchSize caps IDs per delete call.
const deleteBatchSize = 100

// Document is the search-index projection of a job.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	OrgName     string   `json:"org_name"`
	Location    string   `json:"location,omitempty"`
	CountryISO  string   `json:"country_iso,omitempty"`
	Remote      bool     `json:"remote"`
	Deadline    string   `json:"deadline,omitempty"`
	PostedOn    string   `json:"posted_on,omitempty"`
	ApplyURL    string   `json:"apply_url"`
	SDGs        []int    `json:"sdgs,omitempty"`
	Domains     []string `json:"impact_domains,omitempty"`
	Level       string   `json:"experience_level,omitempty"`
	QualityTier string   `json:"quality_tier,omitempty"`
}

// Client talks to one Meilisearch index.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	index      string
	logger     arbor.ILogger
}

// NewClient creates the search client. An empty URL yields a disabled
// client whose operations no-op.
func NewClient(cfg common.SearchConfig, logger arbor.ILogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		index:      cfg.JobsIndex,
		logger:     logger,
	}
}

// Enabled reports whether a search backend is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// IndexJobs adds or replaces documents for the given jobs.
func (c *Client) IndexJobs(ctx context.Context, jobs []*models.Job) error {
	if !c.Enabled() || len(jobs) == 0 {
		return nil
	}

	docs := make([]Document, 0, len(jobs))
	for _, job := range jobs {
		docs = append(docs, documentFromJob(job))
	}

	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode search documents: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/documents", c.baseURL, c.index)
	if err := c.do(ctx, http.MethodPost, url, payload); err != nil {
		return fmt.Errorf("failed to index %d documents: %w", len(docs), err)
	}

	c.logger.Debug().Int("documents", len(docs)).Msg("Search index updated")
	return nil
}

// DeleteJobs removes documents by ID in batches of at most one hundred.
// Partial failures continue with the remaining batches and return the
// first error.
func (c *Client) DeleteJobs(ctx context.Context, ids []string) error {
	if !c.Enabled() || len(ids) == 0 {
		return nil
	}

	var firstErr error
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		payload, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("failed to encode delete batch: %w", err)
		}
		url := fmt.Sprintf("%s/indexes/%s/documents/delete-batch", c.baseURL, c.index)
		if err := c.do(ctx, http.MethodPost, url, payload); err != nil {
			c.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("Search delete batch failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("meilisearch returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func documentFromJob(job *models.Job) Document {
	doc := Document{
		ID:       job.ID,
		Title:    job.Title,
		OrgName:  job.OrgName,
		Location: job.LocationRaw,
		Remote:   job.Geo.Remote,
		Deadline: job.Deadline,
		PostedOn: job.PostedOn,
		ApplyURL: job.ApplyURL,
	}
	doc.CountryISO = job.Geo.CountryISO
	if job.Enrichment != nil {
		doc.SDGs = job.Enrichment.SDGs
		doc.Domains = job.Enrichment.ImpactDomains
		doc.Level = job.Enrichment.ExperienceLevel
	}
	if job.Quality != nil {
		doc.QualityTier = job.Quality.Grade
	}
	return doc
}
