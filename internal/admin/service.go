// Package admin exposes the named operations consumed by the
// collaborator front-end: one-shot crawls, bulk deletion with impact
// gating, restores, link validation, and search index sync. Every
// operation returns the uniform envelope.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/enrich"
	"github.com/aidjobs/harvester/internal/fetch"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
	"github.com/aidjobs/harvester/internal/orchestrator"
	"github.com/aidjobs/harvester/internal/services/search"
)

// Envelope is the uniform operation response.
type Envelope struct {
	Status string      `json:"status"` // ok or error
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func ok(data interface{}) Envelope {
	return Envelope{Status: "ok", Data: data}
}

func fail(err error) Envelope {
	return Envelope{Status: "error", Error: err.Error()}
}

// DeleteMode selects soft or hard deletion for bulk deletes.
type DeleteMode string

const (
	DeleteSoft DeleteMode = "soft"
	DeleteHard DeleteMode = "hard"
)

// Service wires the administrative operations to their collaborators.
type Service struct {
	storage  interfaces.StorageManager
	orch     *orchestrator.Orchestrator
	client   *fetch.Client
	search   *search.Client
	enricher *enrich.Service
	logger   arbor.ILogger
}

// NewService creates the admin service.
func NewService(storage interfaces.StorageManager, orch *orchestrator.Orchestrator, client *fetch.Client, searchClient *search.Client, enricher *enrich.Service, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		orch:     orch,
		client:   client,
		search:   searchClient,
		enricher: enricher,
		logger:   logger,
	}
}

// RunSource triggers one crawl of the given source, ignoring its
// schedule. The per-source lock still applies.
func (s *Service) RunSource(ctx context.Context, sourceID string) Envelope {
	source, err := s.storage.SourceStorage().GetSource(ctx, sourceID)
	if err != nil {
		return fail(fmt.Errorf("source %s not found: %w", sourceID, err))
	}
	if err := s.orch.CrawlSource(ctx, source); err != nil {
		return fail(err)
	}
	return ok(map[string]string{
		"source_id":   source.ID,
		"last_status": source.LastStatus,
		"message":     source.LastMessage,
	})
}

// RunDue runs one scheduler tick immediately.
func (s *Service) RunDue(ctx context.Context) Envelope {
	s.orch.Tick(ctx)
	return ok(map[string]string{"tick": "completed"})
}

// CleanupExpired soft-deletes active jobs whose deadline has passed.
func (s *Service) CleanupExpired(ctx context.Context) Envelope {
	jobs := s.storage.JobStorage()
	expired, err := jobs.ListJobs(ctx, interfaces.JobFilter{
		DeadlineBefore: time.Now().UTC(),
	})
	if err != nil {
		return fail(fmt.Errorf("failed to list expired jobs: %w", err))
	}
	if len(expired) == 0 {
		return ok(map[string]int{"deleted": 0})
	}

	ids := make([]string, 0, len(expired))
	for _, job := range expired {
		ids = append(ids, job.ID)
	}
	deleted, err := jobs.SoftDeleteJobs(ctx, ids, "system", "deadline expired")
	if err != nil {
		return fail(err)
	}
	s.removeFromSearch(ctx, ids)

	s.logger.Info().Int("deleted", deleted).Msg("Expired jobs cleaned up")
	return ok(map[string]int{"deleted": deleted})
}

// DeleteBulk deletes jobs matching the filter. Hard deletion requires a
// non-empty reason; both modes remove the documents from the search
// index, and search failures do not fail the delete. The impact counts
// are returned so callers can show what was affected.
func (s *Service) DeleteBulk(ctx context.Context, filter interfaces.JobFilter, mode DeleteMode, deletedBy, reason string) Envelope {
	jobs := s.storage.JobStorage()

	impact, err := jobs.ImpactAnalysis(ctx, filter)
	if err != nil {
		return fail(fmt.Errorf("impact analysis failed: %w", err))
	}

	matched, err := jobs.ListJobs(ctx, filter)
	if err != nil {
		return fail(err)
	}
	ids := make([]string, 0, len(matched))
	for _, job := range matched {
		ids = append(ids, job.ID)
	}

	var deleted int
	switch mode {
	case DeleteHard:
		deleted, err = jobs.HardDeleteJobs(ctx, ids, reason)
	case DeleteSoft, "":
		deleted, err = jobs.SoftDeleteJobs(ctx, ids, deletedBy, reason)
	default:
		return fail(fmt.Errorf("invalid delete mode: %s", mode))
	}
	if err != nil {
		return fail(err)
	}
	s.removeFromSearch(ctx, ids)

	s.logger.Info().
		Str("mode", string(mode)).
		Int("deleted", deleted).
		Str("reason", reason).
		Msg("Bulk delete completed")
	return ok(map[string]interface{}{
		"deleted": deleted,
		"impact":  impact,
	})
}

// Restore clears the soft-delete triple on the given jobs and re-indexes
// them.
func (s *Service) Restore(ctx context.Context, ids []string) Envelope {
	jobs := s.storage.JobStorage()
	restored, err := jobs.RestoreJobs(ctx, ids)
	if err != nil {
		return fail(err)
	}

	if s.search.Enabled() {
		var docs []*models.Job
		for _, id := range ids {
			if job, err := jobs.GetJob(ctx, id); err == nil {
				docs = append(docs, job)
			}
		}
		if err := s.search.IndexJobs(ctx, docs); err != nil {
			s.logger.Warn().Err(err).Msg("Search re-index after restore failed")
		}
	}

	return ok(map[string]int{"restored": restored})
}

// LinkResult is one link validation outcome.
type LinkResult struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// ValidateLinks checks apply-URL reachability for the given job IDs.
// Results are cached in the KV store for a day when cache is true.
func (s *Service) ValidateLinks(ctx context.Context, ids []string, cache bool) Envelope {
	jobs := s.storage.JobStorage()
	kv := s.storage.KeyValueStorage()

	results := make([]LinkResult, 0, len(ids))
	for _, id := range ids {
		job, err := jobs.GetJob(ctx, id)
		if err != nil {
			results = append(results, LinkResult{Error: fmt.Sprintf("job %s not found", id)})
			continue
		}

		cacheKey := "linkcheck:" + job.CanonicalHash
		if cache {
			if hit, err := kv.Get(ctx, cacheKey); err == nil && hit == "ok" {
				results = append(results, LinkResult{URL: job.ApplyURL, Status: 200, OK: true})
				continue
			}
		}

		status, err := s.client.ValidateLink(ctx, job.ApplyURL)
		result := LinkResult{URL: job.ApplyURL, Status: status, OK: err == nil && status < 400}
		if err != nil {
			result.Error = err.Error()
		}
		if cache && result.OK {
			if err := kv.Set(ctx, cacheKey, "ok"); err != nil {
				s.logger.Debug().Err(err).Msg("Link check cache write failed")
			}
		}
		results = append(results, result)
	}

	return ok(results)
}

// SyncSearchIndex pushes all active jobs into the search index. With
// execute false it reports what would be synced without writing.
func (s *Service) SyncSearchIndex(ctx context.Context, execute bool) Envelope {
	active, err := s.storage.JobStorage().ListJobs(ctx, interfaces.JobFilter{})
	if err != nil {
		return fail(err)
	}
	if !execute {
		return ok(map[string]interface{}{"would_sync": len(active), "dry_run": true})
	}
	if !s.search.Enabled() {
		return fail(fmt.Errorf("search backend is not configured"))
	}
	if err := s.search.IndexJobs(ctx, active); err != nil {
		return fail(err)
	}
	return ok(map[string]int{"synced": len(active)})
}

// EnrichPending runs the enrichment service over jobs lacking an
// enrichment block.
func (s *Service) EnrichPending(ctx context.Context, limit int) Envelope {
	if s.enricher == nil {
		return fail(fmt.Errorf("enrichment service is not configured"))
	}
	enriched, err := s.enricher.EnrichPending(ctx, limit)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]int{"enriched": enriched})
}

// removeFromSearch deletes documents best-effort.
func (s *Service) removeFromSearch(ctx context.Context, ids []string) {
	if !s.search.Enabled() {
		return
	}
	if err := s.search.DeleteJobs(ctx, ids); err != nil {
		s.logger.Warn().Err(err).Int("ids", len(ids)).Msg("Search index removal failed")
	}
}
