package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db       *BadgerDB
	failures interfaces.FailedInsertStorage
	logger   arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance. Validation failures are
// recorded to the failed-insert log rather than aborting the batch.
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:       db,
		failures: NewFailedInsertStorage(db, logger),
		logger:   logger,
	}
}

// validateForUpsert enforces the pre-upsert invariants: title length >= 3
// and a usable apply URL.
func validateForUpsert(job *models.Job) error {
	if len(strings.TrimSpace(job.Title)) < 3 {
		return fmt.Errorf("title too short: %q", job.Title)
	}
	applyURL := strings.TrimSpace(job.ApplyURL)
	if applyURL == "" {
		return fmt.Errorf("apply URL is empty")
	}
	if strings.HasPrefix(applyURL, "#") || strings.HasPrefix(strings.ToLower(applyURL), "javascript:") {
		return fmt.Errorf("apply URL is not navigable: %q", job.ApplyURL)
	}
	if job.CanonicalHash == "" {
		return fmt.Errorf("canonical hash is required")
	}
	return nil
}

// UpsertJob inserts or updates keyed on canonical hash. On match, mutable
// fields are refreshed and last_seen bumped; a soft-deleted match is
// restored and counted as inserted.
func (s *JobStorage) UpsertJob(ctx context.Context, job *models.Job) (interfaces.UpsertResult, error) {
	if err := validateForUpsert(job); err != nil {
		s.recordValidationFailure(ctx, job, err)
		return interfaces.UpsertResult{Skipped: 1}, nil
	}

	now := time.Now()
	existing, err := s.GetJobByCanonicalHash(ctx, job.CanonicalHash)
	if err != nil {
		return interfaces.UpsertResult{Failed: 1}, fmt.Errorf("failed to look up canonical hash: %w", err)
	}

	if existing == nil {
		if job.ID == "" {
			job.ID = common.NewJobID()
		}
		job.Status = models.JobStatusActive
		job.FirstSeenAt = now
		job.LastSeenAt = now
		if err := s.db.Store().Insert(job.ID, job); err != nil {
			return interfaces.UpsertResult{Failed: 1}, fmt.Errorf("failed to insert job: %w", err)
		}
		return interfaces.UpsertResult{Inserted: 1}, nil
	}

	restored := existing.Deleted()
	if restored {
		existing.Restore()
	}

	// Mutable fields refresh on every matching crawl.
	existing.Title = job.Title
	existing.ApplyURL = job.ApplyURL
	existing.LocationRaw = job.LocationRaw
	existing.Deadline = job.Deadline
	existing.Snippet = job.Snippet
	existing.OrgName = job.OrgName
	if job.Geo != (models.Geo{}) {
		existing.Geo = job.Geo
	}
	if job.Quality != nil {
		existing.Quality = job.Quality
	}
	if job.RawMetadata != nil {
		existing.RawMetadata = job.RawMetadata
	}
	existing.LastSeenAt = now

	if err := s.db.Store().Upsert(existing.ID, existing); err != nil {
		return interfaces.UpsertResult{Failed: 1}, fmt.Errorf("failed to update job: %w", err)
	}

	// A restore is a reappearance, not a change to a live row.
	if restored {
		return interfaces.UpsertResult{Inserted: 1}, nil
	}
	return interfaces.UpsertResult{Updated: 1}, nil
}

// UpsertShadowJob writes the job into the shadow sibling table, keyed on
// canonical hash. Shadow rows never touch the production table, so a
// pipeline change can run against live sources and be diffed offline.
func (s *JobStorage) UpsertShadowJob(ctx context.Context, job *models.Job) (interfaces.UpsertResult, error) {
	if err := validateForUpsert(job); err != nil {
		s.recordValidationFailure(ctx, job, err)
		return interfaces.UpsertResult{Skipped: 1}, nil
	}

	now := time.Now()
	var existing models.ShadowJob
	err := s.db.Store().Get(job.CanonicalHash, &existing)
	if err == badgerhold.ErrNotFound {
		row := &models.ShadowJob{
			CanonicalHash: job.CanonicalHash,
			SourceID:      job.SourceID,
			OrgName:       job.OrgName,
			Title:         job.Title,
			ApplyURL:      job.ApplyURL,
			LocationRaw:   job.LocationRaw,
			Deadline:      job.Deadline,
			Snippet:       job.Snippet,
			FirstSeenAt:   now,
			LastSeenAt:    now,
		}
		if err := s.db.Store().Insert(row.CanonicalHash, row); err != nil {
			return interfaces.UpsertResult{Failed: 1}, fmt.Errorf("failed to insert shadow job: %w", err)
		}
		return interfaces.UpsertResult{Inserted: 1}, nil
	}
	if err != nil {
		return interfaces.UpsertResult{Failed: 1}, fmt.Errorf("failed to look up shadow job: %w", err)
	}

	existing.Title = job.Title
	existing.ApplyURL = job.ApplyURL
	existing.LocationRaw = job.LocationRaw
	existing.Deadline = job.Deadline
	existing.Snippet = job.Snippet
	existing.OrgName = job.OrgName
	existing.LastSeenAt = now
	if err := s.db.Store().Upsert(existing.CanonicalHash, &existing); err != nil {
		return interfaces.UpsertResult{Failed: 1}, fmt.Errorf("failed to update shadow job: %w", err)
	}
	return interfaces.UpsertResult{Updated: 1}, nil
}

func (s *JobStorage) recordValidationFailure(ctx context.Context, job *models.Job, cause error) {
	payload := redactPayload(job)
	failure := &models.FailedInsert{
		ID:        common.NewFailureID(),
		SourceURL: job.ApplyURL,
		Operation: "validate",
		Error:     cause.Error(),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := s.failures.RecordFailure(ctx, failure); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record insert failure")
	}
}

// redactPayload serializes the job with free-text fields trimmed so the
// failed-insert log never stores full descriptions.
func redactPayload(job *models.Job) string {
	copy := *job
	if len(copy.Snippet) > 120 {
		copy.Snippet = copy.Snippet[:120] + "..."
	}
	copy.RawMetadata = nil
	data, err := json.Marshal(&copy)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// GetJobByCanonicalHash returns the non-deleted job with the hash, or the
// most recent soft-deleted one, or nil when no row matches.
func (s *JobStorage) GetJobByCanonicalHash(ctx context.Context, hash string) (*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs, badgerhold.Where("CanonicalHash").Eq(hash).Index("CanonicalHash"))
	if err != nil {
		return nil, fmt.Errorf("failed to find job by canonical hash: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	// At most one non-deleted row per hash; prefer it.
	for i := range jobs {
		if jobs[i].DeletedAt.IsZero() {
			return &jobs[i], nil
		}
	}
	latest := &jobs[0]
	for i := range jobs {
		if jobs[i].DeletedAt.After(latest.DeletedAt) {
			latest = &jobs[i]
		}
	}
	return latest, nil
}

func matchesFilter(job *models.Job, filter interfaces.JobFilter) bool {
	if !filter.IncludeDeleted && job.Deleted() {
		return false
	}
	if filter.SourceID != "" && job.SourceID != filter.SourceID {
		return false
	}
	if filter.OrgName != "" && !strings.EqualFold(job.OrgName, filter.OrgName) {
		return false
	}
	if !filter.DeadlineBefore.IsZero() {
		if job.Deadline == "" {
			return false
		}
		deadline, err := time.Parse("2006-01-02", job.Deadline)
		if err != nil || !deadline.Before(filter.DeadlineBefore) {
			return false
		}
	}
	if len(filter.IDs) > 0 {
		found := false
		for _, id := range filter.IDs {
			if job.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *JobStorage) ListJobs(ctx context.Context, filter interfaces.JobFilter) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, 0, len(jobs))
	for i := range jobs {
		if matchesFilter(&jobs[i], filter) {
			result = append(result, &jobs[i])
		}
	}
	return result, nil
}

func (s *JobStorage) SoftDeleteJobs(ctx context.Context, ids []string, deletedBy, reason string) (int, error) {
	now := time.Now()
	deleted := 0
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("Skipping soft-delete of missing job")
			continue
		}
		if job.Deleted() {
			continue
		}
		job.DeletedAt = now
		job.DeletedBy = deletedBy
		job.DeletionReason = reason
		if err := s.db.Store().Upsert(job.ID, job); err != nil {
			return deleted, fmt.Errorf("failed to soft-delete job %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *JobStorage) HardDeleteJobs(ctx context.Context, ids []string, reason string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		return 0, fmt.Errorf("hard delete requires a non-empty reason")
	}
	deleted := 0
	for _, id := range ids {
		if err := s.db.Store().Delete(id, &models.Job{}); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return deleted, fmt.Errorf("failed to hard-delete job %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *JobStorage) RestoreJobs(ctx context.Context, ids []string) (int, error) {
	restored := 0
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("Skipping restore of missing job")
			continue
		}
		if !job.Deleted() {
			continue
		}
		job.Restore()
		if err := s.db.Store().Upsert(job.ID, job); err != nil {
			return restored, fmt.Errorf("failed to restore job %s: %w", id, err)
		}
		restored++
	}
	return restored, nil
}

func (s *JobStorage) SaveEnrichment(ctx context.Context, jobID string, enrichment *models.Enrichment) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Enrichment = enrichment
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save enrichment: %w", err)
	}
	return nil
}

func (s *JobStorage) JobsNeedingEnrichment(ctx context.Context, limit int) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to query jobs needing enrichment: %w", err)
	}

	result := make([]*models.Job, 0, limit)
	for i := range jobs {
		if jobs[i].Deleted() || jobs[i].Enrichment != nil {
			continue
		}
		result = append(result, &jobs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *JobStorage) ImpactAnalysis(ctx context.Context, filter interfaces.JobFilter) (*interfaces.ImpactCounts, error) {
	withDeleted := filter
	withDeleted.IncludeDeleted = true
	jobs, err := s.ListJobs(ctx, withDeleted)
	if err != nil {
		return nil, err
	}

	counts := &interfaces.ImpactCounts{}
	historyStore := NewEnrichmentHistoryStorage(s.db, s.logger)
	for _, job := range jobs {
		counts.TotalJobs++
		if !job.Deleted() {
			counts.ActiveJobs++
		}
		if job.Enrichment != nil && job.Enrichment.LowConfidence {
			counts.EnrichmentReviews++
		}
		history, err := historyStore.GetHistory(ctx, job.ID)
		if err == nil {
			counts.EnrichmentHistory += len(history)
		}
	}
	return counts, nil
}
