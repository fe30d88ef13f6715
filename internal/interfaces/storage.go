package interfaces

import (
	"context"
	"time"

	"github.com/aidjobs/harvester/internal/models"
)

// UpsertResult aggregates the outcome of one batch upsert.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Changes returns inserted + updated.
func (r UpsertResult) Changes() int {
	return r.Inserted + r.Updated
}

// Add accumulates another result into this one.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// ImpactCounts gates destructive operations: callers inspect the blast
// radius of a filter before deleting.
type ImpactCounts struct {
	TotalJobs         int `json:"total_jobs"`
	ActiveJobs        int `json:"active_jobs"`
	Shortlists        int `json:"shortlists"`
	EnrichmentReviews int `json:"enrichment_reviews"`
	EnrichmentHistory int `json:"enrichment_history"`
	GroundTruth       int `json:"ground_truth"`
}

// JobFilter selects jobs for bulk operations.
type JobFilter struct {
	SourceID       string
	OrgName        string
	DeadlineBefore time.Time
	IncludeDeleted bool
	IDs            []string
}

// SourceStorage persists crawl sources.
type SourceStorage interface {
	SaveSource(ctx context.Context, source *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	// DueSources returns active sources with next_run <= now, nulls first,
	// capped at limit.
	DueSources(ctx context.Context, now time.Time, limit int) ([]*models.Source, error)
	DeleteSource(ctx context.Context, id string) error
}

// JobStorage persists deduplicated job postings.
type JobStorage interface {
	// UpsertJob inserts or updates keyed on canonical hash. A matching
	// soft-deleted row is restored and counted as inserted.
	UpsertJob(ctx context.Context, job *models.Job) (UpsertResult, error)
	// UpsertShadowJob writes to the shadow sibling table instead of the
	// production table. Used for comparison runs; never indexed.
	UpsertShadowJob(ctx context.Context, job *models.Job) (UpsertResult, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobByCanonicalHash(ctx context.Context, hash string) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	// SoftDeleteJobs sets the delete triple; reversible.
	SoftDeleteJobs(ctx context.Context, ids []string, deletedBy, reason string) (int, error)
	// HardDeleteJobs removes rows permanently; requires a non-empty reason.
	HardDeleteJobs(ctx context.Context, ids []string, reason string) (int, error)
	RestoreJobs(ctx context.Context, ids []string) (int, error)
	SaveEnrichment(ctx context.Context, jobID string, enrichment *models.Enrichment) error
	// JobsNeedingEnrichment returns active jobs without a current
	// enrichment block.
	JobsNeedingEnrichment(ctx context.Context, limit int) ([]*models.Job, error)
	ImpactAnalysis(ctx context.Context, filter JobFilter) (*ImpactCounts, error)
}

// CrawlLogStorage persists append-only crawl run records.
type CrawlLogStorage interface {
	AppendCrawlLog(ctx context.Context, log *models.CrawlLog) error
	GetCrawlLogs(ctx context.Context, sourceID string, limit int) ([]*models.CrawlLog, error)
}

// LockStorage provides per-source distributed locks.
type LockStorage interface {
	// AcquireLock atomically inserts a lock for the source. Returns false
	// without error when the lock is already held and not stale.
	AcquireLock(ctx context.Context, sourceID string, staleAfter time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, sourceID string) error
}

// FailedInsertStorage records per-row insertion failures.
type FailedInsertStorage interface {
	RecordFailure(ctx context.Context, failure *models.FailedInsert) error
	ListUnresolved(ctx context.Context, limit int) ([]*models.FailedInsert, error)
}

// EnrichmentHistoryStorage snapshots prior enrichment blocks.
type EnrichmentHistoryStorage interface {
	AppendHistory(ctx context.Context, history *models.EnrichmentHistory) error
	GetHistory(ctx context.Context, jobID string) ([]*models.EnrichmentHistory, error)
}

// KeyValueStorage backs secrets, caches, and counters.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager aggregates the per-entity storages over one database.
type StorageManager interface {
	SourceStorage() SourceStorage
	JobStorage() JobStorage
	CrawlLogStorage() CrawlLogStorage
	LockStorage() LockStorage
	FailedInsertStorage() FailedInsertStorage
	EnrichmentHistoryStorage() EnrichmentHistoryStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
