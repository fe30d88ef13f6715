package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// SourceStorage implements the SourceStorage interface for Badger
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SourceStorage) SaveSource(ctx context.Context, source *models.Source) error {
	if source.ID == "" {
		return fmt.Errorf("source ID is required")
	}
	if err := source.Validate(); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}

	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now
	if source.Status == "" {
		source.Status = models.SourceStatusActive
	}

	if err := s.db.Store().Upsert(source.ID, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	var source models.Source
	if err := s.db.Store().Get(id, &source); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("source not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (s *SourceStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	var sources []models.Source
	if err := s.db.Store().Find(&sources, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	result := make([]*models.Source, 0, len(sources))
	for i := range sources {
		if sources[i].DeletedAt.IsZero() {
			result = append(result, &sources[i])
		}
	}
	return result, nil
}

// DueSources returns active sources with next_run <= now ordered nulls
// first, capped at limit.
func (s *SourceStorage) DueSources(ctx context.Context, now time.Time, limit int) ([]*models.Source, error) {
	var sources []models.Source
	err := s.db.Store().Find(&sources, badgerhold.Where("Status").Eq(models.SourceStatusActive).Index("Status"))
	if err != nil {
		return nil, fmt.Errorf("failed to query due sources: %w", err)
	}

	due := make([]*models.Source, 0, len(sources))
	for i := range sources {
		if sources[i].Eligible(now) {
			due = append(due, &sources[i])
		}
	}

	// Never-run sources (zero next_run) schedule before everything else.
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].NextRunAt, due[j].NextRunAt
		if a.IsZero() != b.IsZero() {
			return a.IsZero()
		}
		return a.Before(b)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *SourceStorage) DeleteSource(ctx context.Context, id string) error {
	source, err := s.GetSource(ctx, id)
	if err != nil {
		return err
	}
	// Soft delete; jobs keep their denormalized org name.
	source.DeletedAt = time.Now()
	source.Status = models.SourceStatusPaused
	if err := s.db.Store().Upsert(source.ID, source); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}
