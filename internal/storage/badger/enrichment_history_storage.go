package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// EnrichmentHistoryStorage implements the EnrichmentHistoryStorage
// interface for Badger.
type EnrichmentHistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEnrichmentHistoryStorage creates a new EnrichmentHistoryStorage instance
func NewEnrichmentHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EnrichmentHistoryStorage {
	return &EnrichmentHistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *EnrichmentHistoryStorage) AppendHistory(ctx context.Context, history *models.EnrichmentHistory) error {
	if history.ID == "" {
		history.ID = common.NewHistoryID()
	}
	if history.ChangedAt.IsZero() {
		history.ChangedAt = time.Now()
	}
	if err := s.db.Store().Insert(history.ID, history); err != nil {
		return fmt.Errorf("failed to append enrichment history: %w", err)
	}
	return nil
}

func (s *EnrichmentHistoryStorage) GetHistory(ctx context.Context, jobID string) ([]*models.EnrichmentHistory, error) {
	var entries []models.EnrichmentHistory
	err := s.db.Store().Find(&entries, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get enrichment history: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ChangedAt.Before(entries[j].ChangedAt)
	})

	result := make([]*models.EnrichmentHistory, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}
