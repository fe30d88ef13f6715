package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// FailedInsertStorage implements the FailedInsertStorage interface for
// Badger (the extraction_logs collaborator table).
type FailedInsertStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFailedInsertStorage creates a new FailedInsertStorage instance
func NewFailedInsertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FailedInsertStorage {
	return &FailedInsertStorage{
		db:     db,
		logger: logger,
	}
}

func (s *FailedInsertStorage) RecordFailure(ctx context.Context, failure *models.FailedInsert) error {
	if failure.ID == "" {
		failure.ID = common.NewFailureID()
	}
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(failure.ID, failure); err != nil {
		return fmt.Errorf("failed to record insert failure: %w", err)
	}
	return nil
}

func (s *FailedInsertStorage) ListUnresolved(ctx context.Context, limit int) ([]*models.FailedInsert, error) {
	q := badgerhold.Where("Resolved").Eq(false)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var failures []models.FailedInsert
	if err := s.db.Store().Find(&failures, q); err != nil {
		return nil, fmt.Errorf("failed to list unresolved failures: %w", err)
	}

	result := make([]*models.FailedInsert, len(failures))
	for i := range failures {
		result[i] = &failures[i]
	}
	return result, nil
}
