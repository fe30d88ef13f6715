package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// LockStorage implements per-source distributed locks over Badger. The
// uniqueness constraint is the badgerhold key; Insert on an existing key
// fails, which gives the atomic acquire.
type LockStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLockStorage creates a new LockStorage instance
func NewLockStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LockStorage {
	return &LockStorage{
		db:     db,
		logger: logger,
	}
}

// AcquireLock atomically inserts a lock row for the source. A held lock
// older than staleAfter is reclaimed; otherwise the acquire is a silent
// skip for this tick.
func (s *LockStorage) AcquireLock(ctx context.Context, sourceID string, staleAfter time.Duration) (bool, error) {
	lock := &models.Lock{
		SourceID:   sourceID,
		AcquiredAt: time.Now(),
	}

	err := s.db.Store().Insert(sourceID, lock)
	if err == nil {
		return true, nil
	}
	if err != badgerhold.ErrKeyExists {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// Lock exists; reclaim only if the holder crashed.
	var existing models.Lock
	if err := s.db.Store().Get(sourceID, &existing); err != nil {
		if err == badgerhold.ErrNotFound {
			// Released between insert and get; try once more.
			if err := s.db.Store().Insert(sourceID, lock); err != nil {
				return false, nil
			}
			return true, nil
		}
		return false, fmt.Errorf("failed to inspect existing lock: %w", err)
	}

	if staleAfter > 0 && time.Since(existing.AcquiredAt) > staleAfter {
		s.logger.Warn().
			Str("source_id", sourceID).
			Str("acquired_at", existing.AcquiredAt.Format(time.RFC3339)).
			Msg("Reclaiming stale crawl lock")
		if err := s.db.Store().Upsert(sourceID, lock); err != nil {
			return false, fmt.Errorf("failed to reclaim stale lock: %w", err)
		}
		return true, nil
	}

	return false, nil
}

// ReleaseLock removes the lock row. Releasing an absent lock is a no-op.
func (s *LockStorage) ReleaseLock(ctx context.Context, sourceID string) error {
	if err := s.db.Store().Delete(sourceID, &models.Lock{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
