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

// CrawlLogStorage implements the CrawlLogStorage interface for Badger
type CrawlLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCrawlLogStorage creates a new CrawlLogStorage instance
func NewCrawlLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CrawlLogStorage {
	return &CrawlLogStorage{
		db:     db,
		logger: logger,
	}
}

// AppendCrawlLog writes one immutable run record. Messages are truncated
// to the storage cap before writing.
func (s *CrawlLogStorage) AppendCrawlLog(ctx context.Context, log *models.CrawlLog) error {
	if log.ID == "" {
		log.ID = common.NewLogID()
	}
	if log.RanAt.IsZero() {
		log.RanAt = time.Now()
	}
	log.Message = models.TruncateMessage(log.Message, models.MaxCrawlMessageLen)

	if err := s.db.Store().Insert(log.ID, log); err != nil {
		return fmt.Errorf("failed to append crawl log: %w", err)
	}
	return nil
}

func (s *CrawlLogStorage) GetCrawlLogs(ctx context.Context, sourceID string, limit int) ([]*models.CrawlLog, error) {
	var logs []models.CrawlLog
	err := s.db.Store().Find(&logs, badgerhold.Where("SourceID").Eq(sourceID).Index("SourceID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl logs: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].RanAt.After(logs[j].RanAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	result := make([]*models.CrawlLog, len(logs))
	for i := range logs {
		result[i] = &logs[i]
	}
	return result, nil
}
