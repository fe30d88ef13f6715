package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db           *BadgerDB
	source       interfaces.SourceStorage
	job          interfaces.JobStorage
	crawlLog     interfaces.CrawlLogStorage
	lock         interfaces.LockStorage
	failedInsert interfaces.FailedInsertStorage
	history      interfaces.EnrichmentHistoryStorage
	kv           interfaces.KeyValueStorage
	logger       arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:           db,
		source:       NewSourceStorage(db, logger),
		job:          NewJobStorage(db, logger),
		crawlLog:     NewCrawlLogStorage(db, logger),
		lock:         NewLockStorage(db, logger),
		failedInsert: NewFailedInsertStorage(db, logger),
		history:      NewEnrichmentHistoryStorage(db, logger),
		kv:           NewKVStorage(db, logger),
		logger:       logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SourceStorage returns the Source storage interface
func (m *Manager) SourceStorage() interfaces.SourceStorage {
	return m.source
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// CrawlLogStorage returns the CrawlLog storage interface
func (m *Manager) CrawlLogStorage() interfaces.CrawlLogStorage {
	return m.crawlLog
}

// LockStorage returns the Lock storage interface
func (m *Manager) LockStorage() interfaces.LockStorage {
	return m.lock
}

// FailedInsertStorage returns the FailedInsert storage interface
func (m *Manager) FailedInsertStorage() interfaces.FailedInsertStorage {
	return m.failedInsert
}

// EnrichmentHistoryStorage returns the EnrichmentHistory storage interface
func (m *Manager) EnrichmentHistoryStorage() interfaces.EnrichmentHistoryStorage {
	return m.history
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
