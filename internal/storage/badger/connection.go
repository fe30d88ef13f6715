package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/aidjobs/harvester/internal/common"
)

// BadgerDB owns the embedded store shared by every storage type.
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// badgerLogAdapter routes Badger's internal logging through arbor. Badger
// is chatty at info level during compaction, so info and below map to
// debug.
type badgerLogAdapter struct {
	logger arbor.ILogger
}

func (a badgerLogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error().Msg(badgerLogLine(format, args...))
}

func (a badgerLogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn().Msg(badgerLogLine(format, args...))
}

func (a badgerLogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug().Msg(badgerLogLine(format, args...))
}

func (a badgerLogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug().Msg(badgerLogLine(format, args...))
}

func badgerLogLine(format string, args ...interface{}) string {
	return "badger: " + strings.TrimSpace(fmt.Sprintf(format, args...))
}

// NewBadgerDB opens the embedded database, creating its directory if
// needed. reset_on_startup wipes the previous database first.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Warn().Str("path", config.Path).Msg("Resetting database on startup")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	bopts := badgerdb.DefaultOptions(config.Path)
	bopts.Logger = badgerLogAdapter{logger: logger}

	options := badgerhold.DefaultOptions
	options.Options = bopts

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database ready")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
