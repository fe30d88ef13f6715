package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

func newTestLockStorage(t *testing.T) (interfaces.LockStorage, *BadgerDB) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLockStorage(db, logger), db
}

func TestAcquireLockIsExclusive(t *testing.T) {
	locks, _ := newTestLockStorage(t)
	ctx := context.Background()

	ok, err := locks.AcquireLock(ctx, "src-1", 10*time.Minute)
	if err != nil || !ok {
		t.Fatalf("first AcquireLock() = %v, %v", ok, err)
	}

	ok, err = locks.AcquireLock(ctx, "src-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("second AcquireLock() error = %v", err)
	}
	if ok {
		t.Error("second acquire succeeded while lock held")
	}

	// A different source is independent.
	ok, err = locks.AcquireLock(ctx, "src-2", 10*time.Minute)
	if err != nil || !ok {
		t.Errorf("AcquireLock(src-2) = %v, %v", ok, err)
	}
}

func TestReleaseLockAllowsReacquire(t *testing.T) {
	locks, _ := newTestLockStorage(t)
	ctx := context.Background()

	if ok, _ := locks.AcquireLock(ctx, "src-1", 10*time.Minute); !ok {
		t.Fatal("initial acquire failed")
	}
	if err := locks.ReleaseLock(ctx, "src-1"); err != nil {
		t.Fatalf("ReleaseLock() error = %v", err)
	}
	if ok, err := locks.AcquireLock(ctx, "src-1", 10*time.Minute); err != nil || !ok {
		t.Errorf("reacquire after release = %v, %v", ok, err)
	}

	// Releasing an absent lock is a no-op.
	if err := locks.ReleaseLock(ctx, "never-held"); err != nil {
		t.Errorf("ReleaseLock(absent) error = %v", err)
	}
}

func TestAcquireLockReclaimsStale(t *testing.T) {
	locks, db := newTestLockStorage(t)
	ctx := context.Background()

	// Simulate a crashed holder by planting an old lock row directly.
	stale := &models.Lock{SourceID: "src-1", AcquiredAt: time.Now().Add(-time.Hour)}
	if err := db.Store().Insert("src-1", stale); err != nil {
		t.Fatalf("failed to plant stale lock: %v", err)
	}

	ok, err := locks.AcquireLock(ctx, "src-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if !ok {
		t.Error("stale lock was not reclaimed")
	}

	// Zero staleAfter disables reclaim.
	if err := locks.ReleaseLock(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.Store().Insert("src-1", stale); err != nil {
		t.Fatal(err)
	}
	if ok, _ := locks.AcquireLock(ctx, "src-1", 0); ok {
		t.Error("reclaim happened with staleness checking disabled")
	}
}
