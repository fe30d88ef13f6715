package badger

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
)

func TestKVStorageRoundTrip(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	kv := NewKVStorage(db, logger)
	ctx := context.Background()

	if _, err := kv.Get(ctx, "missing"); err == nil {
		t.Error("Get(missing) returned no error")
	}

	if err := kv.Set(ctx, "secret:API_TOKEN", "tok-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, err := kv.Get(ctx, "secret:API_TOKEN"); err != nil || got != "tok-1" {
		t.Errorf("Get() = %q, %v", got, err)
	}

	// Set overwrites in place.
	if err := kv.Set(ctx, "secret:API_TOKEN", "tok-2"); err != nil {
		t.Fatal(err)
	}
	if got, _ := kv.Get(ctx, "secret:API_TOKEN"); got != "tok-2" {
		t.Errorf("Get() after overwrite = %q", got)
	}

	if err := kv.Delete(ctx, "secret:API_TOKEN"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := kv.Get(ctx, "secret:API_TOKEN"); err == nil {
		t.Error("Get() after delete returned no error")
	}

	// Deleting an absent key is a no-op.
	if err := kv.Delete(ctx, "never-stored"); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}
}
