package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
	badgerstore "github.com/aidjobs/harvester/internal/storage/badger"
)

func newTestOrchestrator(t *testing.T, cfg *common.Config) *Orchestrator {
	t.Helper()
	logger := arbor.NewLogger()
	storage, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return New(cfg, Deps{Storage: storage}, logger)
}

func testSource(id string) *models.Source {
	return &models.Source{
		ID:       id,
		OrgName:  "Example Relief",
		BaseURL:  "https://jobs.example.org",
		Kind:     models.SourceKindHTML,
		Category: models.CategoryNGO,
		Status:   models.SourceStatusActive,
	}
}

func TestRecordRunAutoPauseAtExactThreshold(t *testing.T) {
	o := newTestOrchestrator(t, common.NewDefaultConfig())
	ctx := context.Background()
	source := testSource("src-pause")

	failed := crawlOutcome{status: models.CrawlStatusFail, failed: true, message: "server error"}

	for i := 1; i <= 4; i++ {
		o.recordRun(ctx, source, failed, time.Second)
		if source.Status != models.SourceStatusActive {
			t.Fatalf("source paused after %d failures, want active until 5", i)
		}
	}

	o.recordRun(ctx, source, failed, time.Second)

	if source.Status != models.SourceStatusPaused {
		t.Fatalf("Status = %q after 5 consecutive failures, want paused", source.Status)
	}
	if !strings.Contains(source.LastMessage, "auto-paused") {
		t.Errorf("LastMessage = %q, want auto-pause note", source.LastMessage)
	}
	// The breaker survives the save: a later pass must not schedule it.
	saved, err := o.storage.SourceStorage().GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetSource() error = %v", err)
	}
	if saved.Status != models.SourceStatusPaused {
		t.Errorf("persisted Status = %q, want paused", saved.Status)
	}
	if saved.Eligible(time.Now().Add(365 * 24 * time.Hour)) {
		t.Error("paused source reports eligible for scheduling")
	}
}

func TestRecordRunAutoPauseUsesConfiguredThreshold(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Scheduler.AutoPauseAfter = 2
	o := newTestOrchestrator(t, cfg)
	ctx := context.Background()
	source := testSource("src-pause-cfg")

	failed := crawlOutcome{status: models.CrawlStatusFail, failed: true, message: "server error"}

	o.recordRun(ctx, source, failed, time.Second)
	if source.Status != models.SourceStatusActive {
		t.Fatal("source paused after 1 failure with threshold 2")
	}
	o.recordRun(ctx, source, failed, time.Second)
	if source.Status != models.SourceStatusPaused {
		t.Fatalf("Status = %q after 2 failures with threshold 2, want paused", source.Status)
	}
}

func TestRecordRunNotModifiedLeavesStreaksUntouched(t *testing.T) {
	o := newTestOrchestrator(t, common.NewDefaultConfig())
	ctx := context.Background()

	source := testSource("src-304")
	source.ConsecutiveFailures = 2
	source.ConsecutiveNoChange = 3

	o.recordRun(ctx, source, crawlOutcome{status: models.CrawlStatusOK, notModified: true, message: "not modified"}, time.Second)

	if source.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2 untouched", source.ConsecutiveFailures)
	}
	if source.ConsecutiveNoChange != 3 {
		t.Errorf("ConsecutiveNoChange = %d, want 3 untouched", source.ConsecutiveNoChange)
	}
	if source.LastStatus != models.CrawlStatusOK {
		t.Errorf("LastStatus = %q, want ok", source.LastStatus)
	}
	if source.Status != models.SourceStatusActive {
		t.Errorf("Status = %q, want active", source.Status)
	}
	if !source.LastSuccessAt.IsZero() {
		t.Errorf("LastSuccessAt = %v, want untouched by a conditional hit", source.LastSuccessAt)
	}
	if source.NextRunAt.IsZero() {
		t.Error("NextRunAt not scheduled after a conditional hit")
	}
}

type stubEnricher struct {
	calls    int
	lastCap  int
	enriched int
	err      error
}

func (s *stubEnricher) EnrichPending(ctx context.Context, limit int) (int, error) {
	s.calls++
	s.lastCap = limit
	return s.enriched, s.err
}

func TestEnrichTickRunsBatch(t *testing.T) {
	logger := arbor.NewLogger()
	stub := &stubEnricher{enriched: 3}
	o := New(common.NewDefaultConfig(), Deps{Enricher: stub}, logger)

	o.EnrichTick(context.Background())

	if stub.calls != 1 {
		t.Fatalf("EnrichPending called %d times, want 1", stub.calls)
	}
	if stub.lastCap != enrichBatchSize {
		t.Errorf("batch limit = %d, want %d", stub.lastCap, enrichBatchSize)
	}
}

func TestEnrichTickWithoutEnricherIsNoop(t *testing.T) {
	o := New(common.NewDefaultConfig(), Deps{}, arbor.NewLogger())
	o.EnrichTick(context.Background())
}
