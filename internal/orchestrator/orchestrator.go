// Package orchestrator runs the crawl fleet: a cron-driven tick loop
// that picks due sources, crawls them under per-source locks through a
// bounded worker gate, and adapts each source's cadence from its run
// history.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/extract"
	"github.com/aidjobs/harvester/internal/fetch"
	"github.com/aidjobs/harvester/internal/geocode"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/services/search"
)

// enrichBatchSize caps the jobs enriched per scheduler pass.
const enrichBatchSize = 50

// Enricher backfills enrichment blocks for jobs the crawler stored
// without one.
type Enricher interface {
	EnrichPending(ctx context.Context, limit int) (int, error)
}

// Orchestrator owns the scheduling loop and the shared crawl
// dependencies. All collaborators are constructed at startup and passed
// in; nothing here is package-level state.
type Orchestrator struct {
	cfg      *common.Config
	storage  interfaces.StorageManager
	client   *fetch.Client
	rss      *fetch.RSSFetcher
	api      *fetch.APIFetcher
	pipeline *extract.Pipeline
	geocoder *geocode.Geocoder
	search   *search.Client
	enricher Enricher
	logger   arbor.ILogger

	cron      *cron.Cron
	sem       chan struct{}
	wg        sync.WaitGroup
	running   atomic.Bool
	enriching atomic.Bool

	rngMu sync.Mutex
	rng   *rand.Rand

	// Loop-error breaker: after the limit, ticks are suppressed for one
	// extra interval, doubling the effective tick period.
	loopErrors   int
	suspendUntil time.Time
}

// Deps bundles the orchestrator's collaborators. Enricher is optional:
// without an LLM provider the crawl loop runs and enrichment is skipped.
type Deps struct {
	Storage  interfaces.StorageManager
	Client   *fetch.Client
	RSS      *fetch.RSSFetcher
	API      *fetch.APIFetcher
	Pipeline *extract.Pipeline
	Geocoder *geocode.Geocoder
	Search   *search.Client
	Enricher Enricher
}

// New creates the orchestrator with a worker gate sized from config.
func New(cfg *common.Config, deps Deps, logger arbor.ILogger) *Orchestrator {
	maxConcurrent := cfg.Scheduler.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Orchestrator{
		cfg:      cfg,
		storage:  deps.Storage,
		client:   deps.Client,
		rss:      deps.RSS,
		api:      deps.API,
		pipeline: deps.Pipeline,
		geocoder: deps.Geocoder,
		search:   deps.Search,
		enricher: deps.Enricher,
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the tick loop. Disabled schedulers return immediately so
// administrative one-shot runs still work.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.cfg.Scheduler.Disabled {
		o.logger.Info().Msg("Scheduler disabled, crawls run on demand only")
		return nil
	}

	o.running.Store(true)
	o.cron = cron.New()
	_, err := o.cron.AddFunc("@every "+o.cfg.Scheduler.TickInterval.String(), func() {
		o.Tick(ctx)
	})
	if err != nil {
		return err
	}
	if o.enricher != nil {
		_, err = o.cron.AddFunc("@every "+o.cfg.Scheduler.TickInterval.String(), func() {
			o.EnrichTick(ctx)
		})
		if err != nil {
			return err
		}
	}
	o.cron.Start()

	o.logger.Info().
		Dur("tick_interval", o.cfg.Scheduler.TickInterval).
		Int("max_concurrent", cap(o.sem)).
		Msg("Orchestrator started")
	return nil
}

// Stop flips the running flag, halts the cron loop, and drains in-flight
// crawls. Running crawls complete; no new ones start.
func (o *Orchestrator) Stop() {
	o.running.Store(false)
	if o.cron != nil {
		stopCtx := o.cron.Stop()
		<-stopCtx.Done()
	}
	o.wg.Wait()
	o.logger.Info().Msg("Orchestrator stopped")
}

// Tick runs one scheduling pass: select due sources and crawl them
// through the worker gate. Tick errors feed the loop-error breaker.
func (o *Orchestrator) Tick(ctx context.Context) {
	if !o.running.Load() && !o.cfg.Scheduler.Disabled {
		return
	}
	if time.Now().Before(o.suspendUntil) {
		o.logger.Debug().Msg("Tick suppressed by loop-error backoff")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Msgf("Tick panicked: %v", r)
			o.noteLoopError()
		}
	}()

	due, err := o.storage.SourceStorage().DueSources(ctx, time.Now().UTC(), o.cfg.Scheduler.SourcesPerTick)
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to select due sources")
		o.noteLoopError()
		return
	}
	o.loopErrors = 0

	if len(due) == 0 {
		return
	}
	o.logger.Info().Int("due", len(due)).Msg("Tick scheduling due sources")

	for _, source := range due {
		if !o.running.Load() && !o.cfg.Scheduler.Disabled {
			break
		}
		src := source
		o.sem <- struct{}{}
		o.wg.Add(1)
		go func() {
			defer func() {
				<-o.sem
				o.wg.Done()
			}()
			if err := o.CrawlSource(ctx, src); err != nil {
				o.logger.Error().Err(err).Str("source_id", src.ID).Msg("Crawl failed")
			}
		}()
	}
}

// EnrichTick enriches one batch of jobs that were stored without an
// enrichment block. A batch already in flight makes this pass a no-op,
// so slow LLM calls never stack up behind the cron.
func (o *Orchestrator) EnrichTick(ctx context.Context) {
	if o.enricher == nil {
		return
	}
	if !o.enriching.CompareAndSwap(false, true) {
		o.logger.Debug().Msg("Enrichment batch still in flight, skipping pass")
		return
	}
	defer o.enriching.Store(false)

	enriched, err := o.enricher.EnrichPending(ctx, enrichBatchSize)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Enrichment pass failed")
		return
	}
	if enriched > 0 {
		o.logger.Info().Int("enriched", enriched).Msg("Enrichment pass completed")
	}
}

// noteLoopError counts consecutive tick failures; at the limit, the next
// tick is suppressed, temporarily doubling the interval.
func (o *Orchestrator) noteLoopError() {
	o.loopErrors++
	if o.loopErrors >= o.cfg.Scheduler.LoopErrorLimit {
		o.suspendUntil = time.Now().Add(o.cfg.Scheduler.TickInterval)
		o.loopErrors = 0
		o.logger.Warn().
			Dur("suspend", o.cfg.Scheduler.TickInterval).
			Msg("Loop-error limit reached, doubling tick interval once")
	}
}
