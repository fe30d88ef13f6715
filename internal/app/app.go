// Package app is the composition root: it constructs every collaborator
// once at startup and hands them to the orchestrator and admin service.
// Nothing in the process relies on package-level singletons.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/admin"
	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/enrich"
	"github.com/aidjobs/harvester/internal/extract"
	"github.com/aidjobs/harvester/internal/extract/plugins"
	"github.com/aidjobs/harvester/internal/fetch"
	"github.com/aidjobs/harvester/internal/geocode"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/normalize"
	"github.com/aidjobs/harvester/internal/orchestrator"
	"github.com/aidjobs/harvester/internal/services/llm"
	"github.com/aidjobs/harvester/internal/services/search"
	badgerstore "github.com/aidjobs/harvester/internal/storage/badger"
)

// App holds the wired application.
type App struct {
	Config       *common.Config
	Storage      interfaces.StorageManager
	Orchestrator *orchestrator.Orchestrator
	Admin        *admin.Service

	logger arbor.ILogger
}

// New builds the full dependency graph. The LLM provider is optional: a
// missing API key disables AI extraction and enrichment but the crawler
// still runs.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	storage, err := badgerstore.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := fetch.NewClient(cfg.Fetch, logger)
	rss := fetch.NewRSSFetcher(client, logger)
	api := fetch.NewAPIFetcher(client, storage.KeyValueStorage(), logger)

	var llmService interfaces.LLMService
	if cfg.LLM.APIKey != "" || cfg.LLM.AnthropicAPIKey != "" {
		llmService, err = llm.NewLLMService(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
		}
	} else {
		logger.Warn().Msg("No LLM API key configured, AI extraction and enrichment disabled")
	}

	var ai *extract.AIExtractor
	if llmService != nil {
		ai = extract.NewAIExtractor(llmService, storage.KeyValueStorage(), cfg.Extract.AIMaxCalls, logger)
	}

	snapshots := extract.NewSnapshotWriter(cfg.Storage.SnapshotPath, cfg.Storage.UseStorage, cfg.Extract.PipelineVersion, logger)
	pipeline := extract.NewPipeline(
		extract.NewClassifier(nil),
		plugins.DefaultRegistry(),
		ai,
		snapshots,
		cfg.Extract.PipelineVersion,
		logger,
	)

	taxonomy := normalize.NewCache(storage.KeyValueStorage(), logger)
	normalizer := normalize.NewNormalizer(taxonomy)
	geocoder := geocode.NewGeocoder(cfg.Geocode, normalizer, logger)
	searchClient := search.NewClient(cfg.Search, logger)

	var enricher *enrich.Service
	if llmService != nil {
		enricher = enrich.NewService(llmService, storage.JobStorage(), storage.EnrichmentHistoryStorage(), logger)
	}

	deps := orchestrator.Deps{
		Storage:  storage,
		Client:   client,
		RSS:      rss,
		API:      api,
		Pipeline: pipeline,
		Geocoder: geocoder,
		Search:   searchClient,
	}
	if enricher != nil {
		deps.Enricher = enricher
	}
	orch := orchestrator.New(cfg, deps, logger)

	adminService := admin.NewService(storage, orch, client, searchClient, enricher, logger)

	return &App{
		Config:       cfg,
		Storage:      storage,
		Orchestrator: orch,
		Admin:        adminService,
		logger:       logger,
	}, nil
}

// Close releases the storage layer.
func (a *App) Close() {
	if err := a.Storage.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Storage close failed")
	}
}
