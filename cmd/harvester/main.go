package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/admin"
	"github.com/aidjobs/harvester/internal/app"
	"github.com/aidjobs/harvester/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	runSourceID  = flag.String("run-source", "", "Crawl one source by ID and exit")
	runDue       = flag.Bool("run-due", false, "Run one scheduler tick and exit")
	runEnrich    = flag.Bool("enrich", false, "Enrich all pending jobs and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Harvester version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover a config file when none was given.
	if len(configFiles) == 0 {
		if _, err := os.Stat("harvester.toml"); err == nil {
			configFiles = append(configFiles, "harvester.toml")
		}
	}

	// Startup order: config, logger, banner, application.
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("log_level", config.Logging.Level).
		Bool("scheduler_disabled", config.Scheduler.Disabled).
		Msg("Configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One-shot administrative modes exit without starting the loop.
	if *runSourceID != "" {
		printEnvelope(application.Admin.RunSource(ctx, *runSourceID))
		return
	}
	if *runDue {
		printEnvelope(application.Admin.RunDue(ctx))
		return
	}
	if *runEnrich {
		printEnvelope(application.Admin.EnrichPending(ctx, 0))
		return
	}

	if err := application.Orchestrator.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start orchestrator")
		os.Exit(1)
	}

	logger.Info().Msg("Harvester running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
	cancel()
	application.Orchestrator.Stop()
	logger.Info().Msg("Harvester stopped")
}

func printEnvelope(env admin.Envelope) {
	if env.Status == "ok" {
		fmt.Printf("ok: %v\n", env.Data)
		return
	}
	fmt.Printf("error: %s\n", env.Error)
	os.Exit(1)
}
