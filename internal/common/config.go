package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Defaults come from
// NewDefaultConfig, then TOML files, then environment variables; later
// layers override earlier ones.
type Config struct {
	Environment string `toml:"environment"` // "dev" or "production"

	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Fetch     FetchConfig     `toml:"fetch"`
	Extract   ExtractConfig   `toml:"extract"`
	LLM       LLMConfig       `toml:"llm"`
	Search    SearchConfig    `toml:"search"`
	Geocode   GeocodeConfig   `toml:"geocode"`
}

// StorageConfig holds the embedded store and snapshot paths.
type StorageConfig struct {
	Badger       BadgerConfig `toml:"badger"`
	SnapshotPath string       `toml:"snapshot_path"`
	// DatabaseURL is accepted for the relational collaborator store; HTTPS
	// URLs are rejected at load time.
	DatabaseURL string `toml:"database_url"`
	// UseStorage gates snapshot persistence (EXTRACTION_USE_STORAGE).
	UseStorage bool `toml:"use_storage"`
	// ShadowMode writes upserts to a sibling table for comparison.
	ShadowMode bool `toml:"shadow_mode"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// LoggingConfig controls the arbor logger.
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SchedulerConfig controls the orchestrator loop.
type SchedulerConfig struct {
	Disabled        bool          `toml:"disabled"`
	TickInterval    time.Duration `toml:"tick_interval"`     // default 5m
	SourcesPerTick  int           `toml:"sources_per_tick"`  // default 20
	MaxConcurrent   int           `toml:"max_concurrent"`    // default 3
	LockStaleAfter  time.Duration `toml:"lock_stale_after"`  // default 10m
	AutoPauseAfter  int           `toml:"auto_pause_after"`  // consecutive failures, default 5
	LoopErrorLimit  int           `toml:"loop_error_limit"`  // default 5
}

// FetchConfig controls the polite fetch layer.
type FetchConfig struct {
	UserAgent         string        `toml:"user_agent"`
	RequestTimeout    time.Duration `toml:"request_timeout"`     // default 30s
	MaxBodyKB         int           `toml:"max_body_kb"`         // default 1024
	MaxRedirects      int           `toml:"max_redirects"`       // default 3
	RequestsPerMinute int           `toml:"requests_per_minute"` // per-host default
	Burst             int           `toml:"burst"`
	RobotsTTL         time.Duration `toml:"robots_ttl"`       // default 24h
	BrowserTimeout    time.Duration `toml:"browser_timeout"`  // default 30s
	BrowserAllowlist  []string      `toml:"browser_allowlist"`
	LinkTimeout       time.Duration `toml:"link_timeout"` // link validation, default 10s
}

// ExtractConfig controls the extraction pipeline.
type ExtractConfig struct {
	AIMaxCalls      int    `toml:"ai_max_calls"` // global AI fallback budget, default 2000
	PipelineVersion string `toml:"pipeline_version"`
}

// LLMConfig configures the AI providers.
type LLMConfig struct {
	Provider        string        `toml:"provider"` // "openrouter" or "claude"
	APIKey          string        `toml:"api_key"`
	Model           string        `toml:"model"`
	Timeout         time.Duration `toml:"timeout"`     // default 30s
	Temperature     float64       `toml:"temperature"` // default 0.1 for extraction
	AnthropicAPIKey string        `toml:"anthropic_api_key"`
}

// SearchConfig configures the Meilisearch collaborator.
type SearchConfig struct {
	URL       string `toml:"url"`
	APIKey    string `toml:"api_key"`
	JobsIndex string `toml:"jobs_index"`
}

// GeocodeConfig configures the Nominatim geocoder.
type GeocodeConfig struct {
	NominatimURL   string        `toml:"nominatim_url"`
	GoogleAPIKey   string        `toml:"google_api_key"` // optional fallback
	RequestTimeout time.Duration `toml:"request_timeout"`
	CachePath      string        `toml:"cache_path"`
}

// NewDefaultConfig creates a configuration with default values. Technical
// parameters are hardcoded here for production stability; only user-facing
// settings belong in harvester.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "dev",
		Storage: StorageConfig{
			Badger:       BadgerConfig{Path: "./data"},
			SnapshotPath: "./snapshots",
			UseStorage:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Scheduler: SchedulerConfig{
			TickInterval:   5 * time.Minute,
			SourcesPerTick: 20,
			MaxConcurrent:  3,
			LockStaleAfter: 10 * time.Minute,
			AutoPauseAfter: 5,
			LoopErrorLimit: 5,
		},
		Fetch: FetchConfig{
			UserAgent:         "aidjobs-harvester/1.0 (+https://aidjobs.app/bot)",
			RequestTimeout:    30 * time.Second,
			MaxBodyKB:         1024,
			MaxRedirects:      3,
			RequestsPerMinute: 30,
			Burst:             5,
			RobotsTTL:         24 * time.Hour,
			BrowserTimeout:    30 * time.Second,
			LinkTimeout:       10 * time.Second,
		},
		Extract: ExtractConfig{
			AIMaxCalls:      2000,
			PipelineVersion: "v2",
		},
		LLM: LLMConfig{
			Provider:    "openrouter",
			Model:       "anthropic/claude-3.5-haiku",
			Timeout:     30 * time.Second,
			Temperature: 0.1,
		},
		Search: SearchConfig{
			JobsIndex: "jobs",
		},
		Geocode: GeocodeConfig{
			NominatimURL:   "https://nominatim.openstreetmap.org",
			RequestTimeout: 10 * time.Second,
			CachePath:      "./data/geocode",
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each TOML file in
// order, then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps the documented environment variables onto the
// configuration. Environment always wins over file values.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("AIDJOBS_ENV"); v != "" {
		c.Environment = v
	}
	dbURL := os.Getenv("SUPABASE_DB_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL != "" {
		if strings.HasPrefix(dbURL, "https://") {
			return fmt.Errorf("database URL must be a PostgreSQL connection string, not an HTTPS URL")
		}
		c.Storage.DatabaseURL = dbURL
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("MEILISEARCH_URL"); v != "" {
		c.Search.URL = v
	}
	if v := os.Getenv("MEILISEARCH_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("MEILI_JOBS_INDEX"); v != "" {
		c.Search.JobsIndex = v
	}
	if v := os.Getenv("AI_EXTRACTION_MAX_CALLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AI_EXTRACTION_MAX_CALLS: %w", err)
		}
		c.Extract.AIMaxCalls = n
	}
	if v := os.Getenv("SNAPSHOT_PATH"); v != "" {
		c.Storage.SnapshotPath = v
	}
	if v := os.Getenv("EXTRACTION_USE_STORAGE"); v != "" {
		c.Storage.UseStorage = isTruthy(v)
	}
	if v := os.Getenv("EXTRACTION_SHADOW_MODE"); v != "" {
		c.Storage.ShadowMode = isTruthy(v)
	}
	if v := os.Getenv("AIDJOBS_DISABLE_SCHEDULER"); v != "" {
		c.Scheduler.Disabled = isTruthy(v)
	}
	return nil
}

// IsProduction reports whether the app runs in production mode. Dev-mode
// error responses include internals; production responses mask them.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
