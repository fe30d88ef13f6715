package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Auth type constants for API source configurations.
const (
	AuthNone   = "none"
	AuthHeader = "header"
	AuthQuery  = "query"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthOAuth2 = "oauth2_client_credentials"
)

// Pagination mode constants.
const (
	PaginationOffset = "offset"
	PaginationPage   = "page"
	PaginationCursor = "cursor"
)

// Since format constants.
const (
	SinceISO8601 = "iso8601"
	SinceUnix    = "unix"
	SinceUnixMS  = "unix_ms"
)

var secretPlaceholderRe = regexp.MustCompile(`\{\{SECRET:([A-Za-z0-9_]+)\}\}`)

// AuthConfig describes how API requests are authenticated. Token values
// may be {{SECRET:NAME}} placeholders resolved from the secret store.
type AuthConfig struct {
	Type         string `json:"type" validate:"omitempty,oneof=none header query bearer basic oauth2_client_credentials"`
	Name         string `json:"name,omitempty"`
	Token        string `json:"token,omitempty"`
	User         string `json:"user,omitempty"`
	Pass         string `json:"pass,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// PaginationConfig controls page iteration for API sources.
type PaginationConfig struct {
	Mode       string `json:"mode" validate:"omitempty,oneof=offset page cursor"`
	Param      string `json:"param,omitempty"`
	SizeParam  string `json:"size_param,omitempty"`
	PageSize   int    `json:"page_size,omitempty" validate:"omitempty,min=1"`
	CursorPath string `json:"cursor_path,omitempty"`
	MaxPages   int    `json:"max_pages,omitempty" validate:"omitempty,min=1"`
	UntilEmpty bool   `json:"until_empty,omitempty"`
}

// SinceConfig injects an incremental filter derived from the source's last
// successful run.
type SinceConfig struct {
	Field        string `json:"field"`
	Format       string `json:"format" validate:"omitempty,oneof=iso8601 unix unix_ms"`
	FallbackDays int    `json:"fallback_days,omitempty" validate:"omitempty,min=1"`
}

// TransformSpec is one per-field transform applied to mapped values.
type TransformSpec struct {
	Op     string            `json:"op" validate:"required,oneof=lower upper strip join first map_table default date_parse"`
	Sep    string            `json:"sep,omitempty"`
	Table  map[string]string `json:"table,omitempty"`
	Value  string            `json:"value,omitempty"`
	Format string            `json:"format,omitempty" validate:"omitempty,oneof=iso8601 unix unix_ms"`
}

// RetryConfig overrides the fetcher retry budget for one source.
type RetryConfig struct {
	MaxRetries int `json:"max_retries,omitempty" validate:"omitempty,min=0,max=10"`
	BackoffMS  int `json:"backoff_ms,omitempty" validate:"omitempty,min=0"`
}

// ThrottleConfig overrides the per-host rate limit for one source.
type ThrottleConfig struct {
	RequestsPerMinute int `json:"requests_per_minute,omitempty" validate:"omitempty,min=1"`
	Burst             int `json:"burst,omitempty" validate:"omitempty,min=1"`
}

// APIConfig is the versioned JSON configuration attached to api-kind
// sources. "v": 1 is mandatory.
type APIConfig struct {
	V            int                        `json:"v" validate:"required,eq=1"`
	BaseURL      string                     `json:"base_url" validate:"required,url"`
	Path         string                     `json:"path,omitempty"`
	Method       string                     `json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT"`
	Headers      map[string]string          `json:"headers,omitempty"`
	Query        map[string]string          `json:"query,omitempty"`
	Body         string                     `json:"body,omitempty"`
	Auth         AuthConfig                 `json:"auth,omitempty"`
	Pagination   PaginationConfig           `json:"pagination,omitempty"`
	Since        *SinceConfig               `json:"since,omitempty"`
	DataPath     string                     `json:"data_path" validate:"required"`
	Map          map[string]string          `json:"map" validate:"required,min=1"`
	Transforms   map[string][]TransformSpec `json:"transforms,omitempty"`
	SuccessCodes []int                      `json:"success_codes,omitempty"`
	Retry        RetryConfig                `json:"retry,omitempty"`
	Throttle     ThrottleConfig             `json:"throttle,omitempty"`
}

var apiConfigValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseAPIConfig parses and validates a v1 API source configuration.
func ParseAPIConfig(raw string) (*APIConfig, error) {
	var cfg APIConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("invalid api config JSON: %w", err)
	}
	if cfg.V != 1 {
		return nil, fmt.Errorf("unsupported api config version: %d", cfg.V)
	}
	if err := apiConfigValidator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("api config validation failed: %w", err)
	}
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	return &cfg, nil
}

// SecretNames collects every {{SECRET:NAME}} placeholder referenced by the
// configuration. Validation of referenced secrets happens before any
// network call.
func (c *APIConfig) SecretNames() []string {
	seen := make(map[string]bool)
	var names []string
	collect := func(values ...string) {
		for _, v := range values {
			for _, m := range secretPlaceholderRe.FindAllStringSubmatch(v, -1) {
				if !seen[m[1]] {
					seen[m[1]] = true
					names = append(names, m[1])
				}
			}
		}
	}
	collect(c.Body, c.Auth.Token, c.Auth.User, c.Auth.Pass, c.Auth.ClientID, c.Auth.ClientSecret)
	for _, v := range c.Headers {
		collect(v)
	}
	for _, v := range c.Query {
		collect(v)
	}
	return names
}

// ResolveSecrets replaces {{SECRET:NAME}} placeholders in a template using
// the provided lookup. Returns an error naming the first missing secret.
func ResolveSecrets(template string, lookup func(name string) (string, bool)) (string, error) {
	var missing string
	out := secretPlaceholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(m, "{{SECRET:"), "}}")
		if v, ok := lookup(name); ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", fmt.Errorf("missing required secret: %s", missing)
	}
	return out, nil
}
