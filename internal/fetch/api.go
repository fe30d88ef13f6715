package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// APIFetcher pulls job records from JSON APIs driven by a v1 source
// configuration. Records arrive already structured, so they enter the
// pipeline at the api confidence tier.
type APIFetcher struct {
	client  *Client
	secrets interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewAPIFetcher creates an API fetcher. Secrets resolve from the KV store
// under the "secret:" prefix.
func NewAPIFetcher(client *Client, secrets interfaces.KeyValueStorage, logger arbor.ILogger) *APIFetcher {
	return &APIFetcher{
		client:  client,
		secrets: secrets,
		logger:  logger,
	}
}

// secretLookup resolves secret names against the KV store under the
// "secret:" prefix.
func (f *APIFetcher) secretLookup(ctx context.Context) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, err := f.secrets.Get(ctx, "secret:"+name)
		if err != nil || value == "" {
			return "", false
		}
		return value, true
	}
}

// Fetch runs the configured request with pagination and returns the mapped
// records. A categorized failure on the first page surfaces as the crawl's
// fatal error; later pages fail soft.
func (f *APIFetcher) Fetch(ctx context.Context, cfg *models.APIConfig, lastSuccess time.Time) (*Result, []RawRecord, error) {
	result := &Result{URL: cfg.BaseURL}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	// All referenced secrets must resolve before any network call.
	lookup := f.secretLookup(ctx)
	for _, name := range cfg.SecretNames() {
		if _, ok := lookup(name); !ok {
			result.Kind = ErrorKindPolicy
			result.Message = fmt.Sprintf("missing required secret: %s", name)
			return result, nil, nil
		}
	}

	httpClient, err := f.authClient(ctx, cfg, lookup)
	if err != nil {
		result.Kind = ErrorKindPolicy
		result.Message = err.Error()
		return result, nil, nil
	}

	if cfg.Throttle.RequestsPerMinute > 0 {
		host := hostOf(cfg.BaseURL)
		burst := cfg.Throttle.Burst
		if burst <= 0 {
			burst = 1
		}
		f.client.Limiter().SetHostRate(host, cfg.Throttle.RequestsPerMinute, burst)
	}

	retry := NewRetryPolicy()
	if cfg.Retry.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Retry.MaxRetries
	}
	if cfg.Retry.BackoffMS > 0 {
		retry.InitialBackoff = time.Duration(cfg.Retry.BackoffMS) * time.Millisecond
	}

	var records []RawRecord
	cursor := ""
	maxPages := cfg.Pagination.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	for page := 0; page < maxPages; page++ {
		pageBody, status, err := f.fetchPage(ctx, httpClient, cfg, lookup, lastSuccess, page, cursor, retry)
		result.Status = status
		if err != nil || !f.statusOK(cfg, status) {
			kind := CategorizeStatus(status)
			if err != nil && status == 0 {
				kind = ErrorKindNetwork
			}
			if page == 0 {
				result.Kind = kind
				if err != nil {
					result.Message = err.Error()
				} else {
					result.Message = fmt.Sprintf("API returned HTTP %d", status)
				}
				return result, nil, nil
			}
			f.logger.Warn().
				Int("page", page).
				Int("status", status).
				Err(err).
				Msg("API pagination stopped on page failure")
			break
		}

		items := gjson.GetBytes(pageBody, normalizePath(cfg.DataPath))
		if !items.Exists() || !items.IsArray() {
			if page == 0 {
				result.Kind = ErrorKindPolicy
				result.Message = fmt.Sprintf("data_path %q did not resolve to an array", cfg.DataPath)
				return result, nil, nil
			}
			break
		}

		pageItems := items.Array()
		if len(pageItems) == 0 {
			break
		}
		for _, item := range pageItems {
			records = append(records, f.mapItem(cfg, item))
		}

		if cfg.Pagination.Mode == "" {
			break
		}
		if cfg.Pagination.Mode == models.PaginationCursor {
			next := gjson.GetBytes(pageBody, normalizePath(cfg.Pagination.CursorPath))
			if !next.Exists() || next.String() == "" {
				break
			}
			cursor = next.String()
		}
		if cfg.Pagination.UntilEmpty && len(pageItems) < cfg.Pagination.PageSize {
			break
		}
	}

	result.Size = len(records)
	f.logger.Debug().
		Str("base_url", cfg.BaseURL).
		Int("records", len(records)).
		Msg("API fetch completed")

	return result, records, nil
}

func (f *APIFetcher) statusOK(cfg *models.APIConfig, status int) bool {
	if len(cfg.SuccessCodes) > 0 {
		for _, code := range cfg.SuccessCodes {
			if status == code {
				return true
			}
		}
		return false
	}
	return status >= 200 && status < 300
}

// fetchPage performs one paginated request.
func (f *APIFetcher) fetchPage(ctx context.Context, httpClient *http.Client, cfg *models.APIConfig, lookup func(string) (string, bool), lastSuccess time.Time, page int, cursor string, retry *RetryPolicy) ([]byte, int, error) {
	reqURL, err := f.buildURL(cfg, lookup, lastSuccess, page, cursor)
	if err != nil {
		return nil, 0, err
	}

	if err := f.client.Limiter().Wait(ctx, hostOf(cfg.BaseURL)); err != nil {
		return nil, 0, err
	}

	var body []byte
	status, err := retry.ExecuteWithRetry(ctx, f.logger, func() (int, error) {
		var reqBody io.Reader
		if cfg.Body != "" {
			resolved, err := models.ResolveSecrets(cfg.Body, lookup)
			if err != nil {
				return 0, err
			}
			reqBody = strings.NewReader(resolved)
		}

		req, err := http.NewRequestWithContext(ctx, cfg.Method, reqURL, reqBody)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		if cfg.Body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		for name, tmpl := range cfg.Headers {
			value, err := models.ResolveSecrets(tmpl, lookup)
			if err != nil {
				return 0, err
			}
			req.Header.Set(name, value)
		}
		f.applyAuthHeaders(req, cfg, lookup)

		resp, err := httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
		if err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	})

	return body, status, err
}

// buildURL assembles the page URL with query templates, pagination
// parameters, and the incremental since filter.
func (f *APIFetcher) buildURL(cfg *models.APIConfig, lookup func(string) (string, bool), lastSuccess time.Time, page int, cursor string) (string, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}

	q := base.Query()
	for name, tmpl := range cfg.Query {
		value, err := models.ResolveSecrets(tmpl, lookup)
		if err != nil {
			return "", err
		}
		q.Set(name, value)
	}

	if cfg.Auth.Type == models.AuthQuery {
		token, err := models.ResolveSecrets(cfg.Auth.Token, lookup)
		if err != nil {
			return "", err
		}
		q.Set(cfg.Auth.Name, token)
	}

	p := cfg.Pagination
	switch p.Mode {
	case models.PaginationOffset:
		q.Set(p.Param, strconv.Itoa(page*p.PageSize))
		if p.SizeParam != "" {
			q.Set(p.SizeParam, strconv.Itoa(p.PageSize))
		}
	case models.PaginationPage:
		q.Set(p.Param, strconv.Itoa(page+1))
		if p.SizeParam != "" {
			q.Set(p.SizeParam, strconv.Itoa(p.PageSize))
		}
	case models.PaginationCursor:
		if cursor != "" {
			q.Set(p.Param, cursor)
		}
	}

	if cfg.Since != nil && cfg.Since.Field != "" {
		since := lastSuccess
		if since.IsZero() {
			days := cfg.Since.FallbackDays
			if days <= 0 {
				days = 30
			}
			since = time.Now().AddDate(0, 0, -days)
		}
		q.Set(cfg.Since.Field, formatSince(since, cfg.Since.Format))
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func formatSince(t time.Time, format string) string {
	switch format {
	case models.SinceUnix:
		return strconv.FormatInt(t.Unix(), 10)
	case models.SinceUnixMS:
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.UTC().Format(time.RFC3339)
	}
}

// authClient builds the HTTP client, wrapping OAuth2 client-credentials
// flows when configured.
func (f *APIFetcher) authClient(ctx context.Context, cfg *models.APIConfig, lookup func(string) (string, bool)) (*http.Client, error) {
	if cfg.Auth.Type != models.AuthOAuth2 {
		return &http.Client{Timeout: f.client.config.RequestTimeout}, nil
	}

	clientID, err := models.ResolveSecrets(cfg.Auth.ClientID, lookup)
	if err != nil {
		return nil, err
	}
	clientSecret, err := models.ResolveSecrets(cfg.Auth.ClientSecret, lookup)
	if err != nil {
		return nil, err
	}

	oauthCfg := &clientcredentials.Config{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	if cfg.Auth.Scope != "" {
		oauthCfg.Scopes = strings.Fields(cfg.Auth.Scope)
	}

	client := oauthCfg.Client(ctx)
	client.Timeout = f.client.config.RequestTimeout
	return client, nil
}

// applyAuthHeaders sets header-carried credentials. Query and OAuth2 auth
// are handled elsewhere; secret resolution was validated up front, so
// failures here cannot occur.
func (f *APIFetcher) applyAuthHeaders(req *http.Request, cfg *models.APIConfig, lookup func(string) (string, bool)) {
	switch cfg.Auth.Type {
	case models.AuthHeader:
		token, _ := models.ResolveSecrets(cfg.Auth.Token, lookup)
		req.Header.Set(cfg.Auth.Name, token)
	case models.AuthBearer:
		token, _ := models.ResolveSecrets(cfg.Auth.Token, lookup)
		req.Header.Set("Authorization", "Bearer "+token)
	case models.AuthBasic:
		user, _ := models.ResolveSecrets(cfg.Auth.User, lookup)
		pass, _ := models.ResolveSecrets(cfg.Auth.Pass, lookup)
		credentials := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		req.Header.Set("Authorization", "Basic "+credentials)
	}
}

// mapItem applies the field map and per-field transforms to one JSON item.
func (f *APIFetcher) mapItem(cfg *models.APIConfig, item gjson.Result) RawRecord {
	record := make(RawRecord, len(cfg.Map))
	for field, path := range cfg.Map {
		value := item.Get(normalizePath(path))
		raw := value.String()
		if value.IsArray() {
			parts := make([]string, 0, len(value.Array()))
			for _, v := range value.Array() {
				parts = append(parts, v.String())
			}
			raw = strings.Join(parts, ", ")
		}
		record[field] = applyTransforms(raw, cfg.Transforms[field])
	}
	return record
}

// applyTransforms runs the configured transform chain over one value.
func applyTransforms(value string, transforms []models.TransformSpec) string {
	for _, t := range transforms {
		switch t.Op {
		case "lower":
			value = strings.ToLower(value)
		case "upper":
			value = strings.ToUpper(value)
		case "strip":
			value = strings.TrimSpace(value)
		case "join":
			sep := t.Sep
			if sep == "" {
				sep = ", "
			}
			value = strings.Join(strings.Fields(value), sep)
		case "first":
			if idx := strings.IndexAny(value, ",;"); idx >= 0 {
				value = strings.TrimSpace(value[:idx])
			}
		case "map_table":
			if mapped, ok := t.Table[value]; ok {
				value = mapped
			}
		case "default":
			if strings.TrimSpace(value) == "" {
				value = t.Value
			}
		case "date_parse":
			value = parseDateValue(value, t.Format)
		}
	}
	return value
}

func parseDateValue(value, format string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	switch format {
	case models.SinceUnix:
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format("2006-01-02")
		}
	case models.SinceUnixMS:
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC().Format("2006-01-02")
		}
	default:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	return value
}

// normalizePath converts dotted paths with [n] indexing to gjson syntax.
func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	path = strings.TrimPrefix(path, "$.")
	return strings.Trim(path, ".")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
