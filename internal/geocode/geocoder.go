// Package geocode resolves raw duty-station strings into structured
// location blocks. Lookups go to Nominatim with an optional Google
// fallback and every answer is cached on disk, so repeat crawls of the
// same locations cost nothing.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
	"github.com/aidjobs/harvester/internal/normalize"
)

// remoteMarkers flag locations that are remote rather than physical.
var remoteMarkers = []string{"remote", "home-based", "home based", "telecommut", "work from home", "anywhere"}

// Geocoder resolves locations best-effort. A nil or failed lookup never
// blocks the upsert; callers get a zero Geo block instead.
type Geocoder struct {
	httpClient *http.Client
	nominatim  string
	googleKey  string
	cachePath  string
	normalizer *normalize.Normalizer
	limiter    *rate.Limiter
	logger     arbor.ILogger

	mu    sync.Mutex
	cache map[string]models.Geo
	dirty bool
}

// NewGeocoder creates a geocoder with a disk-backed cache. The cache file
// loads once at construction; a missing file starts empty.
func NewGeocoder(cfg common.GeocodeConfig, normalizer *normalize.Normalizer, logger arbor.ILogger) *Geocoder {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	nominatim := cfg.NominatimURL
	if nominatim == "" {
		nominatim = "https://nominatim.openstreetmap.org"
	}

	g := &Geocoder{
		httpClient: &http.Client{Timeout: timeout},
		nominatim:  strings.TrimRight(nominatim, "/"),
		googleKey:  cfg.GoogleAPIKey,
		cachePath:  cfg.CachePath,
		normalizer: normalizer,
		// Nominatim's usage policy is one request per second.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
		cache:   make(map[string]models.Geo),
	}
	g.loadCache()
	return g
}

// Resolve geocodes a raw location string. Remote markers short-circuit;
// cached answers return without a network call.
func (g *Geocoder) Resolve(ctx context.Context, raw string) models.Geo {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return models.Geo{}
	}

	for _, marker := range remoteMarkers {
		if strings.Contains(key, marker) {
			return models.Geo{Remote: true}
		}
	}

	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached
	}
	g.mu.Unlock()

	geo, ok := g.lookupNominatim(ctx, raw)
	if !ok && g.googleKey != "" {
		geo, ok = g.lookupGoogle(ctx, raw)
	}
	if !ok {
		// Fall back to a plain country-name match before giving up.
		if iso, found := g.normalizer.ToISOCountry(ctx, lastSegment(raw)); found {
			geo = models.Geo{Country: lastSegment(raw), CountryISO: iso}
			ok = true
		}
	}
	if !ok {
		return models.Geo{}
	}

	g.mu.Lock()
	g.cache[key] = geo
	g.dirty = true
	g.mu.Unlock()
	g.persistCache()

	return geo
}

func (g *Geocoder) lookupNominatim(ctx context.Context, raw string) (models.Geo, bool) {
	if err := g.limiter.Wait(ctx); err != nil {
		return models.Geo{}, false
	}

	endpoint := fmt.Sprintf("%s/search?format=json&limit=1&addressdetails=1&q=%s",
		g.nominatim, url.QueryEscape(raw))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Geo{}, false
	}
	req.Header.Set("User-Agent", "harvester-geocoder/1.0")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("location", raw).Msg("Nominatim lookup failed")
		return models.Geo{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Geo{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Geo{}, false
	}

	first := gjson.ParseBytes(body).Get("0")
	if !first.Exists() {
		return models.Geo{}, false
	}

	geo := models.Geo{
		Country:   first.Get("address.country").String(),
		City:      firstNonEmpty(first.Get("address.city").String(), first.Get("address.town").String(), first.Get("address.state").String()),
		Latitude:  first.Get("lat").Float(),
		Longitude: first.Get("lon").Float(),
	}
	geo.CountryISO = strings.ToUpper(first.Get("address.country_code").String())
	return geo, geo.Country != "" || geo.Latitude != 0
}

func (g *Geocoder) lookupGoogle(ctx context.Context, raw string) (models.Geo, bool) {
	endpoint := fmt.Sprintf("https://maps.googleapis.com/maps/api/geocode/json?address=%s&key=%s",
		url.QueryEscape(raw), g.googleKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Geo{}, false
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("location", raw).Msg("Google geocode fallback failed")
		return models.Geo{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Geo{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Geo{}, false
	}

	result := gjson.ParseBytes(body).Get("results.0")
	if !result.Exists() {
		return models.Geo{}, false
	}

	geo := models.Geo{
		Latitude:  result.Get("geometry.location.lat").Float(),
		Longitude: result.Get("geometry.location.lng").Float(),
	}
	for _, comp := range result.Get("address_components").Array() {
		types := comp.Get("types").Array()
		for _, t := range types {
			switch t.String() {
			case "country":
				geo.Country = comp.Get("long_name").String()
				geo.CountryISO = strings.ToUpper(comp.Get("short_name").String())
			case "locality":
				geo.City = comp.Get("long_name").String()
			}
		}
	}
	return geo, geo.Country != ""
}

func (g *Geocoder) loadCache() {
	if g.cachePath == "" {
		return
	}
	data, err := os.ReadFile(g.cachePath)
	if err != nil {
		return
	}
	var cache map[string]models.Geo
	if err := json.Unmarshal(data, &cache); err != nil {
		g.logger.Warn().Err(err).Str("path", g.cachePath).Msg("Geocode cache unreadable, starting empty")
		return
	}
	g.cache = cache
	g.logger.Debug().Int("entries", len(cache)).Msg("Geocode cache loaded")
}

func (g *Geocoder) persistCache() {
	if g.cachePath == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.dirty {
		return
	}

	data, err := json.MarshalIndent(g.cache, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(g.cachePath), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(g.cachePath, data, 0o644); err != nil {
		g.logger.Warn().Err(err).Str("path", g.cachePath).Msg("Geocode cache write failed")
		return
	}
	g.dirty = false
}

func lastSegment(raw string) string {
	parts := strings.Split(raw, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

