// Package normalize maps free-text job attributes onto the canonical
// taxonomy. All lookups run through a process-wide cache that loads each
// taxonomy set on first use and falls back to hard-coded defaults, so
// normalization stays live when the taxonomy tables are empty.
package normalize

import (
	"context"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/aidjobs/harvester/internal/interfaces"
)

// Taxonomy set names as stored under "taxonomy:<set>" keys.
const (
	SetCountries  = "countries"
	SetLevels     = "levels"
	SetMissions   = "missions"
	SetModalities = "modalities"
	SetBenefits   = "benefits"
	SetPolicies   = "policies"
	SetDonors     = "donors"
	SetSynonyms   = "synonyms"
)

// Cache is the lazy-loading taxonomy cache. Sets load from the KV store
// on first use; a miss or load failure falls back to the built-in
// defaults and the fallback is cached for the process lifetime.
type Cache struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger

	mu       sync.RWMutex
	sets     map[string]map[string]bool
	synonyms map[string]string
	// countries maps lowercased name to ISO alpha-2 code.
	countries map[string]string
}

// NewCache creates a taxonomy cache over the KV store. A nil store means
// fallbacks only.
func NewCache(kv interfaces.KeyValueStorage, logger arbor.ILogger) *Cache {
	return &Cache{
		kv:     kv,
		logger: logger,
		sets:   make(map[string]map[string]bool),
	}
}

// Set returns the membership set for a taxonomy name, loading it on first
// use.
func (c *Cache) Set(ctx context.Context, name string) map[string]bool {
	c.mu.RLock()
	set, ok := c.sets[name]
	c.mu.RUnlock()
	if ok {
		return set
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.sets[name]; ok {
		return set
	}

	set = c.loadSet(ctx, name)
	if len(set) == 0 {
		set = fallbackSet(name)
		c.logger.Debug().Str("set", name).Msg("Taxonomy set empty, using built-in defaults")
	}
	c.sets[name] = set
	return set
}

// Synonyms returns the raw-to-canonical synonym map.
func (c *Cache) Synonyms(ctx context.Context) map[string]string {
	c.mu.RLock()
	syn := c.synonyms
	c.mu.RUnlock()
	if syn != nil {
		return syn
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.synonyms != nil {
		return c.synonyms
	}

	syn = c.loadMap(ctx, SetSynonyms)
	if len(syn) == 0 {
		syn = fallbackSynonyms()
	}
	c.synonyms = syn
	return syn
}

// Countries returns the name-to-ISO map.
func (c *Cache) Countries(ctx context.Context) map[string]string {
	c.mu.RLock()
	countries := c.countries
	c.mu.RUnlock()
	if countries != nil {
		return countries
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countries != nil {
		return c.countries
	}

	countries = c.loadMap(ctx, SetCountries)
	if len(countries) == 0 {
		countries = fallbackCountries
	}
	c.countries = countries
	return countries
}

func (c *Cache) loadSet(ctx context.Context, name string) map[string]bool {
	if c.kv == nil {
		return nil
	}
	raw, err := c.kv.Get(ctx, "taxonomy:"+name)
	if err != nil || raw == "" {
		return nil
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil
	}
	set := make(map[string]bool)
	for _, v := range parsed.Array() {
		if s := strings.ToLower(strings.TrimSpace(v.String())); s != "" {
			set[s] = true
		}
	}
	return set
}

func (c *Cache) loadMap(ctx context.Context, name string) map[string]string {
	if c.kv == nil {
		return nil
	}
	raw, err := c.kv.Get(ctx, "taxonomy:"+name)
	if err != nil || raw == "" {
		return nil
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil
	}
	m := make(map[string]string)
	parsed.ForEach(func(key, value gjson.Result) bool {
		m[strings.ToLower(key.String())] = value.String()
		return true
	})
	return m
}

func fallbackSet(name string) map[string]bool {
	switch name {
	case SetLevels:
		return setOf("intern", "entry", "mid", "senior", "director", "executive")
	case SetMissions:
		return setOf(
			"climate_action", "global_health", "education", "humanitarian_response",
			"human_rights", "food_security", "gender_equality", "governance",
			"economic_development", "water_sanitation",
		)
	case SetModalities:
		return setOf("onsite", "remote", "hybrid", "field")
	case SetBenefits:
		return setOf(
			"health_insurance", "pension", "relocation", "housing_allowance",
			"education_grant", "annual_leave", "parental_leave",
		)
	case SetPolicies:
		return setOf("visa_sponsorship", "flexible_hours", "part_time_possible")
	case SetDonors:
		return setOf("usaid", "fcdo", "echo", "giz", "sida", "norad", "world_bank", "gates_foundation")
	default:
		return map[string]bool{}
	}
}

func fallbackSynonyms() map[string]string {
	return map[string]string{
		"junior":        "entry",
		"graduate":      "entry",
		"experienced":   "mid",
		"mid-level":     "mid",
		"mid_level":     "mid",
		"lead":          "senior",
		"principal":     "senior",
		"head":          "director",
		"chief":         "executive",
		"wash":          "water_sanitation",
		"health":        "global_health",
		"emergency":     "humanitarian_response",
		"telecommuting": "remote",
		"home-based":    "remote",
		"home_based":    "remote",
	}
}

func setOf(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
