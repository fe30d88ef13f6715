package normalize

import (
	"context"
	"strings"
)

// UnknownRecorder receives values the normalizer drops so reviewers can
// promote them into the taxonomy later.
type UnknownRecorder interface {
	AddUnknown(field, value string)
}

// Normalizer maps raw attribute strings onto taxonomy membership.
type Normalizer struct {
	cache *Cache
}

// NewNormalizer creates a normalizer over the taxonomy cache.
func NewNormalizer(cache *Cache) *Normalizer {
	return &Normalizer{cache: cache}
}

// ToISOCountry resolves a country name to its ISO alpha-2 code.
func (n *Normalizer) ToISOCountry(ctx context.Context, name string) (string, bool) {
	iso, ok := n.cache.Countries(ctx)[strings.ToLower(strings.TrimSpace(name))]
	return iso, ok
}

// NormLevel normalizes an experience level: synonym map first, then
// direct membership. Unknown values yield empty.
func (n *Normalizer) NormLevel(ctx context.Context, raw string) string {
	key := canonicalToken(raw)
	if key == "" {
		return ""
	}
	if mapped, ok := n.cache.Synonyms(ctx)[key]; ok {
		key = canonicalToken(mapped)
	}
	if n.cache.Set(ctx, SetLevels)[key] {
		return key
	}
	return ""
}

// NormTags normalizes a tag list against a taxonomy set. Each value is
// lowercased with dashes folded to underscores, run through synonyms, and
// then required to be a set member. Dropped values go to the recorder.
func (n *Normalizer) NormTags(ctx context.Context, field string, values []string, set string, rec UnknownRecorder) []string {
	members := n.cache.Set(ctx, set)
	synonyms := n.cache.Synonyms(ctx)

	var out []string
	seen := map[string]bool{}
	for _, raw := range values {
		key := canonicalToken(raw)
		if key == "" {
			continue
		}
		if mapped, ok := synonyms[key]; ok {
			key = canonicalToken(mapped)
		}
		if !members[key] {
			if rec != nil {
				rec.AddUnknown(field, strings.TrimSpace(raw))
			}
			continue
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// NormModality normalizes work modality tags.
func (n *Normalizer) NormModality(ctx context.Context, values []string, rec UnknownRecorder) []string {
	return n.NormTags(ctx, "modality", values, SetModalities, rec)
}

// NormBenefits normalizes benefit tags.
func (n *Normalizer) NormBenefits(ctx context.Context, values []string, rec UnknownRecorder) []string {
	return n.NormTags(ctx, "benefits", values, SetBenefits, rec)
}

// NormPolicy normalizes policy flags.
func (n *Normalizer) NormPolicy(ctx context.Context, values []string, rec UnknownRecorder) []string {
	return n.NormTags(ctx, "policy", values, SetPolicies, rec)
}

// NormDonors normalizes donor tags.
func (n *Normalizer) NormDonors(ctx context.Context, values []string, rec UnknownRecorder) []string {
	return n.NormTags(ctx, "donors", values, SetDonors, rec)
}

// NormMissions normalizes impact-domain tags.
func (n *Normalizer) NormMissions(ctx context.Context, values []string, rec UnknownRecorder) []string {
	return n.NormTags(ctx, "missions", values, SetMissions, rec)
}

func canonicalToken(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(key, "-", "_")
}
