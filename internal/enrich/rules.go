// Package enrich applies editorial policy to LLM-produced enrichment
// payloads. The rules are deterministic and idempotent: applying them to
// an already-ruled block changes nothing.
package enrich

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aidjobs/harvester/internal/models"
)

// Policy thresholds.
const (
	sdgConfidenceFloor = 0.60
	sdgCap             = 2
	mealTopSDGFloor    = 0.85
	impactDomainFloor  = 0.65
	experienceFloor    = 0.70
	overallFloor       = 0.65
)

// operationalRoles suppress SDG labels entirely. A finance officer at a
// climate NGO is not climate-action work.
var operationalRoles = map[string]bool{
	"finance/accounting/audit":           true,
	"hr/admin/ops":                       true,
	"it/digital/systems":                 true,
	"logistics/supply chain/procurement": true,
	"communications & advocacy":          true,
}

// mealRoles get a stricter SDG bar: their postings mention every SDG the
// program touches, which inflates weak labels.
var mealRoles = map[string]bool{
	"meal/research/evidence": true,
	"monitoring officer":     true,
	"data & gis":             true,
}

// canonicalRoles is the accepted functional-role vocabulary.
var canonicalRoles = map[string]bool{
	"programme management":               true,
	"project management":                 true,
	"finance/accounting/audit":           true,
	"hr/admin/ops":                       true,
	"it/digital/systems":                 true,
	"logistics/supply chain/procurement": true,
	"communications & advocacy":          true,
	"meal/research/evidence":             true,
	"monitoring officer":                 true,
	"data & gis":                         true,
	"health/medical":                     true,
	"protection":                         true,
	"education":                          true,
	"policy & partnerships":              true,
	"fundraising":                        true,
}

var canonicalLevels = map[string]bool{
	"intern": true, "entry": true, "mid": true,
	"senior": true, "director": true, "executive": true,
}

var canonicalImpactDomains = map[string]bool{
	"climate_action": true, "global_health": true, "education": true,
	"humanitarian_response": true, "human_rights": true,
	"food_security": true, "gender_equality": true, "governance": true,
	"economic_development": true, "water_sanitation": true,
}

// ApplyRules runs the seven policy rules in order over an enrichment
// block and returns the ruled copy. The input is not modified.
func ApplyRules(in *models.Enrichment) *models.Enrichment {
	e := cloneEnrichment(in)
	sanitize(e)

	var reasons []string
	flag := func(reason string) {
		e.LowConfidence = true
		for _, r := range reasons {
			if r == reason {
				return
			}
		}
		reasons = append(reasons, reason)
	}

	// Rule 1: operational suppression.
	for _, role := range e.FunctionalRoles {
		if operationalRoles[role] {
			clearSDGs(e)
			flag("operational/support role")
			break
		}
	}

	// Rule 2: SDG confidence floor.
	e.SDGs = filterSDGs(e, sdgConfidenceFloor)

	// Rule 3: SDG cap, highest-confidence pair.
	if len(e.SDGs) > sdgCap {
		sort.SliceStable(e.SDGs, func(i, j int) bool {
			return sdgConfidence(e, e.SDGs[i]) > sdgConfidence(e, e.SDGs[j])
		})
		for _, dropped := range e.SDGs[sdgCap:] {
			delete(e.SDGConfidences, strconv.Itoa(dropped))
		}
		e.SDGs = e.SDGs[:sdgCap]
	}

	// Rule 4: MEAL threshold on the surviving top SDG.
	for _, role := range e.FunctionalRoles {
		if mealRoles[role] {
			if topSDGConfidence(e) < mealTopSDGFloor {
				clearSDGs(e)
				flag("MEAL role requires high SDG confidence")
			}
			break
		}
	}

	// Rule 5: impact-domain floor.
	hadDomains := len(e.ImpactDomains) > 0
	var domains []string
	for _, d := range e.ImpactDomains {
		if e.ImpactConfidences[d] >= impactDomainFloor {
			domains = append(domains, d)
		} else {
			delete(e.ImpactConfidences, d)
		}
	}
	e.ImpactDomains = domains
	if hadDomains && len(domains) == 0 {
		flag("all impact domains below confidence floor")
	}

	// Rule 6: experience floor.
	if e.ExperienceLevel != "" && e.ExperienceConf < experienceFloor {
		e.ExperienceLevel = ""
		e.ExperienceYears = 0
		flag("experience confidence below floor")
	}

	// Rule 7: overall floor.
	if e.OverallConfidence < overallFloor {
		flag(fmt.Sprintf("overall confidence %.2f < %.2f", e.OverallConfidence, overallFloor))
	}

	if len(reasons) > 0 {
		e.LowConfidenceNote = strings.Join(reasons, "; ")
	}
	return e
}

// sanitize strips non-canonical vocabulary and nulls invalid confidences
// before any rule runs. Roles are stored in canonical spelling so the
// role-keyed rules match regardless of how the model spaced them.
func sanitize(e *models.Enrichment) {
	var roles []string
	for _, r := range e.FunctionalRoles {
		role := canonicalRole(r)
		if canonicalRoles[role] {
			roles = append(roles, role)
		}
	}
	e.FunctionalRoles = roles

	var domains []string
	for _, d := range e.ImpactDomains {
		key := strings.ToLower(strings.TrimSpace(d))
		if canonicalImpactDomains[key] {
			domains = append(domains, key)
		} else {
			delete(e.ImpactConfidences, d)
		}
	}
	e.ImpactDomains = domains

	if !canonicalLevels[strings.ToLower(e.ExperienceLevel)] {
		e.ExperienceLevel = ""
	}

	for k, v := range e.SDGConfidences {
		if v < 0 || v > 1 {
			delete(e.SDGConfidences, k)
		}
	}
	for k, v := range e.ImpactConfidences {
		if v < 0 || v > 1 {
			delete(e.ImpactConfidences, k)
		}
	}
	if e.ExperienceConf < 0 || e.ExperienceConf > 1 {
		e.ExperienceConf = 0
	}
	if e.OverallConfidence < 0 || e.OverallConfidence > 1 {
		e.OverallConfidence = 0
	}

	var sdgs []int
	for _, s := range e.SDGs {
		if s >= 1 && s <= 17 {
			sdgs = append(sdgs, s)
		}
	}
	e.SDGs = sdgs
}

// canonicalRole lowercases a role, collapses runs of whitespace, and
// removes spaces around slashes. Models emit both "MEAL/Research/Evidence"
// and "MEAL / Research / Evidence" for the same vocabulary entry.
func canonicalRole(raw string) string {
	role := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	role = strings.ReplaceAll(role, " / ", "/")
	role = strings.ReplaceAll(role, " /", "/")
	role = strings.ReplaceAll(role, "/ ", "/")
	return role
}

func filterSDGs(e *models.Enrichment, floor float64) []int {
	var kept []int
	for _, sdg := range e.SDGs {
		if sdgConfidence(e, sdg) >= floor {
			kept = append(kept, sdg)
		} else {
			delete(e.SDGConfidences, strconv.Itoa(sdg))
		}
	}
	return kept
}

func sdgConfidence(e *models.Enrichment, sdg int) float64 {
	return e.SDGConfidences[strconv.Itoa(sdg)]
}

func topSDGConfidence(e *models.Enrichment) float64 {
	top := 0.0
	for _, sdg := range e.SDGs {
		if c := sdgConfidence(e, sdg); c > top {
			top = c
		}
	}
	return top
}

func clearSDGs(e *models.Enrichment) {
	e.SDGs = nil
	e.SDGConfidences = nil
	e.SDGExplanation = ""
}

func cloneEnrichment(in *models.Enrichment) *models.Enrichment {
	out := *in
	out.ImpactDomains = append([]string(nil), in.ImpactDomains...)
	out.FunctionalRoles = append([]string(nil), in.FunctionalRoles...)
	out.SDGs = append([]int(nil), in.SDGs...)
	out.MatchedKeywords = append([]string(nil), in.MatchedKeywords...)
	out.ImpactConfidences = cloneFloatMap(in.ImpactConfidences)
	out.SDGConfidences = cloneFloatMap(in.SDGConfidences)
	return &out
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
