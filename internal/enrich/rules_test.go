package enrich

import (
	"reflect"
	"strings"
	"testing"

	"github.com/aidjobs/harvester/internal/models"
)

func TestApplyRulesOperationalSuppression(t *testing.T) {
	in := &models.Enrichment{
		FunctionalRoles:   []string{"Finance/Accounting/Audit"},
		SDGs:              []int{13},
		SDGConfidences:    map[string]float64{"13": 0.95},
		SDGExplanation:    "climate program budget",
		OverallConfidence: 0.80,
	}

	out := ApplyRules(in)

	if len(out.SDGs) != 0 {
		t.Errorf("SDGs = %v, want suppressed for operational role", out.SDGs)
	}
	if out.SDGExplanation != "" {
		t.Errorf("SDGExplanation = %q, want cleared", out.SDGExplanation)
	}
	if !out.LowConfidence {
		t.Error("LowConfidence = false, want true")
	}
	if !strings.Contains(out.LowConfidenceNote, "operational/support role") {
		t.Errorf("LowConfidenceNote = %q, want operational reason", out.LowConfidenceNote)
	}
}

func TestApplyRulesSDGFloorAndCap(t *testing.T) {
	in := &models.Enrichment{
		FunctionalRoles: []string{"programme management"},
		SDGs:            []int{4, 5, 13},
		SDGConfidences: map[string]float64{
			"4":  0.82,
			"5":  0.55, // below floor
			"13": 0.91,
		},
		OverallConfidence: 0.85,
	}

	out := ApplyRules(in)

	if want := []int{4, 13}; !reflect.DeepEqual(out.SDGs, want) {
		t.Errorf("SDGs = %v, want %v", out.SDGs, want)
	}
	if _, ok := out.SDGConfidences["5"]; ok {
		t.Error("SDGConfidences still carries the dropped SDG 5")
	}
	if out.LowConfidence {
		t.Errorf("LowConfidence = true with note %q, want clean pass", out.LowConfidenceNote)
	}
}

func TestApplyRulesSDGCapKeepsHighestPair(t *testing.T) {
	in := &models.Enrichment{
		SDGs: []int{4, 5, 13},
		SDGConfidences: map[string]float64{
			"4":  0.82,
			"5":  0.70,
			"13": 0.91,
		},
		OverallConfidence: 0.85,
	}

	out := ApplyRules(in)

	// The kept pair stays in descending confidence order.
	if want := []int{13, 4}; !reflect.DeepEqual(out.SDGs, want) {
		t.Errorf("SDGs = %v, want %v", out.SDGs, want)
	}
}

func TestApplyRulesRoleSpellingVariants(t *testing.T) {
	tests := []struct {
		name string
		role string
		want string
	}{
		{name: "no spaces", role: "MEAL/Research/Evidence", want: "meal/research/evidence"},
		{name: "spaced slashes", role: "MEAL / Research / Evidence", want: "meal/research/evidence"},
		{name: "uneven spacing", role: "Finance /  Accounting/ Audit", want: "finance/accounting/audit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &models.Enrichment{
				FunctionalRoles:   []string{tt.role},
				OverallConfidence: 0.85,
			}

			out := ApplyRules(in)

			if want := []string{tt.want}; !reflect.DeepEqual(out.FunctionalRoles, want) {
				t.Errorf("FunctionalRoles = %v, want %v", out.FunctionalRoles, want)
			}
		})
	}
}

func TestApplyRulesOperationalSuppressionSpacedSpelling(t *testing.T) {
	in := &models.Enrichment{
		FunctionalRoles:   []string{"Finance / Accounting / Audit"},
		SDGs:              []int{13},
		SDGConfidences:    map[string]float64{"13": 0.95},
		OverallConfidence: 0.80,
	}

	out := ApplyRules(in)

	if len(out.SDGs) != 0 {
		t.Errorf("SDGs = %v, want suppressed for operational role", out.SDGs)
	}
	if !strings.Contains(out.LowConfidenceNote, "operational/support role") {
		t.Errorf("LowConfidenceNote = %q, want operational reason", out.LowConfidenceNote)
	}
}

func TestApplyRulesMEALWithFloorAndCap(t *testing.T) {
	in := &models.Enrichment{
		FunctionalRoles: []string{"MEAL / Research / Evidence"},
		SDGs:            []int{4, 5, 13},
		SDGConfidences: map[string]float64{
			"4":  0.82,
			"5":  0.70,
			"13": 0.91,
		},
		OverallConfidence: 0.88,
	}

	out := ApplyRules(in)

	if want := []string{"meal/research/evidence"}; !reflect.DeepEqual(out.FunctionalRoles, want) {
		t.Errorf("FunctionalRoles = %v, want %v", out.FunctionalRoles, want)
	}
	// The cap keeps 13 and 4; the surviving top confidence 0.91 clears
	// the MEAL bar, so both labels stand.
	if want := []int{13, 4}; !reflect.DeepEqual(out.SDGs, want) {
		t.Errorf("SDGs = %v, want %v", out.SDGs, want)
	}
	if out.LowConfidence {
		t.Errorf("LowConfidence = true with note %q, want clean pass", out.LowConfidenceNote)
	}
}

func TestApplyRulesMEALThreshold(t *testing.T) {
	tests := []struct {
		name     string
		topConf  float64
		wantSDGs int
		wantNote bool
	}{
		{name: "below MEAL bar clears labels", topConf: 0.82, wantSDGs: 0, wantNote: true},
		{name: "at MEAL bar keeps labels", topConf: 0.85, wantSDGs: 1, wantNote: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &models.Enrichment{
				FunctionalRoles:   []string{"MEAL/Research/Evidence"},
				SDGs:              []int{13},
				SDGConfidences:    map[string]float64{"13": tt.topConf},
				OverallConfidence: 0.85,
			}

			out := ApplyRules(in)

			if len(out.SDGs) != tt.wantSDGs {
				t.Errorf("len(SDGs) = %d, want %d", len(out.SDGs), tt.wantSDGs)
			}
			hasNote := strings.Contains(out.LowConfidenceNote, "MEAL role")
			if hasNote != tt.wantNote {
				t.Errorf("MEAL note present = %v, want %v (note %q)", hasNote, tt.wantNote, out.LowConfidenceNote)
			}
		})
	}
}

func TestApplyRulesImpactDomainFloor(t *testing.T) {
	in := &models.Enrichment{
		ImpactDomains: []string{"climate_action", "education"},
		ImpactConfidences: map[string]float64{
			"climate_action": 0.80,
			"education":      0.40,
		},
		OverallConfidence: 0.85,
	}

	out := ApplyRules(in)

	if want := []string{"climate_action"}; !reflect.DeepEqual(out.ImpactDomains, want) {
		t.Errorf("ImpactDomains = %v, want %v", out.ImpactDomains, want)
	}
	if out.LowConfidence {
		t.Error("LowConfidence = true, want false while one domain survives")
	}
}

func TestApplyRulesAllDomainsDropped(t *testing.T) {
	in := &models.Enrichment{
		ImpactDomains:     []string{"education"},
		ImpactConfidences: map[string]float64{"education": 0.30},
		OverallConfidence: 0.85,
	}

	out := ApplyRules(in)

	if len(out.ImpactDomains) != 0 {
		t.Errorf("ImpactDomains = %v, want empty", out.ImpactDomains)
	}
	if !strings.Contains(out.LowConfidenceNote, "impact domains") {
		t.Errorf("LowConfidenceNote = %q, want domain reason", out.LowConfidenceNote)
	}
}

func TestApplyRulesExperienceFloor(t *testing.T) {
	in := &models.Enrichment{
		ExperienceLevel:   "senior",
		ExperienceYears:   8,
		ExperienceConf:    0.50,
		OverallConfidence: 0.85,
	}

	out := ApplyRules(in)

	if out.ExperienceLevel != "" || out.ExperienceYears != 0 {
		t.Errorf("experience = %q/%d, want cleared", out.ExperienceLevel, out.ExperienceYears)
	}
	if !strings.Contains(out.LowConfidenceNote, "experience confidence") {
		t.Errorf("LowConfidenceNote = %q, want experience reason", out.LowConfidenceNote)
	}
}

func TestApplyRulesOverallFloor(t *testing.T) {
	in := &models.Enrichment{OverallConfidence: 0.50}

	out := ApplyRules(in)

	if !out.LowConfidence {
		t.Error("LowConfidence = false, want true")
	}
	if !strings.Contains(out.LowConfidenceNote, "overall confidence 0.50 < 0.65") {
		t.Errorf("LowConfidenceNote = %q, want overall reason", out.LowConfidenceNote)
	}
}

func TestApplyRulesSanitizesVocabulary(t *testing.T) {
	in := &models.Enrichment{
		FunctionalRoles:   []string{"Wizard", "Programme Management"},
		ImpactDomains:     []string{"blockchain", "climate_action"},
		ImpactConfidences: map[string]float64{"blockchain": 0.99, "climate_action": 0.90},
		ExperienceLevel:   "ninja",
		SDGs:              []int{0, 13, 42},
		SDGConfidences:    map[string]float64{"13": 1.5},
		OverallConfidence: 0.85,
	}

	out := ApplyRules(in)

	if want := []string{"programme management"}; !reflect.DeepEqual(out.FunctionalRoles, want) {
		t.Errorf("FunctionalRoles = %v, want %v", out.FunctionalRoles, want)
	}
	if want := []string{"climate_action"}; !reflect.DeepEqual(out.ImpactDomains, want) {
		t.Errorf("ImpactDomains = %v, want %v", out.ImpactDomains, want)
	}
	if out.ExperienceLevel != "" {
		t.Errorf("ExperienceLevel = %q, want cleared", out.ExperienceLevel)
	}
	// SDG 13's out-of-range confidence was nulled, so the floor drops it;
	// 0 and 42 are not valid goals.
	if len(out.SDGs) != 0 {
		t.Errorf("SDGs = %v, want empty", out.SDGs)
	}
}

func TestApplyRulesIdempotent(t *testing.T) {
	in := &models.Enrichment{
		FunctionalRoles: []string{"meal/research/evidence"},
		SDGs:            []int{4, 5, 13},
		SDGConfidences: map[string]float64{
			"4":  0.88,
			"5":  0.70,
			"13": 0.91,
		},
		ImpactDomains:     []string{"climate_action", "education"},
		ImpactConfidences: map[string]float64{"climate_action": 0.80, "education": 0.40},
		ExperienceLevel:   "senior",
		ExperienceConf:    0.90,
		OverallConfidence: 0.60,
	}

	once := ApplyRules(in)
	twice := ApplyRules(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed the block:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestApplyRulesDoesNotMutateInput(t *testing.T) {
	in := &models.Enrichment{
		SDGs:              []int{4, 5, 13},
		SDGConfidences:    map[string]float64{"4": 0.82, "5": 0.55, "13": 0.91},
		OverallConfidence: 0.85,
	}

	ApplyRules(in)

	if want := []int{4, 5, 13}; !reflect.DeepEqual(in.SDGs, want) {
		t.Errorf("input SDGs mutated to %v", in.SDGs)
	}
	if _, ok := in.SDGConfidences["5"]; !ok {
		t.Error("input SDGConfidences lost an entry")
	}
}
