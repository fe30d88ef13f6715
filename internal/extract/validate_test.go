package extract

import (
	"testing"

	"github.com/aidjobs/harvester/internal/models"
)

func TestValidateResult(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantIssues []string
	}{
		{
			name: "clean result",
			fields: map[string]string{
				models.FieldTitle:    "Programme Officer",
				models.FieldPostedOn: "2026-02-01",
				models.FieldDeadline: "2026-03-01",
				models.FieldLocation: "Geneva",
			},
		},
		{
			name:       "missing title",
			fields:     map[string]string{models.FieldLocation: "Geneva"},
			wantIssues: []string{"missing title"},
		},
		{
			name: "deadline before posted",
			fields: map[string]string{
				models.FieldTitle:    "Officer",
				models.FieldPostedOn: "2026-03-01",
				models.FieldDeadline: "2026-02-01",
			},
			wantIssues: []string{"deadline before posted_on"},
		},
		{
			name: "placeholder location",
			fields: map[string]string{
				models.FieldTitle:    "Officer",
				models.FieldLocation: "TBD",
			},
			wantIssues: []string{"generic location placeholder"},
		},
		{
			name: "unparseable dates ignored",
			fields: map[string]string{
				models.FieldTitle:    "Officer",
				models.FieldPostedOn: "soon",
				models.FieldDeadline: "2026-02-01",
			},
		},
		{
			name:   "multiple issues accumulate",
			fields: map[string]string{models.FieldLocation: "n/a"},
			wantIssues: []string{
				"missing title",
				"generic location placeholder",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &models.ExtractionResult{}
			for field, value := range tt.fields {
				r.Propose(field, models.NewFieldResult(value, models.FieldSourceDOM))
			}

			validateResult(r)

			if len(r.Issues) != len(tt.wantIssues) {
				t.Fatalf("Issues = %v, want %v", r.Issues, tt.wantIssues)
			}
			for i, issue := range tt.wantIssues {
				if r.Issues[i] != issue {
					t.Errorf("Issues[%d] = %q, want %q", i, r.Issues[i], issue)
				}
			}
			if r.NeedsReview != (len(tt.wantIssues) > 0) {
				t.Errorf("NeedsReview = %v, want %v", r.NeedsReview, len(tt.wantIssues) > 0)
			}
		})
	}
}
