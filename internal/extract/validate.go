package extract

import (
	"strings"
	"time"

	"github.com/aidjobs/harvester/internal/models"
)

// locationStopwords are placeholder values that need a human eye.
var locationStopwords = map[string]bool{
	"n/a":      true,
	"na":       true,
	"tbd":      true,
	"tbc":      true,
	"multiple": true,
	"various":  true,
}

// validateResult attaches review issues to a finished result. Issues flag
// the result for manual review; they never block the upsert.
func validateResult(result *models.ExtractionResult) {
	if result.Field(models.FieldTitle) == "" {
		result.Issues = append(result.Issues, "missing title")
	}

	posted := result.Field(models.FieldPostedOn)
	deadline := result.Field(models.FieldDeadline)
	if posted != "" && deadline != "" {
		p, errP := time.Parse("2006-01-02", posted)
		d, errD := time.Parse("2006-01-02", deadline)
		if errP == nil && errD == nil && d.Before(p) {
			result.Issues = append(result.Issues, "deadline before posted_on")
		}
	}

	loc := strings.ToLower(strings.TrimSpace(result.Field(models.FieldLocation)))
	if locationStopwords[loc] {
		result.Issues = append(result.Issues, "generic location placeholder")
	}

	result.NeedsReview = len(result.Issues) > 0
}
