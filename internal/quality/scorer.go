// Package quality scores job records before upsert. The score is a
// weighted completeness measure; the letter grade and needs_review flag
// are derived from it.
package quality

import (
	"time"

	"github.com/aidjobs/harvester/internal/models"
)

// factor weights sum to 1.0.
var factorWeights = map[string]float64{
	"title":       0.20,
	"employer":    0.15,
	"location":    0.15,
	"deadline":    0.15,
	"description": 0.20,
	"apply_url":   0.15,
}

// Score assesses one job and returns the filled quality block.
func Score(job *models.Job) *models.Quality {
	q := &models.Quality{Factors: make(map[string]float64)}

	q.Factors["title"] = scoreTitle(job.Title)
	q.Factors["employer"] = scorePresent(job.OrgName)
	q.Factors["location"] = scorePresent(job.LocationRaw)
	q.Factors["deadline"] = scoreDeadline(job.Deadline)
	q.Factors["description"] = scoreDescription(job.Description, job.Snippet)
	q.Factors["apply_url"] = scorePresent(job.ApplyURL)

	for name, weight := range factorWeights {
		q.Score += q.Factors[name] * weight
	}

	q.Grade = gradeFor(q.Score)
	if q.Score < 0.5 {
		q.Issues = append(q.Issues, "low completeness score")
	}
	if q.Factors["deadline"] == 0 && job.Deadline != "" {
		q.Issues = append(q.Issues, "deadline in the past")
	}
	q.NeedsReview = q.Score < 0.4 || len(q.Issues) > 1

	return q
}

func scoreTitle(title string) float64 {
	switch n := len(title); {
	case n == 0:
		return 0
	case n < 10:
		return 0.5
	case n > 150:
		return 0.6
	default:
		return 1
	}
}

func scorePresent(v string) float64 {
	if v == "" {
		return 0
	}
	return 1
}

func scoreDeadline(deadline string) float64 {
	if deadline == "" {
		return 0.3 // rolling deadlines are common, not absent data
	}
	t, err := time.Parse("2006-01-02", deadline)
	if err != nil {
		return 0
	}
	if t.Before(time.Now().AddDate(0, 0, -1)) {
		return 0
	}
	return 1
}

func scoreDescription(description, snippet string) float64 {
	n := len(description)
	if n == 0 {
		n = len(snippet)
	}
	switch {
	case n == 0:
		return 0
	case n < 200:
		return 0.4
	case n < 1000:
		return 0.8
	default:
		return 1
	}
}

func gradeFor(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.75:
		return "B"
	case score >= 0.6:
		return "C"
	case score >= 0.4:
		return "D"
	default:
		return "F"
	}
}
