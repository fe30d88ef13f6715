package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jobKeywords raise the classification score when found in page text or
// the URL path.
var jobKeywords = []string{
	"vacancy", "vacancies", "job", "jobs", "career", "careers",
	"position", "recruitment", "opening", "consultancy", "internship",
	"apply", "deadline", "duty station", "terms of reference",
}

// navTokens are generic navigation words that indicate an index or
// landing page rather than a posting.
var navTokens = []string{
	"home", "about us", "contact", "privacy policy", "sitemap",
	"newsletter", "donate", "press release",
}

var applyButtonSelectors = []string{
	"a[href*='apply']",
	"button[class*='apply']",
	"a[class*='apply']",
	"input[type='submit'][value*='Apply']",
}

// MLScorer optionally contributes to classification. When present it
// carries 30% of the final score.
type MLScorer interface {
	Score(url string, text string) float64
}

// Classifier scores how job-like a page is. Pages below 0.5 are marked
// non-job but still flow through extraction for reporting.
type Classifier struct {
	ml MLScorer
}

// NewClassifier creates a rule-based classifier with an optional ML scorer.
func NewClassifier(ml MLScorer) *Classifier {
	return &Classifier{ml: ml}
}

// Score returns the job-likeness of a page in [0,1].
func (c *Classifier) Score(url string, doc *goquery.Document) float64 {
	text := strings.ToLower(doc.Text())
	lowerURL := strings.ToLower(url)

	score := 0.0

	hits := 0
	for _, kw := range jobKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	switch {
	case hits >= 5:
		score += 0.4
	case hits >= 3:
		score += 0.3
	case hits >= 1:
		score += 0.15
	}

	for _, kw := range []string{"job", "career", "vacanc", "recruit", "position"} {
		if strings.Contains(lowerURL, kw) {
			score += 0.2
			break
		}
	}

	for _, sel := range applyButtonSelectors {
		if doc.Find(sel).Length() > 0 {
			score += 0.25
			break
		}
	}

	navHits := 0
	for _, token := range navTokens {
		if strings.Contains(text, token) {
			navHits++
		}
	}
	if navHits >= 4 {
		score -= 0.15
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	if c.ml != nil {
		score = score*0.7 + c.ml.Score(url, text)*0.3
	}

	return score
}
