package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/models"
)

// labeledField binds page labels to an extraction field. Deadlines parse
// with prefer-future; posted dates do not.
type labeledField struct {
	field        string
	labels       []string
	isDate       bool
	preferFuture bool
}

var labeledFields = []labeledField{
	{models.FieldLocation, []string{"location", "duty station", "duty location", "based in"}, false, false},
	{models.FieldDeadline, []string{"deadline", "closing date", "apply by", "applications close"}, true, true},
	{models.FieldPostedOn, []string{"posted on", "date posted", "published", "posting date"}, true, false},
}

// extractLabeled walks dt/th/label/span elements looking for field labels
// and reads the adjacent sibling's text. Matches propose at the heuristic
// tier.
func extractLabeled(doc *goquery.Document, result *models.ExtractionResult) {
	doc.Find("dt, th, label, span").Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s.Text()), ":")))
		if label == "" || len(label) > 40 {
			return
		}
		for _, lf := range labeledFields {
			if !matchesLabel(label, lf.labels) {
				continue
			}
			value := adjacentText(s)
			if value == "" {
				continue
			}
			if lf.isDate {
				parsed, ok := ParseFlexibleDate(value, lf.preferFuture)
				if !ok {
					continue
				}
				value = parsed
			}
			fr := models.NewFieldResult(value, models.FieldSourceHeuristic)
			fr.RawSnippet = truncateSnippet(s.Text() + ": " + value)
			result.Propose(lf.field, fr)
		}
	})
}

func matchesLabel(label string, candidates []string) bool {
	for _, c := range candidates {
		if label == c {
			return true
		}
	}
	return false
}

// adjacentText returns the text of the element's next sibling: dd for dt,
// td for th, and the next element otherwise.
func adjacentText(s *goquery.Selection) string {
	next := s.Next()
	if next.Length() == 0 {
		next = s.Parent().Next()
	}
	text := strings.TrimSpace(next.Text())
	if len(text) > 120 {
		return ""
	}
	return text
}

var (
	regexDeadlineRe = regexp.MustCompile(`(?i)(?:deadline|closing(?:\s+date)?|apply by|due date)[:\s]+([A-Za-z0-9 ,./-]{4,40})`)
	regexLocationRe = regexp.MustCompile(`(?i)(?:location|duty station|based in)[:\s]+([A-Z][A-Za-z ,.'()/-]{1,60})`)
)

// extractRegex is the last-resort pattern pass over the page's full text.
func extractRegex(doc *goquery.Document, result *models.ExtractionResult) {
	text := doc.Text()

	if m := regexDeadlineRe.FindStringSubmatch(text); m != nil {
		if parsed, ok := ParseFlexibleDate(strings.TrimSpace(m[1]), true); ok {
			fr := models.NewFieldResult(parsed, models.FieldSourceRegex)
			fr.RawSnippet = truncateSnippet(m[0])
			result.Propose(models.FieldDeadline, fr)
		}
	}
	if m := regexLocationRe.FindStringSubmatch(text); m != nil {
		fr := models.NewFieldResult(strings.TrimSpace(m[1]), models.FieldSourceRegex)
		fr.RawSnippet = truncateSnippet(m[0])
		result.Propose(models.FieldLocation, fr)
	}
}

func truncateSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 160 {
		return s[:160]
	}
	return s
}
