package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/models"
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

func stripHTMLTags(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, " "))
}

// extractMeta proposes title and description from OpenGraph tags, the
// document title, and the description meta tag.
func extractMeta(doc *goquery.Document, result *models.ExtractionResult) {
	propose := func(field, value string) {
		result.Propose(field, models.NewFieldResult(strings.TrimSpace(value), models.FieldSourceMeta))
	}

	if v, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		propose(models.FieldTitle, v)
	} else {
		propose(models.FieldTitle, cleanDocumentTitle(doc.Find("title").First().Text()))
	}

	if v, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
		propose(models.FieldDescription, v)
	} else if v, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		propose(models.FieldDescription, v)
	}
}

// cleanDocumentTitle drops the trailing site-name segment that most CMSes
// append after a dash or pipe.
func cleanDocumentTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" | ", " - ", " – "} {
		if idx := strings.Index(title, sep); idx > 10 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}
