package extract

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/models"
)

var descriptionConverter = md.NewConverter("", true, nil)

// descriptionMarkdown converts an HTML fragment to markdown so stored
// descriptions keep their lists and headings. Plain text passes through;
// input the converter rejects falls back to tag stripping.
func descriptionMarkdown(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	out, err := descriptionConverter.ConvertString(s)
	if err != nil {
		return stripHTMLTags(s)
	}
	return strings.TrimSpace(out)
}

// descriptionSelectors mark the containers that usually hold the posting
// body on a detail page, most specific first.
var descriptionSelectors = []string{
	"[itemprop='description']",
	".job-description",
	"[class*='job-detail']",
	"article",
}

// extractDescription proposes the detail page body as markdown at the dom
// tier. The first selector holding a substantial block wins; short blocks
// are navigation chrome, not posting text.
func extractDescription(doc *goquery.Document, result *models.ExtractionResult) {
	for _, sel := range descriptionSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		html, err := node.Html()
		if err != nil {
			continue
		}
		text := descriptionMarkdown(html)
		if len(text) < 80 {
			continue
		}
		result.Propose(models.FieldDescription, models.NewFieldResult(text, models.FieldSourceDOM))
		return
	}
}
