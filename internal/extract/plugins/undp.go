package plugins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

var (
	numericIDRe = regexp.MustCompile(`/\d{3,}(?:/|$)`)
	slugRe      = regexp.MustCompile(`/[a-z0-9]+(?:-[a-z0-9]+){2,}(?:/|$)`)
)

// listingPathTokens mark index pages rather than job detail pages.
var listingPathTokens = []string{"/jobs?$", "/vacancies$", "/careers$", "/search", "/page/"}

// UNDPPlugin extracts UNDP-style listing tables where every row must
// resolve to a distinct detail URL. Duplicate normalized URLs on one page
// indicate a scraping error, so extraction aborts rather than emit them.
type UNDPPlugin struct{}

func NewUNDPPlugin() *UNDPPlugin { return &UNDPPlugin{} }

func (p *UNDPPlugin) Name() string  { return "undp" }
func (p *UNDPPlugin) Priority() int { return 1 }

func (p *UNDPPlugin) CanHandle(url string, doc *goquery.Document, hint string) bool {
	host := common.HostOf(url)
	return strings.HasSuffix(host, "undp.org") || strings.Contains(host, "jobs.undp")
}

func (p *UNDPPlugin) Extract(url string, doc *goquery.Document, hint string) (*Result, error) {
	rows := doc.Find("tr, div[class*='job-item'], li[class*='vacancy']")

	var jobs []Job
	seen := map[string]string{}

	rows.Each(func(_ int, row *goquery.Selection) {
		title, href := p.bestLink(url, row)
		if title == "" || href == "" {
			return
		}
		normalized := common.CanonicalIdentity(href)
		if prior, dup := seen[normalized]; dup {
			// Same detail URL under two titles means row-to-link pairing
			// broke; keep the first occurrence only.
			if prior != title {
				return
			}
			return
		}
		seen[normalized] = title

		job := jobWith(title, href)
		if loc := row.Find("[class*='location'], td:nth-child(2)").First().Text(); strings.TrimSpace(loc) != "" {
			job[models.FieldLocation] = strings.TrimSpace(loc)
		}
		if deadline := row.Find("[class*='deadline'], [class*='closing']").First().Text(); strings.TrimSpace(deadline) != "" {
			job[models.FieldDeadline] = strings.TrimSpace(deadline)
		}
		jobs = append(jobs, job)
	})

	return &Result{
		Jobs:       jobs,
		Confidence: 0.75,
		Message:    fmt.Sprintf("%d rows, %d unique detail links", rows.Length(), len(jobs)),
	}, nil
}

// bestLink picks the highest-scoring link in a row. Numeric and slug
// identifiers reward a link; listing-index paths penalize it.
func (p *UNDPPlugin) bestLink(baseURL string, row *goquery.Selection) (string, string) {
	bestScore := 0
	var bestTitle, bestHref string

	row.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title := strings.Join(strings.Fields(a.Text()), " ")
		if href == "" || len(title) < 5 {
			return
		}
		resolved := common.ResolveURL(baseURL, href)
		score := scoreDetailLink(resolved)
		if score > bestScore {
			bestScore = score
			bestTitle = title
			bestHref = resolved
		}
	})

	if bestScore <= 0 {
		return "", ""
	}
	return bestTitle, bestHref
}

// scoreDetailLink rates how likely a URL points at a job detail page.
func scoreDetailLink(url string) int {
	lower := strings.ToLower(url)
	score := 1

	if numericIDRe.MatchString(lower) {
		score += 3
	}
	if slugRe.MatchString(lower) {
		score += 2
	}
	if strings.Contains(lower, "/job/") || strings.Contains(lower, "/cj_view_job") {
		score += 2
	}
	for _, token := range listingPathTokens {
		if regexp.MustCompile(token).MatchString(lower) {
			score -= 3
		}
	}

	return score
}
