package plugins

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

// navStopwords filter out navigation links during the substantial-link
// strategy.
var navStopwords = map[string]bool{
	"home": true, "about": true, "about us": true, "contact": true,
	"contact us": true, "login": true, "register": true, "search": true,
	"privacy policy": true, "terms": true, "sitemap": true, "donate": true,
	"news": true, "events": true, "read more": true, "learn more": true,
	"next": true, "previous": true, "back": true,
}

// headerAliases map table header text to extraction fields for the
// header-mapped table strategy.
var headerAliases = map[string]string{
	"title": models.FieldTitle, "position": models.FieldTitle,
	"job title": models.FieldTitle, "vacancy": models.FieldTitle,
	"location": models.FieldLocation, "duty station": models.FieldLocation,
	"deadline": models.FieldDeadline, "closing date": models.FieldDeadline,
	"posted": models.FieldPostedOn, "date posted": models.FieldPostedOn,
	"organization": models.FieldEmployer, "employer": models.FieldEmployer,
}

// GenericPlugin is the priority-10 fallback. It tries strategies in
// order: header-mapped tables, job-class containers, substantial links,
// and JobPosting microdata.
type GenericPlugin struct{}

func NewGenericPlugin() *GenericPlugin { return &GenericPlugin{} }

func (p *GenericPlugin) Name() string  { return "generic" }
func (p *GenericPlugin) Priority() int { return 10 }

// CanHandle always accepts; the generic plugin is the cascade's floor.
func (p *GenericPlugin) CanHandle(url string, doc *goquery.Document, hint string) bool {
	return true
}

func (p *GenericPlugin) Extract(url string, doc *goquery.Document, hint string) (*Result, error) {
	// A source-configured selector overrides strategy selection.
	if hint != "" {
		if jobs := p.fromSelector(url, doc, hint); len(jobs) > 0 {
			return &Result{Jobs: jobs, Confidence: 0.75, Message: "selector hint"}, nil
		}
	}

	strategies := []struct {
		name string
		run  func(string, *goquery.Document) []Job
	}{
		{"table", p.fromTables},
		{"containers", p.fromContainers},
		{"links", p.fromLinks},
		{"microdata", p.fromMicrodata},
	}
	for _, s := range strategies {
		if jobs := s.run(url, doc); len(jobs) > 0 {
			return &Result{Jobs: jobs, Confidence: 0.70, Message: s.name}, nil
		}
	}

	return &Result{Message: "no strategy matched"}, nil
}

func (p *GenericPlugin) fromSelector(url string, doc *goquery.Document, selector string) []Job {
	var jobs []Job
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		link := s
		if !s.Is("a") {
			link = s.Find("a").First()
		}
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(s.Text())
		}
		if href == "" || title == "" {
			return
		}
		jobs = append(jobs, jobWith(title, common.ResolveURL(url, href)))
	})
	return jobs
}

// fromTables finds tables whose header row maps to known fields and reads
// each body row through that mapping.
func (p *GenericPlugin) fromTables(url string, doc *goquery.Document) []Job {
	var jobs []Job
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		columns := map[int]string{}
		table.Find("tr").First().Find("th, td").Each(func(i int, th *goquery.Selection) {
			header := strings.ToLower(strings.TrimSpace(th.Text()))
			if field, ok := headerAliases[header]; ok {
				columns[i] = field
			}
		})
		if _, hasTitle := columnsHaveTitle(columns); !hasTitle {
			return true
		}

		table.Find("tr").Each(func(rowIdx int, tr *goquery.Selection) {
			if rowIdx == 0 {
				return
			}
			job := Job{}
			tr.Find("td").Each(func(i int, td *goquery.Selection) {
				field, ok := columns[i]
				if !ok {
					return
				}
				job[field] = strings.TrimSpace(td.Text())
				if field == models.FieldTitle {
					if href, ok := td.Find("a").First().Attr("href"); ok {
						job[models.FieldApplicationURL] = common.ResolveURL(url, href)
					}
				}
			})
			if job[models.FieldTitle] != "" {
				jobs = append(jobs, job)
			}
		})
		return len(jobs) == 0
	})
	return jobs
}

func columnsHaveTitle(columns map[int]string) (int, bool) {
	for i, f := range columns {
		if f == models.FieldTitle {
			return i, true
		}
	}
	return 0, false
}

// fromContainers reads divs and list items whose class names suggest job
// listings.
func (p *GenericPlugin) fromContainers(url string, doc *goquery.Document) []Job {
	var jobs []Job
	selector := "div[class*='job'], div[class*='vacanc'], li[class*='job'], li[class*='vacanc'], article[class*='job']"
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h1, h2, h3, h4").First().Text())
		}
		if len(title) < 5 {
			return
		}
		job := jobWith(title, common.ResolveURL(url, href))
		if loc := s.Find("[class*='location']").First().Text(); strings.TrimSpace(loc) != "" {
			job[models.FieldLocation] = strings.TrimSpace(loc)
		}
		jobs = append(jobs, job)
	})
	return jobs
}

// fromLinks collects substantial links in the main content area: anchor
// text of at least ten characters that is not a navigation stopword.
func (p *GenericPlugin) fromLinks(url string, doc *goquery.Document) []Job {
	scope := doc.Find("main, #content, .content, #main").First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var jobs []Job
	seen := map[string]bool{}
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		title := strings.Join(strings.Fields(a.Text()), " ")
		if len(title) < 10 || navStopwords[strings.ToLower(title)] {
			return
		}
		href, _ := a.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved := common.ResolveURL(url, href)
		normalized := common.NormalizeApplyURL(resolved)
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		jobs = append(jobs, jobWith(title, resolved))
	})

	// A page of two links is navigation, not a listing.
	if len(jobs) < 3 {
		return nil
	}
	return jobs
}

// fromMicrodata reads schema.org JobPosting microdata markup.
func (p *GenericPlugin) fromMicrodata(url string, doc *goquery.Document) []Job {
	var jobs []Job
	doc.Find("[itemtype*='JobPosting']").Each(func(_ int, s *goquery.Selection) {
		job := Job{}
		s.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			value := strings.TrimSpace(prop.Text())
			switch name {
			case "title":
				job[models.FieldTitle] = value
			case "hiringOrganization", "name":
				if job[models.FieldEmployer] == "" {
					job[models.FieldEmployer] = value
				}
			case "jobLocation", "addressLocality":
				if job[models.FieldLocation] == "" {
					job[models.FieldLocation] = value
				}
			case "datePosted":
				job[models.FieldPostedOn] = value
			case "validThrough":
				job[models.FieldDeadline] = value
			case "url":
				if href, ok := prop.Attr("href"); ok {
					job[models.FieldApplicationURL] = common.ResolveURL(url, href)
				}
			}
		})
		if job[models.FieldApplicationURL] == "" {
			if href, ok := s.Find("a").First().Attr("href"); ok {
				job[models.FieldApplicationURL] = common.ResolveURL(url, href)
			}
		}
		if job[models.FieldTitle] != "" {
			jobs = append(jobs, job)
		}
	})
	return jobs
}
