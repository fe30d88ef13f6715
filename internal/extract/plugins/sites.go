package plugins

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
)

// siteSelectors binds one organization's career site to its listing
// selectors. The remaining built-ins share this shape; only UNDP needs
// bespoke logic.
type siteSelectors struct {
	name     string
	priority int
	hosts    []string
	item     string
	title    string
	location string
	deadline string
	employer string
}

type sitePlugin struct {
	cfg siteSelectors
}

func (p *sitePlugin) Name() string  { return p.cfg.name }
func (p *sitePlugin) Priority() int { return p.cfg.priority }

func (p *sitePlugin) CanHandle(url string, doc *goquery.Document, hint string) bool {
	host := common.HostOf(url)
	for _, h := range p.cfg.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (p *sitePlugin) Extract(url string, doc *goquery.Document, hint string) (*Result, error) {
	var jobs []Job
	doc.Find(p.cfg.item).Each(func(_ int, s *goquery.Selection) {
		link := s.Find(p.cfg.title).First()
		if link.Length() == 0 {
			link = s.Find("a").First()
		}
		href, _ := link.Attr("href")
		title := strings.Join(strings.Fields(link.Text()), " ")
		if href == "" || len(title) < 5 {
			return
		}

		job := jobWith(title, common.ResolveURL(url, href))
		if p.cfg.employer != "" {
			job[models.FieldEmployer] = p.cfg.employer
		}
		if p.cfg.location != "" {
			if v := strings.TrimSpace(s.Find(p.cfg.location).First().Text()); v != "" {
				job[models.FieldLocation] = v
			}
		}
		if p.cfg.deadline != "" {
			if v := strings.TrimSpace(s.Find(p.cfg.deadline).First().Text()); v != "" {
				job[models.FieldDeadline] = v
			}
		}
		jobs = append(jobs, job)
	})

	return &Result{Jobs: jobs, Confidence: 0.75}, nil
}

// NewUNESCOPlugin handles UNESCO's careers portal listing markup.
func NewUNESCOPlugin() Plugin {
	return &sitePlugin{cfg: siteSelectors{
		name:     "unesco",
		priority: 2,
		hosts:    []string{"careers.unesco.org", "unesco.org"},
		item:     "tr.data-row, div.job-tile",
		title:    "a.jobTitle-link, a[class*='title']",
		location: "span.jobLocation, [class*='location']",
		employer: "UNESCO",
	}}
}

// NewUNICEFPlugin handles UNICEF's employment site.
func NewUNICEFPlugin() Plugin {
	return &sitePlugin{cfg: siteSelectors{
		name:     "unicef",
		priority: 2,
		hosts:    []string{"jobs.unicef.org", "unicef.org"},
		item:     "div.list-item, article[class*='job']",
		title:    "a.job-link, h3 a",
		location: "[class*='location']",
		deadline: "[class*='deadline'], [class*='closing']",
		employer: "UNICEF",
	}}
}

// NewAmnestyPlugin handles Amnesty International's careers pages.
func NewAmnestyPlugin() Plugin {
	return &sitePlugin{cfg: siteSelectors{
		name:     "amnesty",
		priority: 2,
		hosts:    []string{"careers.amnesty.org", "amnesty.org"},
		item:     "li.vacancy, div[class*='vacancy']",
		title:    "a",
		location: "[class*='location']",
		deadline: "[class*='closing']",
		employer: "Amnesty International",
	}}
}

// NewSaveTheChildrenPlugin handles Save the Children's job boards.
func NewSaveTheChildrenPlugin() Plugin {
	return &sitePlugin{cfg: siteSelectors{
		name:     "savethechildren",
		priority: 2,
		hosts:    []string{"savethechildren.net", "savethechildren.org"},
		item:     "tr.job-row, div[class*='job-listing']",
		title:    "a",
		location: "[class*='location'], td:nth-child(2)",
		deadline: "[class*='closing'], td:nth-child(3)",
		employer: "Save the Children",
	}}
}
