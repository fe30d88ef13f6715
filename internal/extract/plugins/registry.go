// Package plugins holds the site-specific DOM extraction strategies used
// by stage four of the extraction pipeline. Plugins are registered in a
// priority-ordered registry; the first plugin that can handle a page is
// the one that extracts it.
package plugins

import (
	"sort"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/models"
)

// Job is one extracted posting, keyed by extraction field names.
type Job map[string]string

// Result is a plugin's output for one page.
type Result struct {
	Jobs       []Job
	Confidence float64
	Message    string
	Metadata   map[string]string
}

// Plugin extracts jobs from pages it recognizes. Plugins are read-only
// after registration; the hint is the source's optional CSS selector.
type Plugin interface {
	Name() string
	Priority() int
	CanHandle(url string, doc *goquery.Document, hint string) bool
	Extract(url string, doc *goquery.Document, hint string) (*Result, error)
}

// Registry is the ordered plugin list. Lower priority numbers run first.
type Registry struct {
	plugins []Plugin
}

// NewRegistry builds a registry from the given plugins, sorted by
// priority.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: append([]Plugin(nil), plugins...)}
	sort.SliceStable(r.plugins, func(i, j int) bool {
		return r.plugins[i].Priority() < r.plugins[j].Priority()
	})
	return r
}

// DefaultRegistry returns the built-in plugin set: the site-specific
// extractors plus the generic fallback at priority 10.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewUNDPPlugin(),
		NewUNESCOPlugin(),
		NewUNICEFPlugin(),
		NewAmnestyPlugin(),
		NewSaveTheChildrenPlugin(),
		NewGenericPlugin(),
	)
}

// Find returns the first plugin that can handle the page, or nil.
func (r *Registry) Find(url string, doc *goquery.Document, hint string) Plugin {
	for _, p := range r.plugins {
		if p.CanHandle(url, doc, hint) {
			return p
		}
	}
	return nil
}

// Names lists registered plugin names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name()
	}
	return names
}

func jobWith(title, applyURL string) Job {
	return Job{
		models.FieldTitle:          title,
		models.FieldApplicationURL: applyURL,
	}
}
