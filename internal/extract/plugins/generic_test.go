package plugins

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/aidjobs/harvester/internal/models"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse test HTML: %v", err)
	}
	return doc
}

func TestGenericFromTables(t *testing.T) {
	doc := docFrom(t, `<table>
<tr><th>Job Title</th><th>Duty Station</th><th>Closing Date</th></tr>
<tr><td><a href="/p/1">Programme Officer</a></td><td>Geneva</td><td>2026-04-01</td></tr>
<tr><td><a href="/p/2">Field Coordinator</a></td><td>Juba</td><td>2026-04-15</td></tr>
<tr><td></td><td>empty row</td><td></td></tr>
</table>`)

	res, err := NewGenericPlugin().Extract("https://example.org/vacancies", doc, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Message != "table" {
		t.Fatalf("strategy = %q, want table", res.Message)
	}
	if len(res.Jobs) != 2 {
		t.Fatalf("got %d jobs, want 2 (titleless row dropped)", len(res.Jobs))
	}

	first := res.Jobs[0]
	if first[models.FieldTitle] != "Programme Officer" {
		t.Errorf("title = %q", first[models.FieldTitle])
	}
	if first[models.FieldLocation] != "Geneva" {
		t.Errorf("location = %q", first[models.FieldLocation])
	}
	if first[models.FieldDeadline] != "2026-04-01" {
		t.Errorf("deadline = %q", first[models.FieldDeadline])
	}
	if first[models.FieldApplicationURL] != "https://example.org/p/1" {
		t.Errorf("application_url = %q", first[models.FieldApplicationURL])
	}
}

func TestGenericSelectorHint(t *testing.T) {
	doc := docFrom(t, `<div class="custom-row"><a href="/p/9">Advocacy Adviser</a></div>
<div class="other"><a href="/nav">Ignore me please</a></div>`)

	res, err := NewGenericPlugin().Extract("https://example.org/jobs", doc, ".custom-row")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Message != "selector hint" {
		t.Fatalf("strategy = %q, want selector hint", res.Message)
	}
	if res.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", res.Confidence)
	}
	if len(res.Jobs) != 1 || res.Jobs[0][models.FieldTitle] != "Advocacy Adviser" {
		t.Errorf("jobs = %v", res.Jobs)
	}
}

func TestGenericFromLinks(t *testing.T) {
	doc := docFrom(t, `<main>
<a href="/p/1">Programme Officer, Education</a>
<a href="/p/2">Field Coordinator, South Sudan</a>
<a href="/p/3">MEAL Specialist, Amman</a>
<a href="/p/1?ref=dup">Programme Officer, Education</a>
<a href="/about">About us</a>
<a href="#top">Back to top of the page</a>
</main>`)

	res, err := NewGenericPlugin().Extract("https://example.org/careers", doc, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Message != "links" {
		t.Fatalf("strategy = %q, want links", res.Message)
	}
	// The duplicate normalized URL, the short nav link, and the fragment
	// link are all dropped.
	if len(res.Jobs) != 3 {
		t.Errorf("got %d jobs, want 3: %v", len(res.Jobs), res.Jobs)
	}
}

func TestGenericFromLinksRejectsSparsePages(t *testing.T) {
	doc := docFrom(t, `<main>
<a href="/p/1">Programme Officer, Education</a>
<a href="/p/2">Field Coordinator, South Sudan</a>
</main>`)

	res, err := NewGenericPlugin().Extract("https://example.org/careers", doc, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Jobs) != 0 {
		t.Errorf("two links produced %d jobs, want none", len(res.Jobs))
	}
	if res.Message != "no strategy matched" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestGenericFromMicrodata(t *testing.T) {
	doc := docFrom(t, `<div itemscope itemtype="https://schema.org/JobPosting">
<span itemprop="title">Nutrition Specialist</span>
<span itemprop="addressLocality">Dakar</span>
<span itemprop="datePosted">2026-02-01</span>
<a itemprop="url" href="/p/44">Apply</a>
</div>`)

	res, err := NewGenericPlugin().Extract("https://example.org/x", doc, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Message != "microdata" {
		t.Fatalf("strategy = %q, want microdata", res.Message)
	}
	job := res.Jobs[0]
	if job[models.FieldTitle] != "Nutrition Specialist" {
		t.Errorf("title = %q", job[models.FieldTitle])
	}
	if job[models.FieldLocation] != "Dakar" {
		t.Errorf("location = %q", job[models.FieldLocation])
	}
	if job[models.FieldApplicationURL] != "https://example.org/p/44" {
		t.Errorf("application_url = %q", job[models.FieldApplicationURL])
	}
}
