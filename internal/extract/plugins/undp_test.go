package plugins

import (
	"testing"

	"github.com/aidjobs/harvester/internal/models"
)

func TestUNDPCanHandle(t *testing.T) {
	p := NewUNDPPlugin()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://careers.undp.org/cj_view_jobs.cfm", true},
		{"https://jobs.undp.org/list", true},
		{"https://www.undp.org/jobs", true},
		{"https://example.org/undp", false},
		{"https://undp.example.org/jobs", false},
	}

	for _, tt := range tests {
		if got := p.CanHandle(tt.url, nil, ""); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestUNDPExtractDropsDuplicateDetailLinks(t *testing.T) {
	doc := docFrom(t, `<table>
<tr>
  <td><a href="/cj_view_job.cfm?job_id=118001">Programme Analyst</a></td>
  <td>Bangkok</td>
  <td class="deadline">2026-04-10</td>
</tr>
<tr>
  <td><a href="/cj_view_job.cfm?job_id=118002">Policy Specialist</a></td>
  <td>New York</td>
  <td class="deadline">2026-04-20</td>
</tr>
<tr>
  <td><a href="/cj_view_job.cfm?job_id=118001">Different Title Same Link</a></td>
  <td>Oslo</td>
</tr>
</table>`)

	res, err := NewUNDPPlugin().Extract("https://careers.undp.org/vacancies", doc, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Jobs) != 2 {
		t.Fatalf("got %d jobs, want duplicate detail link dropped: %v", len(res.Jobs), res.Jobs)
	}

	first := res.Jobs[0]
	if first[models.FieldTitle] != "Programme Analyst" {
		t.Errorf("title = %q", first[models.FieldTitle])
	}
	if first[models.FieldLocation] != "Bangkok" {
		t.Errorf("location = %q", first[models.FieldLocation])
	}
	if first[models.FieldDeadline] != "2026-04-10" {
		t.Errorf("deadline = %q", first[models.FieldDeadline])
	}
}

func TestUNDPRowsWithoutDetailLinksSkipped(t *testing.T) {
	doc := docFrom(t, `<table>
<tr><td><a href="/vacancies">All current vacancies</a></td><td>n/a</td></tr>
</table>`)

	res, err := NewUNDPPlugin().Extract("https://careers.undp.org/", doc, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Jobs) != 0 {
		t.Errorf("listing-index link produced %d jobs, want none", len(res.Jobs))
	}
}

func TestScoreDetailLink(t *testing.T) {
	detail := scoreDetailLink("https://careers.undp.org/cj_view_job.cfm?job_id=118001")
	index := scoreDetailLink("https://careers.undp.org/vacancies")
	numeric := scoreDetailLink("https://jobs.undp.org/posting/118001/")
	slug := scoreDetailLink("https://www.undp.org/jobs/programme-analyst-bangkok")

	if detail <= index {
		t.Errorf("detail link scored %d, index %d", detail, index)
	}
	if numeric <= 1 {
		t.Errorf("numeric ID path scored %d, want boost", numeric)
	}
	if slug <= 1 {
		t.Errorf("slug path scored %d, want boost", slug)
	}
	if index > 0 {
		t.Errorf("listing index scored %d, want non-positive", index)
	}
}
