package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/aidjobs/harvester/internal/models"
)

// extractJSONLD scans ld+json scripts for JobPosting items and proposes
// fields at the jsonld tier. The first JobPosting found wins; structured
// data pages rarely carry more than one.
func extractJSONLD(doc *goquery.Document, result *models.ExtractionResult) {
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		parsed := gjson.Parse(s.Text())
		if !parsed.Exists() {
			return true
		}
		for _, item := range flattenLDNodes(parsed) {
			if !isJobPosting(item) {
				continue
			}
			proposeJobPosting(item, result)
			return false
		}
		return true
	})
}

// flattenLDNodes unwraps top-level arrays, @graph containers, and
// itemListElement lists into a flat node list.
func flattenLDNodes(node gjson.Result) []gjson.Result {
	var nodes []gjson.Result

	var walk func(n gjson.Result)
	walk = func(n gjson.Result) {
		if n.IsArray() {
			for _, child := range n.Array() {
				walk(child)
			}
			return
		}
		if graph := n.Get("@graph"); graph.Exists() {
			walk(graph)
		}
		if list := n.Get("itemListElement"); list.Exists() {
			for _, entry := range list.Array() {
				if item := entry.Get("item"); item.Exists() {
					walk(item)
				} else {
					walk(entry)
				}
			}
		}
		nodes = append(nodes, n)
	}
	walk(node)

	return nodes
}

// isJobPosting matches @type values of "JobPosting" whether scalar or
// array valued.
func isJobPosting(node gjson.Result) bool {
	t := node.Get("@type")
	if !t.Exists() {
		return false
	}
	if t.IsArray() {
		for _, v := range t.Array() {
			if strings.EqualFold(v.String(), "JobPosting") {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(t.String(), "JobPosting")
}

func proposeJobPosting(item gjson.Result, result *models.ExtractionResult) {
	propose := func(field, value string) {
		result.Propose(field, models.NewFieldResult(strings.TrimSpace(value), models.FieldSourceJSONLD))
	}

	propose(models.FieldTitle, item.Get("title").String())

	org := item.Get("hiringOrganization.name").String()
	if org == "" {
		org = item.Get("hiringOrganization.legalName").String()
	}
	propose(models.FieldEmployer, org)

	propose(models.FieldLocation, ldLocation(item))

	if posted := item.Get("datePosted").String(); posted != "" {
		propose(models.FieldPostedOn, NormalizeISODate(posted))
	}
	deadline := item.Get("validThrough").String()
	if deadline == "" {
		deadline = item.Get("applicationDeadline").String()
	}
	if deadline != "" {
		propose(models.FieldDeadline, NormalizeISODate(deadline))
	}

	propose(models.FieldDescription, descriptionMarkdown(item.Get("description").String()))
	propose(models.FieldApplicationURL, item.Get("url").String())
}

// ldLocation joins jobLocation address parts with commas. jobLocation may
// be a single object or an array; the first address wins.
func ldLocation(item gjson.Result) string {
	loc := item.Get("jobLocation")
	if loc.IsArray() {
		arr := loc.Array()
		if len(arr) == 0 {
			return ""
		}
		loc = arr[0]
	}
	addr := loc.Get("address")
	parts := make([]string, 0, 3)
	for _, key := range []string{"addressLocality", "addressRegion", "addressCountry"} {
		v := addr.Get(key)
		// addressCountry may itself be an object with a name.
		s := v.String()
		if v.IsObject() {
			s = v.Get("name").String()
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
