package extract

import (
	"regexp"
	"strings"
	"time"
)

// dayFirstLayouts are tried in order. Numeric d/m/y is interpreted
// day-first, matching how the covered sites publish dates.
var dayFirstLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2 January 2006",
	"2 Jan 2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

var yearlessLayouts = []string{
	"2 January",
	"2 Jan",
}

var dateNoiseRe = regexp.MustCompile(`(?i)\b(\d+)(st|nd|rd|th)\b`)

// ParseFlexibleDate parses a human date string into YYYY-MM-DD. When
// preferFuture is set, yearless dates resolve to the next occurrence
// rather than the most recent one, which is what deadlines mean.
func ParseFlexibleDate(value string, preferFuture bool) (string, bool) {
	value = strings.TrimSpace(dateNoiseRe.ReplaceAllString(value, "$1"))
	if value == "" {
		return "", false
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	now := time.Now()
	for _, layout := range yearlessLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if preferFuture && t.Before(now.AddDate(0, 0, -1)) {
				t = t.AddDate(1, 0, 0)
			}
			return t.Format("2006-01-02"), true
		}
	}

	return "", false
}

// NormalizeISODate trims an ISO 8601 timestamp down to its date part.
func NormalizeISODate(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 10 {
		if t, err := time.Parse("2006-01-02", value[:10]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if parsed, ok := ParseFlexibleDate(value, false); ok {
		return parsed
	}
	return value
}
