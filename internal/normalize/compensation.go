package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Compensation is the parsed salary block.
type Compensation struct {
	Visible    bool    `json:"visible"`
	Type       string  `json:"type,omitempty"` // annual, monthly, daily, hourly
	MinUSD     float64 `json:"min_usd,omitempty"`
	MaxUSD     float64 `json:"max_usd,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// usdRates is a small static conversion table. Taxonomy-driven rates are
// out of scope; the values only need to be roughly right for filtering.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"CHF": 1.12,
	"CAD": 0.73,
	"AUD": 0.65,
	"KES": 0.0077,
	"INR": 0.012,
	"XOF": 0.0016,
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

var (
	durationMonthRe = regexp.MustCompile(`(?i)(\d+)\s*month`)
	durationYearRe  = regexp.MustCompile(`(?i)(\d+)\s*year`)
	durationRangeRe = regexp.MustCompile(`(?i)(\d+)\s*(?:-|to)\s*(\d+)\s*(month|year)`)

	amountRe = regexp.MustCompile(`(?i)([$€£]|USD|EUR|GBP|CHF)\s?([\d,]+(?:\.\d+)?)(?:\s*(?:-|to)\s*(?:[$€£]|USD|EUR|GBP|CHF)?\s?([\d,]+(?:\.\d+)?))?`)
	periodRe = regexp.MustCompile(`(?i)\b(per\s+)?(annum|year|annual|month|monthly|day|daily|hour|hourly)\b`)
)

// ParseContractDuration extracts a contract length in months. Ranges take
// the maximum; years multiply by twelve.
func ParseContractDuration(text string) int {
	if m := durationRangeRe.FindStringSubmatch(text); m != nil {
		hi, _ := strconv.Atoi(m[2])
		if strings.HasPrefix(strings.ToLower(m[3]), "year") {
			return hi * 12
		}
		return hi
	}
	if m := durationYearRe.FindStringSubmatch(text); m != nil {
		years, _ := strconv.Atoi(m[1])
		return years * 12
	}
	if m := durationMonthRe.FindStringSubmatch(text); m != nil {
		months, _ := strconv.Atoi(m[1])
		return months
	}
	return 0
}

// ParseCompensation builds the salary block. Structured min/max fields
// yield 0.9 confidence; a text-regex hit yields 0.7. Amounts convert to
// USD via the static rate table.
func ParseCompensation(text string, structuredMin, structuredMax float64, structuredCurrency string) Compensation {
	if structuredMin > 0 || structuredMax > 0 {
		currency := strings.ToUpper(strings.TrimSpace(structuredCurrency))
		if currency == "" {
			currency = "USD"
		}
		return Compensation{
			Visible:    true,
			Type:       detectPeriod(text),
			MinUSD:     toUSD(structuredMin, currency),
			MaxUSD:     toUSD(structuredMax, currency),
			Currency:   currency,
			Confidence: 0.9,
		}
	}

	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return Compensation{Visible: false}
	}

	currency := strings.ToUpper(m[1])
	if mapped, ok := currencySymbols[m[1]]; ok {
		currency = mapped
	}
	lo := parseAmount(m[2])
	hi := lo
	if m[3] != "" {
		hi = parseAmount(m[3])
	}
	if hi < lo {
		lo, hi = hi, lo
	}

	return Compensation{
		Visible:    true,
		Type:       detectPeriod(text),
		MinUSD:     toUSD(lo, currency),
		MaxUSD:     toUSD(hi, currency),
		Currency:   currency,
		Confidence: 0.7,
	}
}

func parseAmount(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v
}

func toUSD(amount float64, currency string) float64 {
	rate, ok := usdRates[currency]
	if !ok {
		rate = 1.0
	}
	return amount * rate
}

func detectPeriod(text string) string {
	m := periodRe.FindStringSubmatch(text)
	if m == nil {
		return "annual"
	}
	switch strings.ToLower(m[2]) {
	case "month", "monthly":
		return "monthly"
	case "day", "daily":
		return "daily"
	case "hour", "hourly":
		return "hourly"
	default:
		return "annual"
	}
}
