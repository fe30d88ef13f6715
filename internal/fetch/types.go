package fetch

import (
	"net/http"
	"time"
)

// ErrorKind categorizes fetch failures for the orchestrator's retry and
// crawl-log decisions.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindAuthentication ErrorKind = "authentication" // 401
	ErrorKindAuthorization  ErrorKind = "authorization"  // 403
	ErrorKindNotFound       ErrorKind = "not_found"      // 404
	ErrorKindRateLimit      ErrorKind = "rate_limit"     // 429
	ErrorKindServerError    ErrorKind = "server_error"   // 5xx
	ErrorKindClientError    ErrorKind = "client_error"   // other 4xx
	ErrorKindNetwork        ErrorKind = "network"        // transport failure
	ErrorKindRobots         ErrorKind = "robots"         // robots disallow
	ErrorKindPolicy         ErrorKind = "policy"         // missing secret, schema mismatch
)

// CategorizeStatus maps an HTTP status code to an error kind. 2xx and 304
// map to none.
func CategorizeStatus(status int) ErrorKind {
	switch {
	case status >= 200 && status < 300, status == http.StatusNotModified:
		return ErrorKindNone
	case status == http.StatusUnauthorized:
		return ErrorKindAuthentication
	case status == http.StatusForbidden:
		return ErrorKindAuthorization
	case status == http.StatusNotFound:
		return ErrorKindNotFound
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case status >= 500:
		return ErrorKindServerError
	case status >= 400:
		return ErrorKindClientError
	case status == 0:
		return ErrorKindNetwork
	default:
		return ErrorKindNone
	}
}

// Result is the common fetch primitive output. Transport errors are
// absorbed into synthetic status codes: 0 on network error, 403 on robots
// disallow, 304 on a conditional GET hit.
type Result struct {
	URL          string
	Status       int
	Headers      http.Header
	Body         []byte
	Size         int
	NotModified  bool
	Truncated    bool
	Rendered     bool // body came from the browser fallback
	ETag         string
	LastModified string
	Kind         ErrorKind
	Message      string
	Duration     time.Duration
}

// OK reports whether the fetch produced a usable body.
func (r *Result) OK() bool {
	return r.Kind == ErrorKindNone && !r.NotModified && r.Status >= 200 && r.Status < 300
}

// Conditional carries validators from the previous successful fetch.
type Conditional struct {
	ETag         string
	LastModified string
}

// RawRecord is one structured record produced by the RSS and API fetchers,
// keyed by extraction field names. HTML sources skip this and stream the
// body through the extraction pipeline instead.
type RawRecord map[string]string
