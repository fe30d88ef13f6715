package common

import (
	"net/url"
	"strings"
)

// idLikeParams are query parameters that carry posting identity and are
// preserved when building canonical identifiers.
var idLikeParams = []string{"id", "jobid", "job_id", "jid", "posting", "vacancy", "req", "reqid"}

// NormalizeApplyURL canonicalizes an apply URL for duplicate comparison:
// lowercased host, trailing slash stripped, fragment and query dropped.
// Two extracted jobs on one page must never share a normalized URL.
func NormalizeApplyURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// CanonicalIdentity returns host+path plus any id-like query parameters,
// the stable string hashed into a job's canonical ID.
func CanonicalIdentity(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(strings.TrimRight(u.Path, "/"))
	q := u.Query()
	for _, p := range idLikeParams {
		if v := q.Get(p); v != "" {
			b.WriteString("?")
			b.WriteString(p)
			b.WriteString("=")
			b.WriteString(v)
			break
		}
	}
	return b.String()
}

// ResolveURL resolves a possibly-relative href against a base URL.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// HostOf extracts the lowercased host from a URL, or empty.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
