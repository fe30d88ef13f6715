package common

import "testing"

func TestNormalizeApplyURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "trailing slash stripped",
			raw:  "https://careers.undp.org/p/123/",
			want: "https://careers.undp.org/p/123",
		},
		{
			name: "query dropped",
			raw:  "https://careers.undp.org/p/123?src=rss",
			want: "https://careers.undp.org/p/123",
		},
		{
			name: "fragment dropped",
			raw:  "https://careers.undp.org/p/123#details",
			want: "https://careers.undp.org/p/123",
		},
		{
			name: "host lowercased",
			raw:  "https://Careers.UNDP.org/p/123",
			want: "https://careers.undp.org/p/123",
		},
		{
			name: "path case preserved",
			raw:  "https://example.org/Jobs/Officer",
			want: "https://example.org/Jobs/Officer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeApplyURL(tt.raw); got != tt.want {
				t.Errorf("NormalizeApplyURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeApplyURLCollapsesVariants(t *testing.T) {
	variants := []string{
		"https://careers.undp.org/p/123",
		"https://careers.undp.org/p/123/",
		"https://careers.undp.org/p/123?src=rss",
		"https://careers.undp.org/p/123?utm_source=feed#apply",
	}

	first := NormalizeApplyURL(variants[0])
	for _, v := range variants[1:] {
		if got := NormalizeApplyURL(v); got != first {
			t.Errorf("NormalizeApplyURL(%q) = %q, want %q", v, got, first)
		}
	}
}

func TestCanonicalIdentity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "host and path only",
			raw:  "https://jobs.example.org/vacancies/officer/",
			want: "jobs.example.org/vacancies/officer",
		},
		{
			name: "tracking params ignored",
			raw:  "https://jobs.example.org/vacancies/officer?utm_source=x&ref=feed",
			want: "jobs.example.org/vacancies/officer",
		},
		{
			name: "id param preserved",
			raw:  "https://jobs.example.org/view?id=4411&utm_source=x",
			want: "jobs.example.org/view?id=4411",
		},
		{
			name: "jobid param preserved",
			raw:  "https://jobs.example.org/view?jobid=99",
			want: "jobs.example.org/view?jobid=99",
		},
		{
			name: "host lowercased",
			raw:  "https://Jobs.Example.ORG/view?id=4411",
			want: "jobs.example.org/view?id=4411",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalIdentity(tt.raw); got != tt.want {
				t.Errorf("CanonicalIdentity(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{
			name: "relative path",
			base: "https://example.org/jobs/",
			href: "view/123",
			want: "https://example.org/jobs/view/123",
		},
		{
			name: "absolute path",
			base: "https://example.org/jobs/page2",
			href: "/careers/123",
			want: "https://example.org/careers/123",
		},
		{
			name: "already absolute",
			base: "https://example.org/jobs",
			href: "https://other.org/p/1",
			want: "https://other.org/p/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.base, tt.href); got != tt.want {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
			}
		})
	}
}

func TestHostOf(t *testing.T) {
	if got := HostOf("https://Careers.UNDP.org/p/1"); got != "careers.undp.org" {
		t.Errorf("HostOf() = %q", got)
	}
	if got := HostOf("://bad"); got != "" {
		t.Errorf("HostOf(invalid) = %q, want empty", got)
	}
}
