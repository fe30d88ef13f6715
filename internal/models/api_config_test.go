package models

import (
	"reflect"
	"strings"
	"testing"
)

const validAPIConfig = `{
	"v": 1,
	"base_url": "https://jobs.example.org/api",
	"path": "/v2/postings",
	"data_path": "data.items",
	"map": {
		"title": "name",
		"application_url": "links.apply",
		"location": "duty_station"
	},
	"auth": {"type": "bearer", "token": "{{SECRET:EXAMPLE_TOKEN}}"},
	"pagination": {"mode": "page", "param": "page", "page_size": 50, "max_pages": 4},
	"query": {"org": "{{SECRET:ORG_ID}}"}
}`

func TestParseAPIConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name: "valid v1 config",
			raw:  validAPIConfig,
		},
		{
			name:    "missing version",
			raw:     `{"base_url": "https://x.org", "data_path": "items", "map": {"title": "t"}}`,
			wantErr: "unsupported api config version",
		},
		{
			name:    "future version rejected",
			raw:     `{"v": 2, "base_url": "https://x.org", "data_path": "items", "map": {"title": "t"}}`,
			wantErr: "unsupported api config version",
		},
		{
			name:    "invalid JSON",
			raw:     `{"v": 1,`,
			wantErr: "invalid api config JSON",
		},
		{
			name:    "missing data_path",
			raw:     `{"v": 1, "base_url": "https://x.org", "map": {"title": "t"}}`,
			wantErr: "validation failed",
		},
		{
			name:    "empty map",
			raw:     `{"v": 1, "base_url": "https://x.org", "data_path": "items", "map": {}}`,
			wantErr: "validation failed",
		},
		{
			name:    "unknown auth type",
			raw:     `{"v": 1, "base_url": "https://x.org", "data_path": "items", "map": {"title": "t"}, "auth": {"type": "magic"}}`,
			wantErr: "validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseAPIConfig(tt.raw)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseAPIConfig() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAPIConfig() error = %v", err)
			}
			if cfg.Method != "GET" {
				t.Errorf("Method = %q, want GET default", cfg.Method)
			}
		})
	}
}

func TestSecretNames(t *testing.T) {
	cfg, err := ParseAPIConfig(validAPIConfig)
	if err != nil {
		t.Fatalf("ParseAPIConfig() error = %v", err)
	}

	got := cfg.SecretNames()
	want := []string{"EXAMPLE_TOKEN", "ORG_ID"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SecretNames() = %v, want %v", got, want)
	}
}

func TestResolveSecrets(t *testing.T) {
	secrets := map[string]string{"TOKEN": "abc123"}
	lookup := func(name string) (string, bool) {
		v, ok := secrets[name]
		return v, ok
	}

	got, err := ResolveSecrets("Bearer {{SECRET:TOKEN}}", lookup)
	if err != nil {
		t.Fatalf("ResolveSecrets() error = %v", err)
	}
	if got != "Bearer abc123" {
		t.Errorf("ResolveSecrets() = %q", got)
	}

	if _, err := ResolveSecrets("{{SECRET:MISSING}}", lookup); err == nil {
		t.Error("ResolveSecrets() with unknown secret returned nil error")
	} else if !strings.Contains(err.Error(), "MISSING") {
		t.Errorf("error %v does not name the missing secret", err)
	}

	plain, err := ResolveSecrets("no placeholders here", lookup)
	if err != nil || plain != "no placeholders here" {
		t.Errorf("ResolveSecrets() passthrough = %q, %v", plain, err)
	}
}
