package models

import (
	"testing"
	"time"
)

func TestDefaultCadenceDays(t *testing.T) {
	tests := []struct {
		category string
		want     float64
	}{
		{CategoryUN, 1},
		{CategoryINGO, 2},
		{CategoryNGO, 3},
		{CategoryPrivate, 5},
		{CategoryAcademic, 7},
		{"", 3},
		{"unknown", 3},
		{"UN", 1}, // case-insensitive
	}

	for _, tt := range tests {
		if got := DefaultCadenceDays(tt.category); got != tt.want {
			t.Errorf("DefaultCadenceDays(%q) = %v, want %v", tt.category, got, tt.want)
		}
	}
}

func TestSourceValidate(t *testing.T) {
	valid := Source{
		OrgName: "Example Org",
		BaseURL: "https://jobs.example.org",
		Kind:    SourceKindHTML,
		Status:  SourceStatusActive,
	}

	tests := []struct {
		name    string
		mutate  func(*Source)
		wantErr bool
	}{
		{name: "valid source", mutate: func(s *Source) {}},
		{name: "missing org name", mutate: func(s *Source) { s.OrgName = "" }, wantErr: true},
		{name: "missing base url", mutate: func(s *Source) { s.BaseURL = "" }, wantErr: true},
		{name: "bad kind", mutate: func(s *Source) { s.Kind = "ftp" }, wantErr: true},
		{name: "bad status", mutate: func(s *Source) { s.Status = "sleeping" }, wantErr: true},
		{name: "empty status allowed", mutate: func(s *Source) { s.Status = "" }},
		{name: "negative cadence", mutate: func(s *Source) { s.CadenceDays = -1 }, wantErr: true},
		{name: "rss kind", mutate: func(s *Source) { s.Kind = SourceKindRSS }},
		{name: "api kind", mutate: func(s *Source) { s.Kind = SourceKindAPI }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceEligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		source Source
		want   bool
	}{
		{
			name:   "active with past next run",
			source: Source{Status: SourceStatusActive, NextRunAt: now.Add(-time.Hour)},
			want:   true,
		},
		{
			name:   "active never run",
			source: Source{Status: SourceStatusActive},
			want:   true,
		},
		{
			name:   "not yet due",
			source: Source{Status: SourceStatusActive, NextRunAt: now.Add(time.Hour)},
			want:   false,
		},
		{
			name:   "paused never eligible",
			source: Source{Status: SourceStatusPaused, NextRunAt: now.Add(-time.Hour)},
			want:   false,
		},
		{
			name:   "soft-deleted never eligible",
			source: Source{Status: SourceStatusActive, DeletedAt: now.Add(-time.Minute)},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.Eligible(now); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}
