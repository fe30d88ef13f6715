package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeLLM) ProviderName() string { return "fake" }

type memoryKV struct {
	values map[string]string
}

func newMemoryKV() *memoryKV { return &memoryKV{values: map[string]string{}} }

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (m *memoryKV) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func weakResult(url string) *models.ExtractionResult {
	return &models.ExtractionResult{URL: url, Fields: map[string]models.FieldResult{}}
}

func TestShouldRun(t *testing.T) {
	ai := NewAIExtractor(&fakeLLM{}, newMemoryKV(), 10, arbor.NewLogger())

	tests := []struct {
		name   string
		fields map[string]models.FieldResult
		want   bool
	}{
		{
			name:   "everything missing",
			fields: map[string]models.FieldResult{},
			want:   true,
		},
		{
			name: "only title present",
			fields: map[string]models.FieldResult{
				models.FieldTitle: models.NewFieldResult("Officer", models.FieldSourceDOM),
			},
			want: true,
		},
		{
			name: "title and employer strong",
			fields: map[string]models.FieldResult{
				models.FieldTitle:    models.NewFieldResult("Officer", models.FieldSourceDOM),
				models.FieldEmployer: models.NewFieldResult("UNICEF", models.FieldSourceMeta),
			},
			want: false,
		},
		{
			name: "two fields present but low confidence",
			fields: map[string]models.FieldResult{
				models.FieldTitle:    models.NewFieldResult("Officer", models.FieldSourceDOM),
				models.FieldEmployer: models.NewFieldResult("UNICEF", models.FieldSourceAI),
				models.FieldLocation: models.NewFieldResult("Nairobi", models.FieldSourceAI),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &models.ExtractionResult{Fields: tt.fields}
			if got := ai.ShouldRun(r); got != tt.want {
				t.Errorf("ShouldRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRunNilSafe(t *testing.T) {
	var ai *AIExtractor
	if ai.ShouldRun(weakResult("https://x.org")) {
		t.Error("nil extractor reported ShouldRun true")
	}

	disabled := NewAIExtractor(nil, newMemoryKV(), 10, arbor.NewLogger())
	if disabled.ShouldRun(weakResult("https://x.org")) {
		t.Error("extractor without an LLM reported ShouldRun true")
	}
}

func TestExtractProposesAtAITier(t *testing.T) {
	llm := &fakeLLM{response: `{"title":"Programme Officer","employer":"Example Relief","location":"Nairobi, Kenya","posted_on":"","deadline":"2026-03-15T00:00:00Z","description":"","application_url":""}`}
	ai := NewAIExtractor(llm, newMemoryKV(), 10, arbor.NewLogger())

	r := weakResult("https://jobs.example.org/p/1")
	ai.Extract(context.Background(), "page text", r)

	if got := r.Field(models.FieldTitle); got != "Programme Officer" {
		t.Errorf("title = %q", got)
	}
	if got := r.Fields[models.FieldTitle].Confidence; got != 0.40 {
		t.Errorf("confidence = %v, want ai tier", got)
	}
	if got := r.Field(models.FieldDeadline); got != "2026-03-15" {
		t.Errorf("deadline = %q, want normalized date", got)
	}
	if ai.Spent() != 1 {
		t.Errorf("Spent() = %d, want 1", ai.Spent())
	}
}

func TestExtractNeverOverridesStrongerFields(t *testing.T) {
	llm := &fakeLLM{response: `{"title":"Hallucinated Title","employer":"","location":"","posted_on":"","deadline":"","description":"","application_url":""}`}
	ai := NewAIExtractor(llm, newMemoryKV(), 10, arbor.NewLogger())

	r := weakResult("https://jobs.example.org/p/1")
	r.Propose(models.FieldTitle, models.NewFieldResult("Real Title", models.FieldSourceRegex))

	ai.Extract(context.Background(), "page text", r)

	if got := r.Field(models.FieldTitle); got != "Real Title" {
		t.Errorf("title = %q, AI output replaced a higher-confidence value", got)
	}
}

func TestExtractUsesCache(t *testing.T) {
	llm := &fakeLLM{response: `{"title":"Cached Officer","employer":"","location":"","posted_on":"","deadline":"","description":"","application_url":""}`}
	kv := newMemoryKV()
	ai := NewAIExtractor(llm, kv, 10, arbor.NewLogger())

	first := weakResult("https://jobs.example.org/p/2")
	ai.Extract(context.Background(), "same page text", first)
	if llm.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", llm.calls)
	}

	second := weakResult("https://jobs.example.org/p/2")
	ai.Extract(context.Background(), "same page text", second)

	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want the second extraction served from cache", llm.calls)
	}
	if got := second.Field(models.FieldTitle); got != "Cached Officer" {
		t.Errorf("cached title = %q", got)
	}
	if ai.Spent() != 1 {
		t.Errorf("Spent() = %d, cache hits must not consume budget", ai.Spent())
	}
}

func TestExtractRespectsBudget(t *testing.T) {
	llm := &fakeLLM{response: `{"title":"T1","employer":"","location":"","posted_on":"","deadline":"","description":"","application_url":""}`}
	ai := NewAIExtractor(llm, newMemoryKV(), 1, arbor.NewLogger())

	ai.Extract(context.Background(), "page one", weakResult("https://x.org/1"))

	blocked := weakResult("https://x.org/2")
	ai.Extract(context.Background(), "page two", blocked)

	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want budget to stop the second call", llm.calls)
	}
	if len(blocked.Fields) != 0 {
		t.Errorf("blocked extraction produced fields: %v", blocked.Fields)
	}
}

func TestExtractToleratesFailures(t *testing.T) {
	r := weakResult("https://x.org/1")

	failing := NewAIExtractor(&fakeLLM{err: errors.New("rate limited")}, newMemoryKV(), 10, arbor.NewLogger())
	failing.Extract(context.Background(), "text", r)
	if len(r.Fields) != 0 {
		t.Errorf("failed call produced fields: %v", r.Fields)
	}

	garbage := NewAIExtractor(&fakeLLM{response: "I am sorry, I cannot"}, newMemoryKV(), 10, arbor.NewLogger())
	garbage.Extract(context.Background(), "text", r)
	if len(r.Fields) != 0 {
		t.Errorf("invalid JSON produced fields: %v", r.Fields)
	}
}

func TestTrimJSONEnvelope(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}

	for _, tt := range tests {
		if got := trimJSONEnvelope(tt.in); got != tt.want {
			t.Errorf("trimJSONEnvelope(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
