package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

const aiBodyPrefixLen = 6000

const aiSystemPrompt = `You extract job posting fields from web page text. Respond with strict JSON only, no prose, using exactly these keys: title, employer, location, posted_on, deadline, description, application_url. Dates must be YYYY-MM-DD. Use "" for fields you cannot determine.

Example 1:
Input: "Programme Officer, WASH. UNICEF seeks a Programme Officer based in Nairobi, Kenya. Apply by 15 March 2026."
Output: {"title":"Programme Officer, WASH","employer":"UNICEF","location":"Nairobi, Kenya","posted_on":"","deadline":"2026-03-15","description":"UNICEF seeks a Programme Officer based in Nairobi, Kenya.","application_url":""}

Example 2:
Input: "Welcome to our careers portal. Browse openings by department."
Output: {"title":"","employer":"","location":"","posted_on":"","deadline":"","description":"","application_url":""}`

var aiFields = []string{
	models.FieldTitle,
	models.FieldEmployer,
	models.FieldLocation,
	models.FieldPostedOn,
	models.FieldDeadline,
	models.FieldDescription,
	models.FieldApplicationURL,
}

// AIExtractor is the stage-seven fallback. It runs only when the cascade
// left more than one core field weak, spends against a global call
// budget, and caches responses by page identity so re-crawls are free.
type AIExtractor struct {
	llm    interfaces.LLMService
	cache  interfaces.KeyValueStorage
	budget int64
	spent  atomic.Int64
	logger arbor.ILogger
}

// NewAIExtractor creates the fallback with the given call budget.
func NewAIExtractor(llm interfaces.LLMService, cache interfaces.KeyValueStorage, budget int, logger arbor.ILogger) *AIExtractor {
	if budget <= 0 {
		budget = 2000
	}
	return &AIExtractor{
		llm:    llm,
		cache:  cache,
		budget: int64(budget),
		logger: logger,
	}
}

// ShouldRun gates the fallback: more than one of title, employer, and
// location must be missing or below 0.5 confidence.
func (a *AIExtractor) ShouldRun(result *models.ExtractionResult) bool {
	if a == nil || a.llm == nil {
		return false
	}
	weak := 0
	for _, field := range []string{models.FieldTitle, models.FieldEmployer, models.FieldLocation} {
		if result.Field(field) == "" || result.Confidence(field) < 0.5 {
			weak++
		}
	}
	return weak > 1
}

// Extract runs the LLM over the page text and proposes fields at the ai
// tier. Failures are soft; the cascade's partial result stands.
func (a *AIExtractor) Extract(ctx context.Context, pageText string, result *models.ExtractionResult) {
	key := a.cacheKey(result.URL, pageText)

	if cached, err := a.cache.Get(ctx, key); err == nil && cached != "" {
		a.proposeFromJSON(cached, result)
		return
	}

	if a.spent.Load() >= a.budget {
		a.logger.Warn().
			Int64("budget", a.budget).
			Str("url", result.URL).
			Msg("AI extraction budget exhausted, skipping fallback")
		return
	}
	a.spent.Add(1)

	text := pageText
	if len(text) > aiBodyPrefixLen {
		text = text[:aiBodyPrefixLen]
	}

	response, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: aiSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("URL: %s\n\nPage text:\n%s", result.URL, text)},
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("url", result.URL).Msg("AI extraction failed")
		return
	}

	response = trimJSONEnvelope(response)
	if !gjson.Valid(response) {
		a.logger.Warn().Str("url", result.URL).Msg("AI extraction returned invalid JSON")
		return
	}

	if err := a.cache.Set(ctx, key, response); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to cache AI extraction")
	}
	a.proposeFromJSON(response, result)
}

// Spent reports how many budget calls have been consumed.
func (a *AIExtractor) Spent() int64 {
	return a.spent.Load()
}

func (a *AIExtractor) cacheKey(url, pageText string) string {
	prefix := pageText
	if len(prefix) > aiBodyPrefixLen {
		prefix = prefix[:aiBodyPrefixLen]
	}
	sum := sha256.Sum256([]byte(url + prefix))
	return "aicache:" + hex.EncodeToString(sum[:])
}

func (a *AIExtractor) proposeFromJSON(response string, result *models.ExtractionResult) {
	parsed := gjson.Parse(response)
	for _, field := range aiFields {
		value := strings.TrimSpace(parsed.Get(field).String())
		if value == "" {
			continue
		}
		if field == models.FieldPostedOn || field == models.FieldDeadline {
			value = NormalizeISODate(value)
		}
		result.Propose(field, models.NewFieldResult(value, models.FieldSourceAI))
	}
}

// trimJSONEnvelope strips markdown code fences that some models wrap
// around JSON output.
func trimJSONEnvelope(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
