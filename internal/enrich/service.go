package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

const enrichSystemPrompt = `You classify humanitarian and development sector job postings. Respond with strict JSON only, using exactly these keys:
{"impact_domains": [..], "impact_confidences": {domain: 0..1}, "functional_roles": [..], "experience_level": "", "experience_years": 0, "experience_confidence": 0..1, "sdgs": [1..17], "sdg_confidences": {"13": 0..1}, "sdg_explanation": "", "matched_keywords": [..], "overall_confidence": 0..1}
Impact domains: climate_action, global_health, education, humanitarian_response, human_rights, food_security, gender_equality, governance, economic_development, water_sanitation.
Experience levels: intern, entry, mid, senior, director, executive.`

const enrichBodyLimit = 8000

// Service enriches stored jobs through the LLM and persists the ruled
// result with a history snapshot before every write.
type Service struct {
	llm     interfaces.LLMService
	jobs    interfaces.JobStorage
	history interfaces.EnrichmentHistoryStorage
	logger  arbor.ILogger
}

// NewService creates the enrichment service.
func NewService(llm interfaces.LLMService, jobs interfaces.JobStorage, history interfaces.EnrichmentHistoryStorage, logger arbor.ILogger) *Service {
	return &Service{
		llm:     llm,
		jobs:    jobs,
		history: history,
		logger:  logger,
	}
}

// EnrichPending enriches up to limit jobs that lack an enrichment block.
// Returns the number enriched. Per-job failures log and continue.
func (s *Service) EnrichPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.jobs.JobsNeedingEnrichment(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs needing enrichment: %w", err)
	}

	enriched := 0
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return enriched, err
		}
		if err := s.EnrichJob(ctx, job, "auto-enrichment", "harvester"); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Enrichment failed")
			continue
		}
		enriched++
	}

	s.logger.Info().
		Int("pending", len(pending)).
		Int("enriched", enriched).
		Msg("Enrichment batch completed")
	return enriched, nil
}

// EnrichJob runs one job through the LLM, applies the policy rules, and
// persists the result. The prior block is snapshotted first.
func (s *Service) EnrichJob(ctx context.Context, job *models.Job, reason, changedBy string) error {
	raw, err := s.classify(ctx, job)
	if err != nil {
		return err
	}

	ruled := ApplyRules(raw)
	ruled.EnrichedAt = time.Now().UTC()

	if err := s.snapshotPrior(ctx, job, reason, changedBy); err != nil {
		return err
	}
	if err := s.jobs.SaveEnrichment(ctx, job.ID, ruled); err != nil {
		return fmt.Errorf("failed to save enrichment for %s: %w", job.ID, err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Int("sdgs", len(ruled.SDGs)).
		Bool("low_confidence", ruled.LowConfidence).
		Msg("Job enriched")
	return nil
}

// snapshotPrior appends the current enrichment block to history. Jobs
// without a prior block still get a history row marking first enrichment.
func (s *Service) snapshotPrior(ctx context.Context, job *models.Job, reason, changedBy string) error {
	h := &models.EnrichmentHistory{
		ID:           common.NewHistoryID(),
		JobID:        job.ID,
		Prior:        job.Enrichment,
		ChangeReason: reason,
		ChangedBy:    changedBy,
		ChangedAt:    time.Now().UTC(),
	}
	if err := s.history.AppendHistory(ctx, h); err != nil {
		return fmt.Errorf("failed to snapshot enrichment history for %s: %w", job.ID, err)
	}
	return nil
}

func (s *Service) classify(ctx context.Context, job *models.Job) (*models.Enrichment, error) {
	body := job.Description
	if len(body) > enrichBodyLimit {
		body = body[:enrichBodyLimit]
	}

	prompt := fmt.Sprintf("Title: %s\nEmployer: %s\nLocation: %s\n\n%s",
		job.Title, job.OrgName, job.LocationRaw, body)

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: enrichSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment LLM call failed: %w", err)
	}

	return parseEnrichment(response)
}

// parseEnrichment decodes the model's JSON into an enrichment block.
func parseEnrichment(response string) (*models.Enrichment, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	parsed := gjson.Parse(response)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("enrichment response is not a JSON object")
	}

	e := &models.Enrichment{
		ExperienceLevel:   parsed.Get("experience_level").String(),
		ExperienceYears:   int(parsed.Get("experience_years").Int()),
		ExperienceConf:    parsed.Get("experience_confidence").Float(),
		SDGExplanation:    parsed.Get("sdg_explanation").String(),
		OverallConfidence: parsed.Get("overall_confidence").Float(),
	}
	for _, v := range parsed.Get("impact_domains").Array() {
		e.ImpactDomains = append(e.ImpactDomains, v.String())
	}
	for _, v := range parsed.Get("functional_roles").Array() {
		e.FunctionalRoles = append(e.FunctionalRoles, v.String())
	}
	for _, v := range parsed.Get("sdgs").Array() {
		e.SDGs = append(e.SDGs, int(v.Int()))
	}
	for _, v := range parsed.Get("matched_keywords").Array() {
		e.MatchedKeywords = append(e.MatchedKeywords, v.String())
	}
	e.ImpactConfidences = floatMap(parsed.Get("impact_confidences"))
	e.SDGConfidences = floatMap(parsed.Get("sdg_confidences"))

	return e, nil
}

func floatMap(node gjson.Result) map[string]float64 {
	if !node.IsObject() {
		return nil
	}
	m := make(map[string]float64)
	node.ForEach(func(key, value gjson.Result) bool {
		m[key.String()] = value.Float()
		return true
	})
	return m
}
