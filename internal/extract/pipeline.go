package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/aidjobs/harvester/internal/extract/plugins"
	"github.com/aidjobs/harvester/internal/models"
)

// Pipeline runs the seven-stage extraction cascade. Each stage proposes
// field results and the highest confidence wins, so stage order only
// matters for the AI gate, which inspects the cascade's leftovers.
type Pipeline struct {
	classifier *Classifier
	registry   *plugins.Registry
	ai         *AIExtractor
	snapshots  *SnapshotWriter
	version    string
	logger     arbor.ILogger
}

// NewPipeline assembles the cascade. The AI extractor and snapshot writer
// may be nil; those stages then no-op.
func NewPipeline(classifier *Classifier, registry *plugins.Registry, ai *AIExtractor, snapshots *SnapshotWriter, version string, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		registry:   registry,
		ai:         ai,
		snapshots:  snapshots,
		version:    version,
		logger:     logger,
	}
}

// ExtractPage runs the cascade over one HTML page. A listing page yields
// one result per extracted row; a detail page yields a single result that
// flows through every stage.
func (p *Pipeline) ExtractPage(ctx context.Context, url string, body []byte, hint string) ([]*models.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", url, err)
	}

	score := p.classifier.Score(url, doc)

	var pluginResult *plugins.Result
	var pluginName string
	if plugin := p.registry.Find(url, doc, hint); plugin != nil {
		pluginName = plugin.Name()
		pluginResult, err = plugin.Extract(url, doc, hint)
		if err != nil {
			p.logger.Warn().Err(err).Str("plugin", pluginName).Str("url", url).Msg("Plugin extraction failed")
			pluginResult = nil
		}
	}

	// Listing page: each row becomes its own result carrying the dom
	// fields. Page-level stages would smear one row's values across all.
	if pluginResult != nil && len(pluginResult.Jobs) > 1 {
		results := make([]*models.ExtractionResult, 0, len(pluginResult.Jobs))
		for _, job := range pluginResult.Jobs {
			result := p.newResult(url, score)
			proposeJob(result, job)
			applyIdentity(result)
			validateResult(result)
			results = append(results, result)
		}
		p.logger.Debug().
			Str("url", url).
			Str("plugin", pluginName).
			Int("jobs", len(results)).
			Msg("Listing page extracted")
		p.snapshots.Write(url, body, results[0])
		return results, nil
	}

	// Detail page: one result through the full cascade.
	result := p.newResult(url, score)
	if pluginResult != nil && len(pluginResult.Jobs) == 1 {
		proposeJob(result, pluginResult.Jobs[0])
	}
	extractJSONLD(doc, result)
	extractMeta(doc, result)
	extractDescription(doc, result)
	extractLabeled(doc, result)
	extractRegex(doc, result)

	if p.ai.ShouldRun(result) {
		p.ai.Extract(ctx, doc.Text(), result)
	}

	applyIdentity(result)
	validateResult(result)
	p.snapshots.Write(url, body, result)

	p.logger.Debug().
		Str("url", url).
		Float64("job_score", score).
		Int("fields", len(result.Fields)).
		Msg("Detail page extracted")

	return []*models.ExtractionResult{result}, nil
}

// ExtractRecord builds a result from a structured RSS or API record. The
// record's fields enter at the given source tier with no DOM stages.
func (p *Pipeline) ExtractRecord(url string, record map[string]string, source models.FieldSource) *models.ExtractionResult {
	result := p.newResult(url, 1.0)
	for field, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if field == models.FieldPostedOn || field == models.FieldDeadline {
			if parsed, ok := ParseFlexibleDate(value, field == models.FieldDeadline); ok {
				value = parsed
			}
		}
		result.Propose(field, models.NewFieldResult(value, source))
	}
	if target := result.Field(models.FieldApplicationURL); target != "" {
		result.URL = target
	}
	applyIdentity(result)
	validateResult(result)
	return result
}

// AISpent reports consumed AI budget for run summaries.
func (p *Pipeline) AISpent() int64 {
	if p.ai == nil {
		return 0
	}
	return p.ai.Spent()
}

func (p *Pipeline) newResult(url string, score float64) *models.ExtractionResult {
	return &models.ExtractionResult{
		URL:             url,
		Fields:          make(map[string]models.FieldResult),
		IsJob:           score >= 0.5,
		JobScore:        score,
		ExtractedAt:     time.Now().UTC(),
		PipelineVersion: p.version,
	}
}

// proposeJob enters a plugin job's fields at the dom tier. Dates parse
// before proposal so downstream comparisons see YYYY-MM-DD.
func proposeJob(result *models.ExtractionResult, job plugins.Job) {
	for field, value := range job {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if field == models.FieldPostedOn || field == models.FieldDeadline {
			if parsed, ok := ParseFlexibleDate(value, field == models.FieldDeadline); ok {
				value = parsed
			}
		}
		result.Propose(field, models.NewFieldResult(value, models.FieldSourceDOM))
	}
}
