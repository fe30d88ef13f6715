package orchestrator

import (
	"context"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/models"
	"github.com/aidjobs/harvester/internal/quality"
)

const snippetLen = 300

// jobFromResult builds the upsert payload from one extraction result and
// runs the best-effort pre-upsert transforms: geocoding and quality
// scoring. Transform failures leave their block zero-valued and never
// block the upsert.
func (o *Orchestrator) jobFromResult(ctx context.Context, source *models.Source, result *models.ExtractionResult) *models.Job {
	job := &models.Job{
		ID:            common.NewJobID(),
		SourceID:      source.ID,
		OrgName:       source.OrgName,
		Title:         result.Field(models.FieldTitle),
		ApplyURL:      result.Field(models.FieldApplicationURL),
		LocationRaw:   result.Field(models.FieldLocation),
		PostedOn:      result.Field(models.FieldPostedOn),
		Deadline:      result.Field(models.FieldDeadline),
		Description:   result.Field(models.FieldDescription),
		CanonicalHash: result.CanonicalID,
	}
	if employer := result.Field(models.FieldEmployer); employer != "" {
		job.OrgName = employer
	}
	if job.ApplyURL == "" {
		job.ApplyURL = result.URL
	}
	if len(job.Description) > snippetLen {
		job.Snippet = job.Description[:snippetLen]
	} else {
		job.Snippet = job.Description
	}

	job.RawMetadata = map[string]interface{}{
		"dedupe_hash":      result.DedupeHash,
		"pipeline_version": result.PipelineVersion,
		"job_score":        result.JobScore,
		"field_sources":    fieldSources(result),
	}
	if len(result.Issues) > 0 {
		job.RawMetadata["extraction_issues"] = result.Issues
	}

	if job.LocationRaw != "" {
		job.Geo = o.geocoder.Resolve(ctx, job.LocationRaw)
	}
	job.Quality = quality.Score(job)
	if result.NeedsReview {
		job.Quality.NeedsReview = true
	}

	return job
}

func fieldSources(result *models.ExtractionResult) map[string]string {
	sources := make(map[string]string, len(result.Fields))
	for name, fr := range result.Fields {
		sources[name] = string(fr.Source)
	}
	return sources
}

// resultsFromRecords maps structured fetcher records through the pipeline
// at the given provenance tier.
func (o *Orchestrator) resultsFromRecords(records []map[string]string, tier models.FieldSource) []*models.ExtractionResult {
	results := make([]*models.ExtractionResult, 0, len(records))
	for _, record := range records {
		url := record[models.FieldApplicationURL]
		if url == "" {
			continue
		}
		results = append(results, o.pipeline.ExtractRecord(url, record, tier))
	}
	return results
}
