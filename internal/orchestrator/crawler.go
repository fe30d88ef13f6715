package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aidjobs/harvester/internal/common"
	"github.com/aidjobs/harvester/internal/fetch"
	"github.com/aidjobs/harvester/internal/interfaces"
	"github.com/aidjobs/harvester/internal/models"
)

// maxDetailPages caps follow-up detail fetches per listing page.
const maxDetailPages = 25

// crawlOutcome carries one run's aggregates into the log and cadence
// update.
type crawlOutcome struct {
	found       int
	counts      interfaces.UpsertResult
	status      string
	message     string
	notModified bool
	failed      bool
}

// CrawlSource runs one full crawl of a source under its lock. Lock
// acquisition failure is a silent skip. The lock is released on every
// exit path, panics included.
func (o *Orchestrator) CrawlSource(ctx context.Context, source *models.Source) error {
	locks := o.storage.LockStorage()
	acquired, err := locks.AcquireLock(ctx, source.ID, o.cfg.Scheduler.LockStaleAfter)
	if err != nil {
		return fmt.Errorf("failed to acquire lock for %s: %w", source.ID, err)
	}
	if !acquired {
		o.logger.Debug().Str("source_id", source.ID).Msg("Crawl already in flight, skipping")
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("source_id", source.ID).Msgf("Crawl panicked: %v", r)
		}
		if err := locks.ReleaseLock(context.Background(), source.ID); err != nil {
			o.logger.Warn().Err(err).Str("source_id", source.ID).Msg("Lock release failed")
		}
	}()

	start := time.Now()
	outcome := o.crawl(ctx, source)
	duration := time.Since(start)

	o.recordRun(ctx, source, outcome, duration)
	return nil
}

// crawl dispatches to the per-kind fetch path and upserts the results.
func (o *Orchestrator) crawl(ctx context.Context, source *models.Source) crawlOutcome {
	var (
		results   []*models.ExtractionResult
		fetchRes  *fetch.Result
		recordErr string
	)

	cond := fetch.Conditional{ETag: source.ETag, LastModified: source.LastModified}

	switch source.Kind {
	case models.SourceKindRSS:
		var records []fetch.RawRecord
		fetchRes, records, _ = o.rss.Fetch(ctx, source.BaseURL, cond)
		if fetchRes.OK() {
			results = o.resultsFromRecords(asMaps(records), models.FieldSourceMeta)
		}

	case models.SourceKindAPI:
		cfg, err := models.ParseAPIConfig(source.ParserHint)
		if err != nil {
			return crawlOutcome{status: models.CrawlStatusFail, failed: true,
				message: fmt.Sprintf("invalid API configuration: %v", err)}
		}
		var records []fetch.RawRecord
		fetchRes, records, _ = o.api.Fetch(ctx, cfg, source.LastSuccessAt)
		if fetchRes.Kind == fetch.ErrorKindNone {
			results = o.resultsFromRecords(asMaps(records), models.FieldSourceAPI)
		}

	default: // html
		fetchRes = o.client.Get(ctx, source.BaseURL, cond)
		if fetchRes.OK() {
			var err error
			results, err = o.pipeline.ExtractPage(ctx, source.BaseURL, fetchRes.Body, source.ParserHint)
			if err != nil {
				recordErr = err.Error()
			} else {
				results = o.followDetailPages(ctx, source, results)
			}
		}
	}

	if fetchRes != nil && fetchRes.NotModified {
		return crawlOutcome{status: models.CrawlStatusOK, notModified: true, message: "not modified"}
	}
	if fetchRes != nil && fetchRes.Kind != fetch.ErrorKindNone {
		return crawlOutcome{
			status:  models.CrawlStatusFail,
			failed:  true,
			message: fmt.Sprintf("%s: %s", fetchRes.Kind, fetchRes.Message),
		}
	}
	if recordErr != "" {
		return crawlOutcome{status: models.CrawlStatusFail, failed: true, message: recordErr}
	}

	// Refresh conditional GET validators for the next run.
	if fetchRes != nil && fetchRes.OK() {
		source.ETag = fetchRes.ETag
		source.LastModified = fetchRes.LastModified
	}

	outcome := crawlOutcome{found: len(results)}
	jobs := o.storage.JobStorage()
	shadow := o.cfg.Storage.ShadowMode
	var changed []*models.Job

	for _, result := range results {
		job := o.jobFromResult(ctx, source, result)
		var res interfaces.UpsertResult
		var err error
		if shadow {
			res, err = jobs.UpsertShadowJob(ctx, job)
		} else {
			res, err = jobs.UpsertJob(ctx, job)
		}
		if err != nil {
			// Storage errors are isolated per row; the batch continues.
			outcome.counts.Failed++
			o.recordUpsertFailure(ctx, job, err)
			continue
		}
		outcome.counts.Add(res)
		if res.Changes() > 0 {
			changed = append(changed, job)
		}
	}

	// Shadow rows stay out of the search index until they are promoted.
	if len(changed) > 0 && !shadow && o.search.Enabled() {
		if err := o.search.IndexJobs(ctx, changed); err != nil {
			o.logger.Warn().Err(err).Str("source_id", source.ID).Msg("Search index sync failed")
		}
	}

	outcome.status = models.CrawlStatusOK
	if outcome.counts.Failed > 0 {
		outcome.status = models.CrawlStatusWarn
	}
	outcome.message = fmt.Sprintf("found %d, inserted %d, updated %d, skipped %d, failed %d",
		outcome.found, outcome.counts.Inserted, outcome.counts.Updated,
		outcome.counts.Skipped, outcome.counts.Failed)
	return outcome
}

// followDetailPages fetches the detail page behind each listing row so
// the full cascade can run against the posting itself. Failures keep the
// listing-tier result.
func (o *Orchestrator) followDetailPages(ctx context.Context, source *models.Source, results []*models.ExtractionResult) []*models.ExtractionResult {
	if len(results) <= 1 {
		return results
	}

	enriched := make([]*models.ExtractionResult, 0, len(results))
	fetched := 0
	for _, listing := range results {
		detailURL := listing.Field(models.FieldApplicationURL)
		if detailURL == "" || fetched >= maxDetailPages {
			enriched = append(enriched, listing)
			continue
		}
		fetched++

		res := o.client.Get(ctx, detailURL, fetch.Conditional{})
		if !res.OK() {
			enriched = append(enriched, listing)
			continue
		}
		detail, err := o.pipeline.ExtractPage(ctx, detailURL, res.Body, "")
		if err != nil || len(detail) != 1 {
			enriched = append(enriched, listing)
			continue
		}
		// Listing-row fields backfill anything the detail page missed.
		for name, fr := range listing.Fields {
			detail[0].Propose(name, fr)
		}
		enriched = append(enriched, detail[0])
	}
	return enriched
}

// recordRun writes the crawl log, updates the source's counters and
// schedule, and applies the auto-pause breaker.
func (o *Orchestrator) recordRun(ctx context.Context, source *models.Source, outcome crawlOutcome, duration time.Duration) {
	now := time.Now().UTC()

	switch {
	case outcome.notModified:
		// Conditional hit: ok, zero counts, streaks untouched.
		source.LastStatus = models.CrawlStatusOK
	case outcome.failed:
		source.ConsecutiveFailures++
		source.LastStatus = models.CrawlStatusFail
	case outcome.counts.Changes() == 0:
		source.ConsecutiveNoChange++
		source.ConsecutiveFailures = 0
		source.LastStatus = outcome.status
		source.LastSuccessAt = now
	default:
		source.ConsecutiveNoChange = 0
		source.ConsecutiveFailures = 0
		source.LastStatus = outcome.status
		source.LastSuccessAt = now
	}

	message := outcome.message
	threshold := o.cfg.Scheduler.AutoPauseAfter
	if threshold <= 0 {
		threshold = autoPauseThreshold
	}
	if source.ConsecutiveFailures >= threshold {
		source.Status = models.SourceStatusPaused
		message = fmt.Sprintf("%s; auto-paused after %d consecutive failures", message, source.ConsecutiveFailures)
		o.logger.Warn().
			Str("source_id", source.ID).
			Int("failures", source.ConsecutiveFailures).
			Msg("Source auto-paused by circuit breaker")
	}

	source.LastFetchedAt = now
	source.LastMessage = models.TruncateMessage(message, models.MaxCrawlMessageLen)

	cadence := EffectiveCadenceDays(source, outcome.counts.Changes())
	o.rngMu.Lock()
	source.NextRunAt = NextRunAt(now, cadence, o.rng)
	o.rngMu.Unlock()

	if err := o.storage.SourceStorage().SaveSource(ctx, source); err != nil {
		o.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to persist source after run")
	}

	log := &models.CrawlLog{
		ID:         common.NewLogID(),
		SourceID:   source.ID,
		RanAt:      now,
		DurationMS: duration.Milliseconds(),
		Found:      outcome.found,
		Inserted:   outcome.counts.Inserted,
		Updated:    outcome.counts.Updated,
		Skipped:    outcome.counts.Skipped,
		Failed:     outcome.counts.Failed,
		Status:     outcome.status,
	}
	log.SetMessage(message)
	if err := o.storage.CrawlLogStorage().AppendCrawlLog(ctx, log); err != nil {
		o.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to append crawl log")
	}

	o.logger.Info().
		Str("source_id", source.ID).
		Str("org", source.OrgName).
		Str("status", outcome.status).
		Int("found", outcome.found).
		Int("inserted", outcome.counts.Inserted).
		Int("updated", outcome.counts.Updated).
		Dur("duration", duration).
		Msg("Crawl completed")
}

func (o *Orchestrator) recordUpsertFailure(ctx context.Context, job *models.Job, err error) {
	failure := &models.FailedInsert{
		ID:        common.NewFailureID(),
		SourceURL: job.ApplyURL,
		Operation: "insert",
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
	if recErr := o.storage.FailedInsertStorage().RecordFailure(ctx, failure); recErr != nil {
		o.logger.Error().Err(recErr).Msg("Failed to record insert failure")
	}
}

func asMaps(records []fetch.RawRecord) []map[string]string {
	out := make([]map[string]string, len(records))
	for i, r := range records {
		out[i] = map[string]string(r)
	}
	return out
}
