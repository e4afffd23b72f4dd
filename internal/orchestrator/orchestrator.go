// Package orchestrator drives one analysis job through its state machine:
// initiated -> crawling -> analyzing -> processing -> completed, with a
// side transition to failed and a completed_with_warnings terminal for
// degraded runs. Transitions are strictly forward and progress never
// decreases.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/competitors"
	"github.com/brandlens/footprint/internal/crawler"
	"github.com/brandlens/footprint/internal/extractor"
	"github.com/brandlens/footprint/internal/gaps"
	"github.com/brandlens/footprint/internal/metrics"
)

// Config bounds job execution.
type Config struct {
	JobTimeout   time.Duration
	ArchivePages bool
	EventTopic   string
}

// Orchestrator executes analysis jobs.
type Orchestrator struct {
	jobs       analysis.JobStore
	crawler    *crawler.Crawler
	extractor  *extractor.Extractor
	identifier *competitors.Identifier
	generator  *gaps.Generator
	blobs      analysis.BlobStore
	publisher  analysis.Publisher
	hasher     analysis.Hasher
	clock      analysis.Clock
	idGen      analysis.IDGenerator
	metrics    *metrics.Metrics
	cfg        Config
	logger     *zap.Logger
}

// New constructs an Orchestrator. blobs and publisher may be nil; page
// archival and event publishing are then skipped.
func New(
	jobs analysis.JobStore,
	cr *crawler.Crawler,
	ex *extractor.Extractor,
	id *competitors.Identifier,
	gen *gaps.Generator,
	blobs analysis.BlobStore,
	publisher analysis.Publisher,
	hasher analysis.Hasher,
	clock analysis.Clock,
	idGen analysis.IDGenerator,
	m *metrics.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:       jobs,
		crawler:    cr,
		extractor:  ex,
		identifier: id,
		generator:  gen,
		blobs:      blobs,
		publisher:  publisher,
		hasher:     hasher,
		clock:      clock,
		idGen:      idGen,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
	}
}

// run carries the mutable state of one execution.
type run struct {
	job      analysis.Job
	progress int
	warnings []string
	counts   struct{ keywords, competitors, opportunities int }
}

// Execute runs the job to a terminal state. It only returns an error for
// infrastructure problems (store writes failing); pipeline failures are
// recorded on the job itself.
func (o *Orchestrator) Execute(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.IsTerminal() {
		// Re-delivered after restart; nothing to do.
		return nil
	}

	o.metrics.JobsStarted.Inc()
	logger := o.logger.With(zap.String("job_id", jobID))
	r := &run{job: job, progress: job.Progress}

	jobCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	// Stage 1: crawl.
	if err := o.setStage(ctx, r, analysis.JobStatusCrawling, 10); err != nil {
		return err
	}
	corpus, err := o.crawlStage(jobCtx, r, logger)
	if err != nil {
		return o.fail(ctx, r, err)
	}
	if done, err := o.checkpoint(ctx, jobCtx, r); done || err != nil {
		return err
	}

	// Stage 2: keyword extraction.
	if err := o.setStage(ctx, r, analysis.JobStatusAnalyzing, 40); err != nil {
		return err
	}
	keywords, err := o.extractStage(ctx, r, corpus, logger)
	if err != nil {
		return o.fail(ctx, r, err)
	}
	if err := o.setStage(ctx, r, analysis.JobStatusAnalyzing, 70); err != nil {
		return err
	}
	if done, err := o.checkpoint(ctx, jobCtx, r); done || err != nil {
		return err
	}

	// Stage 3: competitors.
	if err := o.setStage(ctx, r, analysis.JobStatusProcessing, 80); err != nil {
		return err
	}
	if err := o.competitorStage(jobCtx, ctx, r, keywords); err != nil {
		return o.fail(ctx, r, err)
	}
	if err := o.setStage(ctx, r, analysis.JobStatusProcessing, 90); err != nil {
		return err
	}
	if done, err := o.checkpoint(ctx, jobCtx, r); done || err != nil {
		return err
	}

	// Stage 4: content gaps.
	if err := o.gapStage(ctx, r, keywords, corpus); err != nil {
		return o.fail(ctx, r, err)
	}
	if err := o.setStage(ctx, r, analysis.JobStatusProcessing, 95); err != nil {
		return err
	}

	return o.finalize(ctx, r)
}

func (o *Orchestrator) crawlStage(jobCtx context.Context, r *run, logger *zap.Logger) (analysis.Corpus, error) {
	start := o.clock.Now()
	corpus, err := o.crawler.Crawl(jobCtx, r.job.Questionnaire.Website)
	o.metrics.StageDuration.WithLabelValues("crawl").Observe(o.clock.Now().Sub(start).Seconds())
	if err != nil {
		switch analysis.KindOf(err) {
		case analysis.KindWebsiteUnreachable:
			if len(r.job.Questionnaire.TargetKeywords) == 0 && len(r.job.Questionnaire.KnownCompetitors) == 0 {
				return analysis.Corpus{}, err
			}
			logger.Warn("website unreachable, degrading to questionnaire data", zap.Error(err))
			r.warnings = append(r.warnings, "website unreachable; analysis continued with questionnaire data only")
			return analysis.Corpus{BaseURL: r.job.Questionnaire.Website}, nil
		case analysis.KindInvalidInput:
			return analysis.Corpus{}, err
		default:
			if errors.Is(err, context.DeadlineExceeded) {
				r.warnings = append(r.warnings, "crawl hit the analysis time budget")
				return analysis.Corpus{BaseURL: r.job.Questionnaire.Website}, nil
			}
			return analysis.Corpus{}, err
		}
	}
	o.metrics.PagesFetched.Add(float64(len(corpus.Pages)))
	o.archive(jobCtx, r.job.ID, &corpus, logger)
	return corpus, nil
}

// archive stores raw page HTML in the blob store, best effort.
func (o *Orchestrator) archive(ctx context.Context, jobID string, corpus *analysis.Corpus, logger *zap.Logger) {
	if o.blobs == nil || !o.cfg.ArchivePages {
		for i := range corpus.Pages {
			corpus.Pages[i].RawHTML = nil
		}
		return
	}
	for i := range corpus.Pages {
		page := &corpus.Pages[i]
		if len(page.RawHTML) == 0 {
			continue
		}
		hash, err := o.hasher.Hash(page.RawHTML)
		if err != nil {
			continue
		}
		page.ContentHash = hash
		uri, err := o.blobs.PutObject(ctx, fmt.Sprintf("corpus/%s/%s.html", jobID, hash), "text/html; charset=utf-8", page.RawHTML)
		if err != nil {
			logger.Warn("page archive failed", zap.String("url", page.URL), zap.Error(err))
		} else {
			page.BlobURI = uri
		}
		page.RawHTML = nil
	}
}

func (o *Orchestrator) extractStage(ctx context.Context, r *run, corpus analysis.Corpus, logger *zap.Logger) ([]analysis.DiscoveredKeyword, error) {
	start := o.clock.Now()
	var keywords []analysis.DiscoveredKeyword
	var err error
	if len(corpus.Pages) == 0 {
		keywords = o.extractor.UserOnly(r.job.Questionnaire.TargetKeywords)
	} else {
		keywords, err = o.extractor.Extract(corpus, r.job.Questionnaire.TargetKeywords)
		if analysis.IsKind(err, analysis.KindInsufficientData) {
			logger.Warn("corpus too small, keeping user-supplied keywords only")
			r.warnings = append(r.warnings, "site content too small for statistical extraction; keywords limited to user-supplied terms")
			keywords = o.extractor.UserOnly(r.job.Questionnaire.TargetKeywords)
			err = nil
		}
	}
	o.metrics.StageDuration.WithLabelValues("extract").Observe(o.clock.Now().Sub(start).Seconds())
	if err != nil {
		return nil, err
	}

	for i := range keywords {
		id, idErr := o.idGen.NewID()
		if idErr != nil {
			return nil, fmt.Errorf("keyword id: %w", idErr)
		}
		keywords[i].ID = id
		keywords[i].JobID = r.job.ID
	}
	if err := o.jobs.ReplaceKeywords(ctx, r.job.ID, keywords); err != nil {
		return nil, fmt.Errorf("persist keywords: %w", err)
	}
	r.counts.keywords = len(keywords)
	return keywords, nil
}

func (o *Orchestrator) competitorStage(jobCtx, ctx context.Context, r *run, keywords []analysis.DiscoveredKeyword) error {
	start := o.clock.Now()
	rows, warnings, err := o.identifier.Identify(jobCtx, keywords, r.job.Questionnaire.KnownCompetitors, r.job.Questionnaire.Website)
	o.metrics.StageDuration.WithLabelValues("competitors").Observe(o.clock.Now().Sub(start).Seconds())
	if err != nil {
		return err
	}
	r.warnings = append(r.warnings, warnings...)
	for i := range rows {
		id, idErr := o.idGen.NewID()
		if idErr != nil {
			return fmt.Errorf("competitor id: %w", idErr)
		}
		rows[i].ID = id
		rows[i].JobID = r.job.ID
	}
	if err := o.jobs.ReplaceCompetitors(ctx, r.job.ID, rows); err != nil {
		return fmt.Errorf("persist competitors: %w", err)
	}
	r.counts.competitors = len(rows)
	return nil
}

func (o *Orchestrator) gapStage(ctx context.Context, r *run, keywords []analysis.DiscoveredKeyword, corpus analysis.Corpus) error {
	start := o.clock.Now()
	rows := o.generator.Generate(keywords, corpus)
	o.metrics.StageDuration.WithLabelValues("gaps").Observe(o.clock.Now().Sub(start).Seconds())
	for i := range rows {
		id, err := o.idGen.NewID()
		if err != nil {
			return fmt.Errorf("opportunity id: %w", err)
		}
		rows[i].ID = id
		rows[i].JobID = r.job.ID
	}
	if err := o.jobs.ReplaceOpportunities(ctx, r.job.ID, rows); err != nil {
		return fmt.Errorf("persist opportunities: %w", err)
	}
	r.counts.opportunities = len(rows)
	return nil
}

// checkpoint runs between stages: it honors a cancellation request and
// converts an exhausted job budget into an early, warning-flavored finish
// that preserves everything written so far. done=true means the job
// reached a terminal state here.
func (o *Orchestrator) checkpoint(ctx, jobCtx context.Context, r *run) (bool, error) {
	cancelled, err := o.jobs.CancelRequested(ctx, r.job.ID)
	if err != nil {
		return false, fmt.Errorf("check cancel flag: %w", err)
	}
	if cancelled {
		return true, o.fail(ctx, r, analysis.Cancelled())
	}
	if jobCtx.Err() != nil {
		r.warnings = append(r.warnings, "analysis timed out; partial results preserved")
		return true, o.finalize(ctx, r)
	}
	return false, nil
}

func (o *Orchestrator) setStage(ctx context.Context, r *run, status analysis.JobStatus, progress int) error {
	if progress < r.progress {
		progress = r.progress
	}
	r.progress = progress
	if err := o.jobs.UpdateJobStatus(ctx, r.job.ID, status, progress, "", r.warnings); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, r *run) error {
	status := analysis.JobStatusCompleted
	if len(r.warnings) > 0 {
		status = analysis.JobStatusCompletedWithWarnings
	}
	summary := fmt.Sprintf("%d keywords, %d competitors, %d content opportunities",
		r.counts.keywords, r.counts.competitors, r.counts.opportunities)

	// Persist the terminal state even when the caller's context is gone.
	writeCtx := context.WithoutCancel(ctx)
	if err := o.jobs.SetJobSummary(writeCtx, r.job.ID, summary); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	if err := o.jobs.UpdateJobStatus(writeCtx, r.job.ID, status, 100, "", r.warnings); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	o.metrics.JobsFinished.WithLabelValues(string(status)).Inc()
	o.publish(writeCtx, r.job.ID, status, summary)
	o.logger.Info("job finished",
		zap.String("job_id", r.job.ID),
		zap.String("status", string(status)),
		zap.String("summary", summary),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, r *run, cause error) error {
	kind := analysis.KindOf(cause)
	errText := cause.Error()
	if kind == analysis.KindCancelled {
		errText = "cancelled"
	}
	writeCtx := context.WithoutCancel(ctx)
	if err := o.jobs.UpdateJobStatus(writeCtx, r.job.ID, analysis.JobStatusFailed, r.progress, errText, r.warnings); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	o.metrics.JobsFinished.WithLabelValues(string(analysis.JobStatusFailed)).Inc()
	o.publish(writeCtx, r.job.ID, analysis.JobStatusFailed, errText)
	o.logger.Warn("job failed",
		zap.String("job_id", r.job.ID),
		zap.String("kind", string(kind)),
		zap.Error(cause),
	)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, jobID string, status analysis.JobStatus, detail string) {
	if o.publisher == nil || o.cfg.EventTopic == "" {
		return
	}
	payload := map[string]any{
		"job_id":    jobID,
		"status":    string(status),
		"detail":    detail,
		"timestamp": o.clock.Now().Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.EventTopic, payload); err != nil {
		o.logger.Warn("event publish failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
