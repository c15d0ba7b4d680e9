// Package crawl ties together the prober, change detector, analysis
// pipeline, scheduler, and webhook sender into the single per-resource
// pipeline described in spec §2's data flow: scheduler -> prober -> checks
// store -> change detector -> (if warranted) analysis -> catalog update +
// webhook. Used both by the scheduler loop and by the REST façade's
// on-demand probe endpoint, so both paths share identical semantics.
package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/analysis"
	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/detector"
	"github.com/opendata-ops/hydracrawl/internal/logging"
	"github.com/opendata-ops/hydracrawl/internal/metrics"
	"github.com/opendata-ops/hydracrawl/internal/model"
	"github.com/opendata-ops/hydracrawl/internal/prober"
	"github.com/opendata-ops/hydracrawl/internal/queue"
	"github.com/opendata-ops/hydracrawl/internal/scheduler"
	"github.com/opendata-ops/hydracrawl/internal/webhook"
)

// Store is the subset of store.Store the orchestrator depends on directly;
// it is satisfied by *store.Store.
type Store interface {
	GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	InsertCheck(ctx context.Context, c *model.Check) (int64, error)
	SetLastCheck(ctx context.Context, id uuid.UUID, checkID int64) error
	RecentChecks(ctx context.Context, id uuid.UUID, n int) ([]*model.Check, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error
}

// Orchestrator runs one full probe->detect->(analyse)->webhook cycle.
type Orchestrator struct {
	store     Store
	prober    *prober.Prober
	pipeline  *analysis.Pipeline
	scheduler *scheduler.Scheduler
	sender    *webhook.Sender
	queue     *queue.Queue
	cfg       *config.Config
	log       *logging.Logger
}

func New(store Store, p *prober.Prober, pipeline *analysis.Pipeline, sched *scheduler.Scheduler,
	sender *webhook.Sender, q *queue.Queue, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store: store, prober: p, pipeline: pipeline, scheduler: sched,
		sender: sender, queue: q, cfg: cfg, log: logging.For("crawl"),
	}
}

// Probe runs the full cycle for one resource: probe, write a checks row,
// detect change, and — if warranted — enqueue analysis and a webhook. Used
// both by the scheduler's batch loop and by the on-demand /api/checks/ route.
func (o *Orchestrator) Probe(ctx context.Context, res *model.Resource, forceAnalysis bool) (*model.Check, error) {
	if err := o.store.SetStatus(ctx, res.ResourceID, model.StatusCrawling); err != nil {
		return nil, fmt.Errorf("crawl: set status crawling: %w", err)
	}

	result := o.prober.Probe(ctx, res.Domain, res.URL)
	metrics.ProbesTotal.WithLabelValues(string(result.Outcome)).Inc()

	now := time.Now().UTC()
	check := prober.ToCheck(res, result, now)

	prior, err := o.store.RecentChecks(ctx, res.ResourceID, 2)
	if err != nil {
		return nil, fmt.Errorf("crawl: load prior checks: %w", err)
	}
	isFirst := len(prior) == 0

	cr := detector.Detect(check, prior, res.HarvestModifiedAt)

	transportFailure := result.Outcome == prober.OutcomeTransport || result.Outcome == prober.Outcome5xx
	next, err := o.scheduler.ScheduleNext(ctx, res.ResourceID, cr.Change, transportFailure, cr.LastModifiedAt)
	if err != nil {
		return nil, err
	}
	check.NextCheckAt = &next

	checkID, err := o.store.InsertCheck(ctx, check)
	if err != nil {
		return nil, fmt.Errorf("crawl: insert check: %w", err)
	}
	check.ID = checkID

	if err := o.store.SetLastCheck(ctx, res.ResourceID, checkID); err != nil {
		return nil, fmt.Errorf("crawl: set last check: %w", err)
	}

	shouldAnalyse := cr.Change != model.HasNotChanged || isFirst || forceAnalysis
	if result.Outcome != prober.OutcomeOK {
		shouldAnalyse = false // cannot download a resource that did not respond successfully
	}

	if shouldAnalyse {
		o.enqueueAnalysis(res, check, prior, cr, isFirst, forceAnalysis)
	} else if cr.Change == model.HasChanged || isFirst || forceAnalysis {
		o.enqueueWebhook(res.ResourceID.String(), check, transportFailure, &cr, nil)
	}

	return check, nil
}

// enqueueAnalysis runs the deferred analysis job and, per spec §4.4 step 9,
// only emits a webhook if the final verdict is HAS_CHANGED, this is the
// first check for the resource, or the caller forced analysis — exactly the
// same gate the pre-analysis branch in Probe applies. preCr is the verdict
// computed before analysis ran; an analysis error never upgrades it, a
// successful run may upgrade it via the checksum tier.
func (o *Orchestrator) enqueueAnalysis(res *model.Resource, check *model.Check, prior []*model.Check,
	preCr model.ChangeResult, isFirst, forceAnalysis bool) {
	var previousChecksum *string
	if len(prior) > 0 {
		previousChecksum = prior[0].Checksum
	}
	shouldNotify := func(cr model.ChangeResult) bool {
		return cr.Change == model.HasChanged || isFirst || forceAnalysis
	}
	o.queue.Enqueue(queue.Default, func(ctx context.Context) error {
		result, err := o.pipeline.Run(ctx, res, check.ID, res.URL, previousChecksum)
		if err != nil {
			metrics.AnalysisRunsTotal.WithLabelValues("error").Inc()
			return err
		}
		if result.AnalysisError != "" {
			metrics.AnalysisRunsTotal.WithLabelValues("analysis-error").Inc()
			errStr := result.AnalysisError
			if shouldNotify(preCr) {
				o.enqueueWebhook(res.ResourceID.String(), check, false, nil, &errStr)
			}
			return nil
		}
		metrics.AnalysisRunsTotal.WithLabelValues("ok").Inc()
		check.Checksum = &result.Checksum
		check.Filesize = &result.Filesize
		check.MimeType = &result.MimeType

		cr := result.ChangeUpgrade
		if result.KeptFile != "" {
			contentEncoding := check.Headers["content-encoding"]
			o.queue.Enqueue(queue.Default, func(ctx context.Context) error {
				return o.pipeline.RunCSVIngest(ctx, res, check.ID, res.URL, result.KeptFile, contentEncoding, result.Tabular)
			})
		}
		final := preCr
		if cr != nil {
			final = *cr
		}
		if shouldNotify(final) {
			o.enqueueWebhook(res.ResourceID.String(), check, false, cr, nil)
		}
		return nil
	})
}

func (o *Orchestrator) enqueueWebhook(resourceID string, check *model.Check, transportFailure bool, cr *model.ChangeResult, analysisError *string) {
	ev := webhook.EventFromCheck(check, transportFailure, cr, analysisError)
	o.queue.Enqueue(queue.High, func(ctx context.Context) error {
		err := o.sender.Send(ctx, resourceID, ev)
		if err != nil {
			metrics.WebhookSendsTotal.WithLabelValues("error").Inc()
			o.log.Printf("webhook send failed for %s: %v", resourceID, err)
			return err
		}
		metrics.WebhookSendsTotal.WithLabelValues("ok").Inc()
		return nil
	})
}
