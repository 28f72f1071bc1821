// Package pipeline runs the fetch, link and score stages for one area and
// reports per-stage progress as it goes.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-leads/internal/linker"
	"github.com/sells-group/parcel-leads/internal/metrics"
	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/scorer"
)

// ErrInvalidInput is returned when the requested area cannot be resolved.
// No dataset is contacted in that case.
var ErrInvalidInput = eris.New("pipeline: invalid input")

// errEmptyRoster ends a run after a base fetch that yielded no parcels.
var errEmptyRoster = eris.New("pipeline: no base records")

// Run outcomes reported to metrics.
const (
	outcomeOK       = "ok"
	outcomePartial  = "partial"
	outcomeEmpty    = "empty"
	outcomeCanceled = "canceled"
)

// ProgressFunc observes every applied stage transition of a run over
// area, in stage order.
type ProgressFunc func(area model.Area, stage model.Stage, st model.StageStatus)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for time-windowed signals.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.onProgress = fn }
}

// WithMetrics records stage and run metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline orchestrates one run. A Pipeline holds no per-run state and
// may be reused; concurrent runs share only the linker's fetcher.
type Pipeline struct {
	linker     *linker.Linker
	scorer     *scorer.Scorer
	metrics    *metrics.Metrics
	now        func() time.Time
	onProgress ProgressFunc
}

// New creates a Pipeline.
func New(l *linker.Linker, s *scorer.Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		linker: l,
		scorer: s,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the state of a single Run call through the stages.
type run struct {
	*Pipeline
	ctx      context.Context
	area     model.Area
	log      *zap.Logger
	progress *model.Progress
}

// Run executes every stage for area. Stage failures are recorded in the
// result's progress and never returned; the only errors are
// ErrInvalidInput and context cancellation.
func (p *Pipeline) Run(ctx context.Context, area model.Area) (*model.RunResult, error) {
	area, err := area.Normalize()
	if err != nil {
		return nil, eris.Wrap(ErrInvalidInput, err.Error())
	}

	now := p.now()
	result := &model.RunResult{
		Area:      area,
		Leads:     []*model.Parcel{},
		Progress:  model.NewProgress(),
		StartedAt: now,
	}
	r := &run{
		Pipeline: p,
		ctx:      ctx,
		area:     area,
		progress: result.Progress,
		log: zap.L().With(
			zap.String("component", "pipeline"),
			zap.String("borough", area.Borough),
			zap.String("area", area.Code),
		),
	}
	r.log.Info("pipeline: starting run")

	var roster *model.Roster
	r.stage(model.StageFetchBase, func(ctx context.Context) (model.LinkResult, error) {
		var res model.LinkResult
		var err error
		roster, res, err = p.linker.FetchBase(ctx, area)
		if err == nil && roster.Len() == 0 {
			err = errEmptyRoster
		}
		return res, err
	})

	if roster == nil || roster.Len() == 0 {
		r.skipFrom(model.StageLinkDeeds)
		result.Empty = true
		result.FinishedAt = p.now()
		p.metrics.ObserveRun(outcomeEmpty, 0)
		if ctx.Err() != nil {
			return result, eris.Wrap(ctx.Err(), "pipeline: run canceled")
		}
		return result, nil
	}

	var idx *linker.DocIndex
	stages := []struct {
		stage model.Stage
		fn    func(context.Context) (model.LinkResult, error)
	}{
		{model.StageLinkDeeds, func(ctx context.Context) (model.LinkResult, error) {
			var res model.LinkResult
			var err error
			idx, res, err = p.linker.LinkDeeds(ctx, roster)
			return res, err
		}},
		{model.StageLinkPermits, func(ctx context.Context) (model.LinkResult, error) {
			return p.linker.LinkPermits(ctx, roster, now)
		}},
		{model.StageLinkComplaints, func(ctx context.Context) (model.LinkResult, error) {
			return p.linker.LinkComplaints(ctx, roster, now)
		}},
		{model.StageLinkViolations, func(ctx context.Context) (model.LinkResult, error) {
			return p.linker.LinkViolations(ctx, roster)
		}},
		{model.StageLinkRegistrations, func(ctx context.Context) (model.LinkResult, error) {
			return p.linker.LinkRegistrations(ctx, roster)
		}},
		{model.StageLinkMortgages, func(ctx context.Context) (model.LinkResult, error) {
			return p.linker.LinkMortgages(ctx, roster, idx)
		}},
		{model.StageScore, func(context.Context) (model.LinkResult, error) {
			parcels := roster.Parcels()
			p.scorer.ScoreAll(parcels, now)
			return model.LinkResult{Fetched: len(parcels), Matched: len(parcels)}, nil
		}},
	}
	for _, s := range stages {
		if ctx.Err() != nil {
			r.skipFrom(s.stage)
			result.FinishedAt = p.now()
			p.metrics.ObserveRun(outcomeCanceled, 0)
			return result, eris.Wrap(ctx.Err(), "pipeline: run canceled")
		}
		r.stage(s.stage, s.fn)
	}

	parcels := roster.Parcels()
	cfg := p.scorer.Config()
	result.Leads = scorer.Rank(parcels, cfg.MaxLeads)
	result.Stats = scorer.Summarize(roster.Len(), scorer.Eligible(parcels), result.Leads, cfg.LikelyThreshold)
	result.FinishedAt = p.now()

	outcome := outcomeOK
	if failed := result.Progress.Failed(); len(failed) > 0 {
		outcome = outcomePartial
	}
	p.metrics.ObserveRun(outcome, len(parcels))

	r.log.Info("pipeline: run complete",
		zap.Int("analyzed", result.Stats.TotalAnalyzed),
		zap.Int("leads", result.Stats.DisplayedLeads),
		zap.Int("likely", result.Stats.LikelySellers),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// stage runs fn as stage, converting its error or panic into a failed
// status.
func (r *run) stage(stage model.Stage, fn func(context.Context) (model.LinkResult, error)) {
	r.set(stage, model.StageStatus{State: model.StateLoading})
	start := time.Now()

	res, err := r.call(fn)
	empty := errors.Is(err, errEmptyRoster)
	r.metrics.ObserveStage(stage.String(), start, err != nil && !empty)

	log := r.log.With(
		zap.String("stage", stage.String()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	switch {
	case empty:
		r.set(stage, model.StageStatus{State: model.StateEmpty})
		log.Info("pipeline: no base records")
		return
	case err != nil:
		r.set(stage, model.StageStatus{
			State:         model.StateFailed,
			Batches:       res.Batches,
			FailedBatches: res.FailedBatches,
			Err:           err.Error(),
		})
		log.Error("pipeline: stage failed", zap.Error(err))
		return
	}

	r.set(stage, res.Status())
	log.Info("pipeline: stage complete",
		zap.Int("fetched", res.Fetched),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("failed_batches", res.FailedBatches),
	)
}

func (r *run) call(fn func(context.Context) (model.LinkResult, error)) (res model.LinkResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = eris.Errorf("pipeline: stage panicked: %v", v)
		}
	}()
	return fn(r.ctx)
}

func (r *run) set(stage model.Stage, st model.StageStatus) {
	if r.progress.Set(stage, st) && r.onProgress != nil {
		r.onProgress(r.area, stage, r.progress.Get(stage))
	}
}

// skipFrom marks every not-yet-finished stage from first onwards as skipped.
func (r *run) skipFrom(first model.Stage) {
	for _, s := range model.Stages {
		if s >= first {
			r.set(s, model.StageStatus{State: model.StateSkipped})
		}
	}
}
