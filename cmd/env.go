package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/fetcher"
	"github.com/sells-group/parcel-leads/internal/linker"
	"github.com/sells-group/parcel-leads/internal/metrics"
	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/pipeline"
	"github.com/sells-group/parcel-leads/internal/resilience"
	"github.com/sells-group/parcel-leads/internal/scorer"
	"github.com/sells-group/parcel-leads/internal/snapshot"
	"github.com/sells-group/parcel-leads/internal/soda"
	"github.com/sells-group/parcel-leads/internal/store"
)

// runEnv holds the pipeline and its collaborators for the run, batch and
// serve commands.
type runEnv struct {
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Store    store.Store // nil unless requested
	Version  int
}

// Close releases resources held by the environment.
func (e *runEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Snapshot runs the pipeline for area and projects the result.
func (e *runEnv) Snapshot(ctx context.Context, area model.Area) (*snapshot.Snapshot, error) {
	res, err := e.Pipeline.Run(ctx, area)
	if err != nil {
		return nil, err
	}
	return snapshot.Build(res, e.Version), nil
}

// initEnv validates c and builds the dataset client, linker, scorer and
// pipeline. withStore also opens and migrates the snapshot store.
func initEnv(ctx context.Context, c *config.Config, withStore bool, progress pipeline.ProgressFunc) (*runEnv, error) {
	if err := c.Validate("run"); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(c.Scoring); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := soda.NewHTTPClient(newFetcher(c.SODA), c.SODA.BaseURL, m)
	pager := soda.NewPaginator(client, soda.Options{
		PageSize:   c.SODA.PageSize,
		BatchSize:  c.SODA.BatchSize,
		PageDelay:  time.Duration(c.SODA.PageDelayMs) * time.Millisecond,
		BatchDelay: time.Duration(c.SODA.BatchDelayMs) * time.Millisecond,
	}, m)

	opts := []pipeline.Option{pipeline.WithMetrics(m)}
	if progress != nil {
		opts = append(opts, pipeline.WithProgress(progress))
	}
	p := pipeline.New(
		linker.New(pager, c.Datasets, c.Linker),
		scorer.New(c.Scoring),
		opts...,
	)

	env := &runEnv{Pipeline: p, Metrics: m, Registry: reg, Version: c.Snapshot.Version}
	if withStore {
		st, err := openStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}
	return env, nil
}

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if err := c.Validate("store"); err != nil {
		return nil, err
	}
	return store.Open(ctx, c.Store)
}

// newFetcher builds the HTTP fetcher for the dataset API: app token
// header, retries, and an adaptive limiter on the API host.
func newFetcher(c config.SODAConfig) *fetcher.HTTPFetcher {
	opts := fetcher.HTTPOptions{
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		Headers:   map[string]string{"X-App-Token": c.AppToken},
		Retry:     resilience.FromRetryConfig(c.MaxRetries, time.Second),
	}
	if c.RatePerSec > 0 {
		burst := max(int(c.RatePerSec), 1)
		opts.AdaptiveLimiters = map[string]*fetcher.AdaptiveLimiter{
			fetcher.HostOf(c.BaseURL): fetcher.NewAdaptiveLimiter(rate.Limit(c.RatePerSec), burst),
		}
	}
	return fetcher.NewHTTPFetcher(opts)
}
