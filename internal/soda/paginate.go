package soda

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-leads/internal/metrics"
	"github.com/sells-group/parcel-leads/internal/resilience"
)

// ErrAllBatchesFailed is returned by FetchByKeyBatches when no batch
// succeeded.
var ErrAllBatchesFailed = eris.New("soda: all batches failed")

// PredicateFunc builds the filter clause for one batch of keys.
type PredicateFunc func(batch []string) string

// Options configures a Paginator.
type Options struct {
	PageSize   int
	BatchSize  int
	PageDelay  time.Duration
	BatchDelay time.Duration
}

// DefaultOptions returns the page and batch policy used against the
// public endpoints.
func DefaultOptions() Options {
	return Options{
		PageSize:   5000,
		BatchSize:  50,
		PageDelay:  100 * time.Millisecond,
		BatchDelay: 100 * time.Millisecond,
	}
}

// BatchStatus records the outcome of one key batch.
type BatchStatus struct {
	Index int
	Keys  int
	Rows  int
	Err   error
}

// BatchResult holds the concatenated rows of every successful batch.
type BatchResult struct {
	Records  []Record
	Batches  int
	Failed   int
	Statuses []BatchStatus
}

// FirstErr returns the first batch error, or nil.
func (r *BatchResult) FirstErr() error {
	if r == nil {
		return nil
	}
	for _, s := range r.Statuses {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Paginator applies the page and batch policy on top of a Fetcher.
type Paginator struct {
	fetcher Fetcher
	opts    Options
	metrics *metrics.Metrics
}

// NewPaginator creates a Paginator. Non-positive sizes fall back to
// DefaultOptions; m may be nil.
func NewPaginator(f Fetcher, opts Options, m *metrics.Metrics) *Paginator {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	return &Paginator{fetcher: f, opts: opts, metrics: m}
}

// Options returns the effective options.
func (p *Paginator) Options() Options { return p.opts }

// FetchAllPages requests pages of pageSize rows at increasing offsets
// until a short page comes back. On error the rows read so far are
// returned together with the error.
func (p *Paginator) FetchAllPages(ctx context.Context, endpoint string, q Query, pageSize int) ([]Record, error) {
	if pageSize <= 0 {
		pageSize = p.opts.PageSize
	}
	q.Limit = pageSize

	var all []Record
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return all, eris.Wrapf(err, "soda: %s cancelled at offset %d", endpoint, offset)
		}
		if offset > 0 {
			if err := resilience.Sleep(ctx, p.opts.PageDelay); err != nil {
				return all, eris.Wrapf(err, "soda: %s cancelled at offset %d", endpoint, offset)
			}
		}

		q.Offset = offset
		rows, err := p.fetcher.Fetch(ctx, endpoint, q)
		if err != nil {
			return all, eris.Wrapf(err, "soda: %s page at offset %d", endpoint, offset)
		}
		all = append(all, rows...)

		if len(rows) < pageSize {
			return all, nil
		}
	}
}

// FetchByKeyBatches splits keys into batches of batchSize, filters each
// batch with build (ANDed with base.Where) and fetches every batch in
// order. A failed batch is recorded and skipped; the remaining batches
// still run. The error is non-nil only when every batch failed or ctx
// ended.
func (p *Paginator) FetchByKeyBatches(ctx context.Context, endpoint string, keys []string, batchSize int, build PredicateFunc, base Query) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = p.opts.BatchSize
	}
	batches := Chunk(UniqueKeys(keys), batchSize)
	res := &BatchResult{Batches: len(batches)}

	log := zap.L().With(zap.String("component", "soda"), zap.String("endpoint", endpoint))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrapf(err, "soda: %s cancelled before batch %d", endpoint, i)
		}
		if i > 0 {
			if err := resilience.Sleep(ctx, p.opts.BatchDelay); err != nil {
				return res, eris.Wrapf(err, "soda: %s cancelled before batch %d", endpoint, i)
			}
		}

		q := base
		q.Where = And(base.Where, build(batch))
		rows, err := p.FetchAllPages(ctx, endpoint, q, 0)

		status := BatchStatus{Index: i, Keys: len(batch), Rows: len(rows), Err: err}
		res.Statuses = append(res.Statuses, status)
		if err != nil {
			if ctx.Err() != nil {
				return res, eris.Wrapf(err, "soda: %s batch %d", endpoint, i)
			}
			res.Failed++
			p.metrics.IncFailedBatch(endpoint)
			log.Warn("batch failed",
				zap.Int("batch", i),
				zap.Int("batches", len(batches)),
				zap.Int("keys", len(batch)),
				zap.Error(err),
			)
			continue
		}
		res.Records = append(res.Records, rows...)
	}

	if res.Batches > 0 && res.Failed == res.Batches {
		return res, eris.Wrapf(ErrAllBatchesFailed, "%s: %d batches: %v", endpoint, res.Batches, res.FirstErr())
	}
	return res, nil
}

// UniqueKeys drops blank and repeated keys, keeping first-seen order.
func UniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Chunk partitions items into consecutive slices of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
