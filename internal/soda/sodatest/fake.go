// Package sodatest provides an in-memory soda.Fetcher for tests.
package sodatest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/soda"
)

// HandlerFunc answers one query against an endpoint.
type HandlerFunc func(q soda.Query) ([]soda.Record, error)

// Fetcher serves canned rows per endpoint. Rows are paged by the query's
// Limit and Offset; the Where clause is recorded but not evaluated.
type Fetcher struct {
	mu       sync.Mutex
	rows     map[string][]soda.Record
	handlers map[string]HandlerFunc
	errs     map[string]error
	calls    map[string][]soda.Query
}

// New returns an empty fake. Unknown endpoints return no rows.
func New() *Fetcher {
	return &Fetcher{
		rows:     make(map[string][]soda.Record),
		handlers: make(map[string]HandlerFunc),
		errs:     make(map[string]error),
		calls:    make(map[string][]soda.Query),
	}
}

// Serve sets the rows returned for endpoint.
func (f *Fetcher) Serve(endpoint string, rows ...soda.Record) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[endpoint] = rows
	return f
}

// Handle installs a custom handler for endpoint.
func (f *Fetcher) Handle(endpoint string, h HandlerFunc) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[endpoint] = h
	return f
}

// Fail makes every request to endpoint return err.
func (f *Fetcher) Fail(endpoint string, err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = eris.Errorf("sodatest: %s unavailable", endpoint)
	}
	f.errs[endpoint] = err
	return f
}

// Calls returns the queries issued against endpoint.
func (f *Fetcher) Calls(endpoint string) []soda.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]soda.Query(nil), f.calls[endpoint]...)
}

// Fetch implements soda.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, q soda.Query) ([]soda.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[endpoint] = append(f.calls[endpoint], q)
	err := f.errs[endpoint]
	h := f.handlers[endpoint]
	rows := f.rows[endpoint]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if h != nil {
		return h(q)
	}
	return Page(rows, q), nil
}

// Page applies q's Offset and Limit to rows.
func Page(rows []soda.Record, q soda.Query) []soda.Record {
	if q.Offset >= len(rows) {
		return nil
	}
	end := len(rows)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return rows[q.Offset:end]
}
