package soda

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/fetcher"
	"github.com/sells-group/parcel-leads/internal/metrics"
)

// Fetcher runs a single query against a dataset endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, q Query) ([]Record, error)
}

// HTTPClient implements Fetcher against a Socrata-compatible host.
type HTTPClient struct {
	fetcher fetcher.Fetcher
	baseURL string
	metrics *metrics.Metrics
}

// NewHTTPClient creates a client for baseURL (e.g. https://data.cityofnewyork.us).
// m may be nil.
func NewHTTPClient(f fetcher.Fetcher, baseURL string, m *metrics.Metrics) *HTTPClient {
	return &HTTPClient{
		fetcher: f,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: m,
	}
}

// URL returns the resource URL for endpoint with q encoded.
func (c *HTTPClient) URL(endpoint string, q Query) string {
	return c.baseURL + "/resource/" + endpoint + ".json?" + q.Values().Encode()
}

// Fetch downloads and decodes one page of endpoint.
func (c *HTTPClient) Fetch(ctx context.Context, endpoint string, q Query) ([]Record, error) {
	body, err := c.fetcher.Download(ctx, c.URL(endpoint, q))
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, err)
		return nil, eris.Wrapf(err, "soda: fetch %s", endpoint)
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.CollectArray[Record](ctx, body)
	c.metrics.ObserveRequest(endpoint, len(rows), err)
	if err != nil {
		return nil, eris.Wrapf(err, "soda: decode %s", endpoint)
	}
	return rows, nil
}
