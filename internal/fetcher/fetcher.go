// Package fetcher downloads dataset pages over HTTP, pacing requests per
// host and retrying throttled or failed responses.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads one resource. The caller closes the body.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
