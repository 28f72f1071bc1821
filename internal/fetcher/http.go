package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/parcel-leads/internal/resilience"
)

const maxErrorBody = 4 << 10

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// Headers are set on every request; empty values are skipped.
	Headers map[string]string
	Retry   resilience.RetryConfig
	// RateLimiters pace hosts at a fixed rate.
	RateLimiters map[string]*rate.Limiter
	// AdaptiveLimiters take precedence over RateLimiters for their host.
	AdaptiveLimiters map[string]*AdaptiveLimiter
}

// APIError is a non-success response from the dataset API. Code and
// Message come from the JSON error body when there is one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "http %d", e.StatusCode)
	if e.Code != "" {
		sb.WriteString(" " + e.Code)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	return sb.String()
}

// parseAPIError reads the two error shapes the API emits: {"code","message"}
// and {"error":true,"message"}. Anything else is kept as raw text.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var payload struct {
		Code      string `json:"code"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Code = payload.Code
		if e.Code == "" {
			e.Code = payload.ErrorCode
		}
		e.Message = payload.Message
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0)
	}
	return 0
}

type waiter interface {
	Wait(ctx context.Context) error
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]waiter
}

// NewHTTPFetcher creates a fetcher. Hosts without a limiter are not paced.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "parcel-leads/1.0"
	}

	limiters := make(map[string]waiter, len(opts.RateLimiters)+len(opts.AdaptiveLimiters))
	for host, l := range opts.RateLimiters {
		limiters[host] = l
	}
	for host, l := range opts.AdaptiveLimiters {
		limiters[host] = l
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

// Options returns the options f was built with, defaults applied.
func (f *HTTPFetcher) Options() HTTPOptions { return f.opts }

// HostOf returns the host portion of rawURL, or "" if it does not parse.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Download fetches rawURL and returns the body of a 2xx response.
// Retryable statuses and transport failures are retried per opts.Retry;
// other statuses fail immediately with an *APIError.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "download: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range f.opts.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	host := req.URL.Host
	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.LogRetry(host)
	}

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Response, error) {
		return f.attempt(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "download %s", host)
	}
	return resp.Body, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	if l, ok := f.limiters[host]; ok {
		if err := l.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	}
	adaptive := f.opts.AdaptiveLimiters[host]

	resp, err := f.client.Do(req.Clone(ctx))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "http request"), 0)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if adaptive != nil {
			adaptive.Succeeded()
		}
		return resp, nil
	}

	defer resp.Body.Close() //nolint:errcheck
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := parseAPIError(resp.StatusCode, body)
	if !resilience.RetryableStatus(resp.StatusCode) {
		return nil, apiErr
	}

	wait := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	if resp.StatusCode == http.StatusTooManyRequests && adaptive != nil {
		adaptive.Throttled(wait)
	}
	return nil, resilience.NewTransientError(apiErr, resp.StatusCode).WithRetryAfter(wait)
}
