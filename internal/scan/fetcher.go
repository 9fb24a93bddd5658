package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// MaxBodyBytes caps how much of a page is downloaded and stored
const MaxBodyBytes = 5 << 20

// ErrUnexpectedStatus is returned for responses outside the 2xx range
var ErrUnexpectedStatus = errors.New("unexpected status code")

// NewHTTPClient creates an HTTP client with connection pooling for page fetches
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// FetchResult is the response to a page fetch
type FetchResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Truncated   bool
}

// Fetcher downloads pages, spacing requests with a shared rate limiter
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	maxBody int64
}

// NewFetcher creates a fetcher allowing requestsPerSec requests per second across all workers
func NewFetcher(client *http.Client, requestsPerSec float64) *Fetcher {
	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		maxBody: MaxBodyBytes,
	}
}

// Fetch GETs url. A non-2xx response returns the result together with ErrUnexpectedStatus.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "updatescanner/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := &FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if int64(len(body)) > f.maxBody {
		result.Body = body[:f.maxBody]
		result.Truncated = true
		slog.Warn("Page body truncated", "url", url, "max_bytes", f.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return result, nil
}
