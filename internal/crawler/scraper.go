package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"blsdata/internal/metrics"
	"blsdata/internal/retry"
	"blsdata/pkg/utils"
)

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// DefaultMaxBodyBytes bounds a single download.
const DefaultMaxBodyBytes = 512 << 20

// Scraper performs GET requests against the remote directory. It makes a
// single attempt per call; retrying is the job runner's concern.
type Scraper struct {
	client       *http.Client
	helper       *utils.HTTPHelper
	maxBodyBytes int64
}

// NewScraper creates a scraper with the given timeout and contact string
// for the User-Agent header.
func NewScraper(timeout time.Duration, contact string) *Scraper {
	return NewScraperWithClient(&http.Client{Timeout: timeout}, contact)
}

// NewScraperWithClient creates a scraper around an existing client.
func NewScraperWithClient(client *http.Client, contact string) *Scraper {
	return &Scraper{
		client:       client,
		helper:       utils.NewHTTPHelper(contact),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// UserAgent returns the User-Agent sent with every request.
func (s *Scraper) UserAgent() string {
	return s.helper.UserAgent()
}

// FetchWithMetrics returns (body, statusCode, duration, error). Any status
// other than 200 is an error wrapping ErrUnexpectedStatusCode.
func (s *Scraper) FetchWithMetrics(ctx context.Context, url string) ([]byte, int, time.Duration, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = s.helper.BuildHeaders(nil)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, time.Since(startTime), fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		return nil, resp.StatusCode, time.Since(startTime), fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, time.Since(startTime), fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, time.Since(startTime), nil
}

// Fetch returns the response body of url. Responses with a status that
// IsRetryableStatus rejects fail permanently.
func (s *Scraper) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, statusCode, duration, err := s.FetchWithMetrics(ctx, url)
	metrics.ObserveFetch(statusCode, duration)

	if err != nil && statusCode != 0 && statusCode != http.StatusOK && !IsRetryableStatus(statusCode) {
		return nil, retry.Permanent(err)
	}

	return body, err
}

// IsRetryableStatus reports whether a failed fetch is worth repeating.
func IsRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusInternalServerError: // 500
		return true
	case http.StatusBadGateway: // 502
		return true
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}
