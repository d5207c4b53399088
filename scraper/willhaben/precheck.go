package willhaben

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Prechecker issues a plain GET before a detail page is rendered, so pages
// that are gone or blocked never cost a browser launch.
type Prechecker struct {
	http *retryablehttp.Client
}

// NewPrechecker creates a Prechecker. retries is the number of extra
// attempts on connection errors and 5xx responses.
func NewPrechecker(timeout time.Duration, retries int) *Prechecker {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.ErrorHandler = lastResponse
	return &Prechecker{http: rc}
}

// lastResponse hands back the final response once retries are exhausted, so
// a 5xx surfaces as a status code rather than a "giving up" error.
func lastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// Check returns the HTTP status code of a GET to url.
func (p *Prechecker) Check(ctx context.Context, url string) (int, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("precheck %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("precheck %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return resp.StatusCode, nil
}
