// Package feed fetches active alerts from the NWS CAP API and normalizes
// them into domain alerts. A fetch failure is never interpreted as "no
// alerts": failed zones report an error and keep their last known state.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

var (
	// ErrUnavailable covers timeouts, network failures, and 5xx responses.
	ErrUnavailable = errors.New("feed unavailable")

	// ErrInvalidResponse covers non-JSON bodies and unexpected status codes.
	ErrInvalidResponse = errors.New("invalid feed response")
)

// Result is the outcome of fetching one zone. Err is non-nil when the zone
// could not be fetched this cycle; Alerts is only meaningful when Err is nil.
type Result struct {
	Zone   string
	Alerts []domain.Alert
	Err    error
}

// Client fetches active alerts per UGC zone from the NWS API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates an NWS feed client. The NWS API requires a descriptive
// User-Agent identifying the calling application.
func NewClient(baseURL, userAgent string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Fetch returns the active alerts for one zone, retrying transient failures
// with exponential backoff up to the configured attempt cap. Malformed
// individual records are skipped with a warning; the rest of the batch
// proceeds.
func (c *Client) Fetch(ctx context.Context, zone string) ([]domain.Alert, error) {
	u := fmt.Sprintf("%s/alerts/active?zone=%s", c.baseURL, url.QueryEscape(zone))

	// Exponential backoff: start at 1s, double each retry, cap at 10s.
	backoff := time.Second
	maxBackoff := 10 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, backoff) {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		alerts, err := c.fetchOnce(ctx, u, zone)
		if err == nil {
			return alerts, nil
		}
		lastErr = err
		// Invalid payloads will not get better on retry.
		if errors.Is(err, ErrInvalidResponse) {
			return nil, err
		}
		c.logger.Warn("zone fetch failed, retrying",
			"zone", zone, "attempt", attempt+1, "max", c.maxRetries+1, "error", err)
	}
	return nil, lastErr
}

// FetchZones fetches all zones concurrently. Each zone gets its own Result;
// a failed zone never aborts the others.
func (c *Client) FetchZones(ctx context.Context, zones []string) []Result {
	results := make([]Result, len(zones))

	var wg sync.WaitGroup
	for i, zone := range zones {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alerts, err := c.Fetch(ctx, zone)
			results[i] = Result{Zone: zone, Alerts: alerts, Err: err}
		}()
	}
	wg.Wait()

	return results
}

// Ping verifies connectivity to the feed without fetching zone data.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/alerts/active?limit=1", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) fetchOnce(ctx context.Context, fullURL, zone string) ([]domain.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}

	alerts := make([]domain.Alert, 0, len(fc.Features))
	for _, f := range fc.Features {
		alert, err := parseFeature(f)
		if err != nil {
			c.logger.Warn("skipping malformed alert record", "zone", zone, "error", err)
			continue
		}
		alerts = upsertLatest(alerts, alert)
	}
	return alerts, nil
}

// upsertLatest appends the alert, or when the batch already holds the same
// identity keeps whichever revision was sent later. The API can return
// multiple revisions of one warning within a single response.
func upsertLatest(alerts []domain.Alert, candidate domain.Alert) []domain.Alert {
	for i, a := range alerts {
		if a.Identity == candidate.Identity {
			if candidate.Sent.After(a.Sent) {
				alerts[i] = candidate
			}
			return alerts
		}
	}
	return append(alerts, candidate)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
