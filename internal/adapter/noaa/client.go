// Package noaa is an HTTP client for the NOAA Climate Data Online (CDO) v2
// API, covering the two endpoints the pipeline needs: per-state station
// catalogs and per-station daily GHCND observations.
package noaa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/observability"
	"github.com/jonboulle/clockwork"
)

const defaultBaseURL = "https://www.ncei.noaa.gov/cdo-web/api/v2"

// APIError is a non-transient upstream response: bad token, bad request.
// It is never retried; an invalid token fails the whole run.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cdo api error: status %d: %s", e.StatusCode, e.Body)
}

// Fatal reports whether the error poisons the whole run rather than one
// state. Credential rejections do; any other 4xx is scoped to its request.
func (e *APIError) Fatal() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// transientError marks failures worth retrying: rate limits, 5xx, timeouts,
// dropped connections, truncated bodies.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Config tunes the client. Zero values take the documented defaults.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // per-request timeout, default 40s
	PageLimit int           // results per page, default and max 1000
	PagePause time.Duration // pause between pages, default 200ms
	Units     string        // "standard" or "metric", default "standard"
	Retry     RetryPolicy
	Clock     clockwork.Clock // injectable for deterministic backoff tests
}

// Client fetches station catalogs and daily observations, following
// pagination and retrying transient failures with jittered exponential
// backoff.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	pageLimit  int
	pagePause  time.Duration
	units      string
	retry      RetryPolicy
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a CDO API client. The token is sent on every request;
// the API rejects unauthenticated calls.
func NewClient(token string, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Second
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > 1000 {
		cfg.PageLimit = 1000
	}
	if cfg.PagePause < 0 {
		cfg.PagePause = 0
	} else if cfg.PagePause == 0 {
		cfg.PagePause = 200 * time.Millisecond
	}
	if cfg.Units == "" {
		cfg.Units = "standard"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		pageLimit:  cfg.PageLimit,
		pagePause:  cfg.PagePause,
		units:      cfg.Units,
		retry:      cfg.Retry,
		clock:      cfg.Clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Stations lists the GHCND stations in one state that report at least one of
// the requested datatypes, deduplicated by id. An empty result is (nil, nil):
// "no stations" is a skip condition for the caller, not an error.
func (c *Client) Stations(ctx context.Context, fips string, datatypes []string) ([]domain.Station, error) {
	base := url.Values{
		"datasetid":  {"GHCND"},
		"locationid": {"FIPS:" + fips},
	}
	for _, dt := range datatypes {
		base.Add("datatypeid", dt)
	}

	var out []domain.Station
	seen := make(map[string]bool)
	err := c.paginate(ctx, "stations", base, func(body []byte) (int, error) {
		var page stationsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, r := range page.Results {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			st, err := r.toStation()
			if err != nil {
				return 0, err
			}
			out = append(out, st)
		}
		return len(page.Results), nil
	})
	if err != nil {
		return nil, fmt.Errorf("list stations for FIPS:%s: %w", fips, err)
	}
	return out, nil
}

// DailyData fetches the daily records for one station over [start, end].
// Dates or datatypes absent upstream are simply absent from the result;
// an empty result is (nil, nil).
func (c *Client) DailyData(ctx context.Context, stationID string, start, end time.Time, datatypes []string) ([]domain.DailyRecord, error) {
	base := url.Values{
		"datasetid": {"GHCND"},
		"stationid": {stationID},
		"startdate": {start.Format("2006-01-02")},
		"enddate":   {end.Format("2006-01-02")},
		"units":     {c.units},
	}
	for _, dt := range datatypes {
		base.Add("datatypeid", dt)
	}

	var out []domain.DailyRecord
	err := c.paginate(ctx, "data", base, func(body []byte) (int, error) {
		var page dataResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, r := range page.Results {
			rec, err := r.toRecord()
			if err != nil {
				return 0, err
			}
			out = append(out, rec)
		}
		return len(page.Results), nil
	})
	if err != nil {
		return nil, fmt.Errorf("daily data for %s %s..%s: %w",
			stationID, start.Format("2006-01-02"), end.Format("2006-01-02"), err)
	}
	c.metrics.RecordsFetched.Add(float64(len(out)))
	return out, nil
}

// paginate walks the offset-based pagination of one endpoint until a page
// comes back empty, pausing between pages to stay under the per-second quota.
// consume returns the number of results on the page.
func (c *Client) paginate(ctx context.Context, endpoint string, base url.Values, consume func(body []byte) (int, error)) error {
	offset := 1
	for {
		params := url.Values{}
		for k, vs := range base {
			params[k] = vs
		}
		params.Set("limit", strconv.Itoa(c.pageLimit))
		params.Set("offset", strconv.Itoa(offset))

		body, err := c.get(ctx, endpoint, params)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}

		n, err := consume(body)
		if err != nil {
			return fmt.Errorf("decode %s page at offset %d: %w", endpoint, offset, err)
		}
		if n == 0 {
			return nil
		}
		c.metrics.PagesFetched.Inc()

		offset += c.pageLimit
		if !c.sleep(ctx, c.pagePause) {
			return ctx.Err()
		}
	}
}

// get performs one request with the retry policy applied. The returned body
// is nil for "no content" responses, which terminates pagination normally.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.Delay(attempt - 1)
			c.logger.Warn("transient api failure, backing off",
				"endpoint", endpoint, "attempt", attempt-1, "delay", delay, "error", lastErr)
			if !c.sleep(ctx, delay) {
				return nil, ctx.Err()
			}
			c.metrics.APIRetries.Inc()
		}

		body, err := c.fetchOnce(ctx, endpoint, params)
		if err == nil {
			return body, nil
		}

		var te *transientError
		if !errors.As(err, &te) {
			c.metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, err
		}
		c.metrics.APIRequests.WithLabelValues(endpoint, "transient").Inc()
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{fmt.Errorf("%s request: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{fmt.Errorf("%s: rate limited (429)", endpoint)}
	case resp.StatusCode >= 500:
		return nil, &transientError{fmt.Errorf("%s: upstream failure (%d)", endpoint, resp.StatusCode)}
	case resp.StatusCode == http.StatusNoContent:
		c.metrics.APIRequests.WithLabelValues(endpoint, "empty").Inc()
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{fmt.Errorf("%s: read body: %w", endpoint, err)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.metrics.APIRequests.WithLabelValues(endpoint, "empty").Inc()
		return nil, nil
	}
	c.metrics.APIRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

// sleep waits on the injected clock, honoring cancellation. Returns false
// if the context ended first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
