package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

const defaultFetchTimeout = 2 * time.Minute

// StudentFetcher retrieves the raw student list from the card API.
type StudentFetcher struct {
	client    *http.Client
	apiURL    string
	userAgent string
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewStudentFetcher constructs a fetcher. A nil client gets a fresh one; a client
// without a timeout is copied and the copy gets the timeout, two minutes by default.
func NewStudentFetcher(client *http.Client, apiURL, userAgent string, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *StudentFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout <= 0 {
		bounded := *client
		bounded.Timeout = timeout
		client = &bounded
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentFetcher{client: client, apiURL: apiURL, userAgent: userAgent, metrics: metrics, logger: logger}
}

// Fetch issues one GET and returns the body. Transport failures and non-2xx
// statuses are reported as HTTP_FETCH_ERROR.
func (f *StudentFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrHTTPFetch.Code, "failed to build students request")
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.ObserveFetch(0, time.Since(start))
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("%s %s: %w", urlErr.Op, redactedHost(f.apiURL), urlErr.Err)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrHTTPFetch.Code, "students request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	f.metrics.ObserveFetch(resp.StatusCode, time.Since(start))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, appErrors.Clone(appErrors.ErrHTTPFetch, fmt.Sprintf("students API %s returned status %d", redactedHost(f.apiURL), resp.StatusCode))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrHTTPFetch.Code, "failed to read students response")
	}

	f.logger.Debug("students fetched", zap.String("host", redactedHost(f.apiURL)), zap.Int("bytes", len(body)))
	return body, nil
}

// redactedHost keeps credentials embedded in the path or query out of logs.
func redactedHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid-url>"
	}
	return u.Scheme + "://" + u.Host
}
