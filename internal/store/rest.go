package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"trade-recorder/internal/config"
	"trade-recorder/internal/metrics"
)

const (
	tablePath      = "/spreadsheets/{spreadsheet}/tables/{table}"
	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

// StatusError is a non-retryable HTTP error response from the gateway.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// RestStore is a TableStore backed by a remote sheet gateway.
type RestStore struct {
	client        *resty.Client
	spreadsheetID string
	logger        *zap.Logger
	limiter       *rate.Limiter
	backoff       time.Duration // first retry delay, doubled per attempt
}

// ensure RestStore implements the interface
var _ TableStore = (*RestStore)(nil)

// NewRestStore creates a client for the sheet gateway at cfg.BaseURL.
func NewRestStore(cfg *config.Sheets, logger *zap.Logger) *RestStore {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json")
	if cfg.ApiKey != "" {
		client.SetAuthToken(cfg.ApiKey)
	} else {
		logger.Warn("No sheets API key configured, requests are unauthenticated")
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &RestStore{
		client:        client,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger.Named("sheets"),
		limiter:       rate.NewLimiter(limit, burst),
		backoff:       time.Second,
	}
}

type writeTableRequest struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type writeTableResponse struct {
	Version string `json:"version"`
}

// Read fetches the whole table, bypassing any cache between us and the sheet.
func (s *RestStore) Read(ctx context.Context, table string, columns []string) (result *Table, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("sheets", "read", start, err) }()

	req := s.client.R().
		SetContext(ctx).
		SetPathParams(s.pathParams(table)).
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Pragma", "no-cache").
		SetResult(&Table{})
	if len(columns) > 0 {
		req.SetQueryParam("columns", strings.Join(columns, ","))
	}

	resp, err := s.doRequest(ctx, http.MethodGet, tablePath, req, true)
	if err != nil {
		if statusIs(err, http.StatusNotFound) {
			return nil, fmt.Errorf("read %s: %w", table, ErrTableNotFound)
		}
		s.logger.Error("Failed to read table", zap.String("table", table), zap.Error(err))
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	// The gateway may ignore the column hint, so project here as well.
	tbl := resp.Result().(*Table)
	return tbl.Project(columns)
}

// Write replaces the table, guarded by If-Match on the version read earlier.
// On success t.Version holds the new version.
func (s *RestStore) Write(ctx context.Context, table string, t *Table) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("sheets", "write", start, err) }()

	req := s.client.R().
		SetContext(ctx).
		SetPathParams(s.pathParams(table)).
		SetHeader("Content-Type", "application/json").
		SetBody(writeTableRequest{Columns: t.Columns, Rows: t.Rows}).
		SetResult(&writeTableResponse{})
	if t.Version == "" {
		req.SetHeader("If-None-Match", "*")
	} else {
		req.SetHeader("If-Match", strconv.Quote(t.Version))
	}

	resp, err := s.doRequest(ctx, http.MethodPut, tablePath, req, false)
	if err != nil {
		switch {
		case statusIs(err, http.StatusPreconditionFailed):
			return fmt.Errorf("write %s: %w", table, ErrVersionConflict)
		case statusIs(err, http.StatusNotFound):
			return fmt.Errorf("write %s: %w", table, ErrTableNotFound)
		}
		s.logger.Error("Failed to write table", zap.String("table", table), zap.Error(err))
		return fmt.Errorf("write %s: %w", table, err)
	}

	t.Version = resp.Result().(*writeTableResponse).Version
	s.logger.Debug("Table written",
		zap.String("table", table),
		zap.Int("rows", len(t.Rows)),
		zap.String("version", t.Version),
	)
	return nil
}

func (s *RestStore) pathParams(table string) map[string]string {
	return map[string]string{"spreadsheet": s.spreadsheetID, "table": table}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// Requests that are not idempotent are only retried on 429/418, which the
// gateway answers before doing any work. A transport error or 5xx on such a
// request is returned at once, wrapped in ErrOutcomeUnknown.
func (s *RestStore) doRequest(ctx context.Context, method, url string, req *resty.Request, idempotent bool) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		s.logger.Debug("Executing request", zap.String("method", method), zap.String("url", s.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		// Network errors and throttling or server errors are retried.
		shouldRetry := false
		var retryAfter time.Duration

		if err != nil {
			if !idempotent {
				return nil, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			shouldRetry = true
		} else {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
			err = &StatusError{StatusCode: statusCode, Body: resp.String()}
			if statusCode >= 500 && !idempotent {
				return nil, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
			}
		}

		if !shouldRetry {
			return nil, err
		}
		if i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * s.backoff
		}

		s.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func statusIs(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
