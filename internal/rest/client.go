// Package rest implements the client for the hosted backend's
// Postgres-over-REST interface: request shaping, auth headers, retry of
// transient failures, circuit breaking and response normalization.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	apperrors "bytebank/internal/errors"
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() (string, error)
}

// Client issues requests against {baseURL}/rest/v1/{table}.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many extra attempts follow a transient failure.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryBackoff sets the base delay between attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithRateLimit bounds the request rate toward the backend.
func WithRateLimit(perSecond, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger installs a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a REST client for the backend at baseURL.
func NewClient(baseURL, anonKey string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		maxRetries: 3,
		backoff:    250 * time.Millisecond,
		metrics:    NoopMetrics{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "backend-rest",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Auth and business errors mean the backend answered; only
		// transient network failures count against the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return c
}

// Get fetches rows from table and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, table string, q *Query, out any) error {
	resp, err := c.do(ctx, http.MethodGet, table, q, nil, false)
	if err != nil {
		return err
	}
	return decodeInto(resp.body, out, false)
}

// Post inserts body into table. When out is non-nil the inserted
// representation is requested and decoded into it; representation arrays
// unwrap to their first element.
func (c *Client) Post(ctx context.Context, table string, body, out any) error {
	resp, err := c.do(ctx, http.MethodPost, table, nil, body, out != nil)
	if err != nil {
		return err
	}
	return decodeInto(resp.body, out, true)
}

// Patch partially updates the rows selected by q.
func (c *Client) Patch(ctx context.Context, table string, q *Query, body, out any) error {
	resp, err := c.do(ctx, http.MethodPatch, table, q, body, out != nil)
	if err != nil {
		return err
	}
	return decodeInto(resp.body, out, true)
}

// Put replaces the rows selected by q.
func (c *Client) Put(ctx context.Context, table string, q *Query, body, out any) error {
	resp, err := c.do(ctx, http.MethodPut, table, q, body, out != nil)
	if err != nil {
		return err
	}
	return decodeInto(resp.body, out, true)
}

// Delete removes the rows selected by q.
func (c *Client) Delete(ctx context.Context, table string, q *Query) error {
	_, err := c.do(ctx, http.MethodDelete, table, q, nil, false)
	return err
}

// Count returns the exact number of rows matching q, using a HEAD request
// so no row data travels.
func (c *Client) Count(ctx context.Context, table string, q *Query) (int64, error) {
	resp, err := c.do(ctx, http.MethodHead, table, q, nil, false)
	if err != nil {
		return 0, err
	}

	total, err := parseContentRangeTotal(resp.contentRange)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.NetworkBadStatus, err)
	}
	return total, nil
}

type response struct {
	body         []byte
	contentRange string
}

func (c *Client) do(ctx context.Context, method, table string, q *Query, body any, representation bool) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.IncRetry(method, table)
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, ctx.Err())
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		resp, err := c.attempt(ctx, method, table, q, payload, representation)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !apperrors.Retryable(err) {
			break
		}
		c.logger.Debug("retrying request",
			slog.String("method", method),
			slog.String("table", table),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, table string, q *Query, payload []byte, representation bool) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, method, table, q, payload, representation)
	})
	c.metrics.ObserveDuration(method, table, time.Since(start))

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = apperrors.Wrap(apperrors.NetworkUnavailable, err)
		}
		c.metrics.IncRequest(method, table, "error")
		return nil, err
	}

	c.metrics.IncRequest(method, table, "ok")
	return result.(*response), nil
}

func (c *Client) roundTrip(ctx context.Context, method, table string, q *Query, payload []byte, representation bool) (*response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/rest/v1/" + table
	if encoded := q.Encode(); encoded != "" {
		url += "?" + encoded
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}
	if method == http.MethodHead {
		req.Header.Set("Prefer", "count=exact")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkRequestFailed, err)
	}

	if err := classifyStatus(resp.StatusCode, resp.Status, body); err != nil {
		return nil, err
	}

	normalized := body
	if resp.StatusCode == http.StatusNoContent {
		normalized = nil
	}

	return &response{
		body:         normalized,
		contentRange: resp.Header.Get("Content-Range"),
	}, nil
}

func classifyStatus(code int, status string, body []byte) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized:
		return apperrors.New(apperrors.AuthExpiredToken)
	case code == http.StatusTooManyRequests:
		return apperrors.New(apperrors.NetworkRateLimited)
	case code >= 500:
		return apperrors.Wrap(apperrors.NetworkUnavailable,
			fmt.Errorf("backend returned %s: %s", status, truncate(body)))
	default:
		return apperrors.Wrap(apperrors.NetworkBadStatus,
			fmt.Errorf("backend returned %s: %s", status, truncate(body)))
	}
}

func truncate(body []byte) string {
	const max = 512
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// decodeInto normalizes empty responses and, for mutations requesting a
// representation, unwraps single-element arrays.
func decodeInto(body []byte, out any, unwrapArray bool) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if unwrapArray && bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		var elements []json.RawMessage
		if err := json.Unmarshal(body, &elements); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if len(elements) == 0 {
			return nil
		}
		body = elements[0]
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseContentRangeTotal extracts the total from a Content-Range header
// such as "0-19/344" or "*/0".
func parseContentRangeTotal(header string) (int64, error) {
	idx := strings.LastIndexByte(header, '/')
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("missing total in Content-Range %q", header)
	}

	totalPart := header[idx+1:]
	if totalPart == "*" {
		return 0, fmt.Errorf("backend did not compute an exact count")
	}

	total, err := strconv.ParseInt(totalPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	return total, nil
}
