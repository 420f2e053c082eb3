// Package remote implements a backend that delegates persistence to an HTTP
// service.
//
// The service exposes three unauthenticated endpoints relative to a base URL:
//
//	POST {base}/save   body: one JSON record
//	GET  {base}/data   response: JSON array of records
//	POST {base}/clear
//
// Any transport error or non-2xx response is storage.ErrNetworkFailure. The
// backend never falls back by itself; wrap it in a storage.Chain for that.
package remote

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
	"strings"
	"time"

	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
)

// ErrInvalidBaseURL is returned by New for a base URL that is not absolute http(s).
var ErrInvalidBaseURL = errors.New("remote base URL must be an absolute http or https URL")

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// Backend talks to the persistence service.
type Backend struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	retry   retryPolicy
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient sets the client used for requests. The client itself is
// never modified. Default is a dedicated client without a timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithTimeout bounds each request, including reading the response.
// It applies to the client from WithHTTPClient regardless of option order.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Backend) {
		b.timeout = timeout
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
	}
}

// WithRetry repeats failed requests up to maxAttempts times with exponential
// backoff starting at baseDelay. Only transport errors and 5xx, 408 and 429
// answers are retried. Default is a single attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Backend) {
		b.retry = retryPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay}
	}
}

// New creates a remote backend for the service at baseURL.
func New(baseURL string, opts ...Option) (*Backend, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	b := &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		logger:  slog.Default(),
		retry:   noRetry,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.retry.maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if b.timeout > 0 {
		client := *b.client
		client.Timeout = b.timeout
		b.client = &client
	}
	return b, nil
}

// Name returns "remote".
func (b *Backend) Name() string {
	return "remote"
}

// BaseURL returns the service URL without a trailing slash.
func (b *Backend) BaseURL() string {
	return b.baseURL
}

// Save posts the record to {base}/save.
func (b *Backend) Save(ctx context.Context, record *core.Record) (storage.Outcome, error) {
	if err := core.ValidateRecord(record); err != nil {
		return 0, err
	}
	body, err := storage.MarshalRecord(record)
	if err != nil {
		return 0, err
	}
	if _, err := b.do(ctx, http.MethodPost, "/save", body); err != nil {
		return 0, err
	}
	return storage.Persisted, nil
}

// List fetches {base}/data. Entries that are not valid records are logged
// and skipped.
func (b *Backend) List(ctx context.Context) ([]*core.Record, error) {
	data, err := b.do(ctx, http.MethodGet, "/data", nil)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w: GET /data: %w", storage.ErrNetworkFailure, storage.ErrSerializationFailed, err)
	}

	records := make([]*core.Record, 0, len(raw))
	for i, entry := range raw {
		record, err := storage.UnmarshalRecord(entry)
		if err != nil {
			b.logger.Warn("skipping invalid record from remote", "index", i, "err", err)
			continue
		}
		records = append(records, record)
	}
	storage.SortNewestFirst(records)
	return records, nil
}

// Clear posts to {base}/clear.
func (b *Backend) Clear(ctx context.Context) error {
	_, err := b.do(ctx, http.MethodPost, "/clear", nil)
	return err
}

// Close drops idle connections.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// do performs one logical request under the retry policy and returns the
// response body of the successful attempt.
func (b *Backend) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	err := retryWithBackoff(ctx, b.logger, b.retry, isTemporary, func() error {
		var err error
		result, err = b.attempt(ctx, method, path, body)
		return err
	})
	if err != nil {
		b.logger.Debug("remote request failed", "method", method, "path", path, "err", err)
		if errors.Is(err, storage.ErrNetworkFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", storage.ErrNetworkFailure, err)
	}
	return result, nil
}

func (b *Backend) attempt(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// isTemporary reports whether a failed attempt is worth repeating.
// Transport errors are; client errors are not.
func isTemporary(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
