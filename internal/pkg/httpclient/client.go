// Package httpclient provides a shared rate-limited HTTP client for external JSON APIs.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrDecode is wrapped into errors for bodies that are not valid JSON for the target.
var ErrDecode = errors.New("decoding response")

// ErrBodyTooLarge is returned when a successful response exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// maxErrorBody bounds how much of an error body ends up in a StatusError.
const maxErrorBody = 512

// defaultMaxBodyBytes caps response bodies when Config.MaxBodyBytes is unset.
const defaultMaxBodyBytes = 4 << 20

// Config holds the configuration for the HTTP client.
type Config struct {
	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration

	RateLimit rate.Limit
	RateBurst int

	// MaxBodyBytes caps how much of a response is read. Defaults to 4 MiB.
	MaxBodyBytes int64

	// HTTPClient is an optional custom HTTP client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// RequestConfig holds per-request configuration.
type RequestConfig struct {
	URL     string
	Headers map[string]string
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status (HTTP %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying (429 and 5xx).
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ObserveFunc is called after every completed round trip. status is 0 when no
// response was received.
type ObserveFunc func(ctx context.Context, url string, status int, duration time.Duration)

// Client wraps an HTTP client with rate limiting. Each call makes exactly one
// request; callers own retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBody    int64
	logger     *slog.Logger
	observe    ObserveFunc
}

// NewClient creates a new HTTP client with the given configuration.
// observe may be nil.
func NewClient(cfg Config, logger *slog.Logger, observe ObserveFunc) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		maxBody:    cfg.MaxBodyBytes,
		logger:     logger,
		observe:    observe,
	}
}

// GetJSON performs an HTTP GET and decodes the JSON body into result.
//
// Non-2xx responses yield a *StatusError. Bodies that are not valid JSON wrap
// ErrDecode and oversized bodies return ErrBodyTooLarge.
func (c *Client) GetJSON(ctx context.Context, reqCfg RequestConfig, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return c.doSingleRequest(ctx, reqCfg, result)
}

func (c *Client) doSingleRequest(ctx context.Context, reqCfg RequestConfig, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqCfg.URL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range reqCfg.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, reqCfg.URL, 0, start)
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	c.record(ctx, reqCfg.URL, resp.StatusCode, start)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	if int64(len(body)) > c.maxBody {
		return fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, c.maxBody, reqCfg.URL)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return nil
}

func (c *Client) record(ctx context.Context, url string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(ctx, url, status, time.Since(start))
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
