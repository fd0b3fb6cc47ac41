// Package httpclient provides an HTTP client with rate-limit aware retries,
// shared by the LLM, embedding and reranker adapters.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// RetryStrategy classifies how a failed request should be retried.
type RetryStrategy int

const (
	// NoRetry fails immediately.
	NoRetry RetryStrategy = iota
	// ConservativeRetry allows a couple of quick retries for server errors.
	ConservativeRetry
	// SmartRetry honors rate-limit headers with exponential backoff fallback.
	SmartRetry
)

// RateLimitInfo carries whatever the server told us about when to come back.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetTime         int64
	RequestsRemaining int
	TokensRemaining   int
}

// RateLimitHeaderParser extracts rate-limit info from response headers.
type RateLimitHeaderParser func(http.Header) RateLimitInfo

// Client wraps http.Client with retry handling.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	headerParser RateLimitHeaderParser
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithMaxRetries sets the retry ceiling.
func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

// WithBaseDelay sets the base backoff delay.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

// WithHeaderParser installs a provider-specific rate-limit header parser.
func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(c *Client) { c.headerParser = parser }
}

// New creates a Client with sane defaults: 60s timeout, 3 retries, 2s base
// delay.
func New(opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func strategyFor(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying retryable failures. Requests that will
// be retried must set req.GetBody so the body can be replayed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to replay request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// Transport-level failure; the context or connection is gone.
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		strategy := strategyFor(resp.StatusCode)
		if strategy == NoRetry {
			return resp, nil
		}

		var info RateLimitInfo
		if c.headerParser != nil {
			info = c.headerParser(resp.Header)
		}

		lastResp = resp
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)

		delay := c.delayFor(strategy, attempt, info)
		if attempt >= c.maxRetries || delay <= 0 {
			break
		}

		resp.Body.Close()
		slog.Debug("Retrying HTTP request",
			"status", resp.StatusCode,
			"delay", delay,
			"attempt", attempt+1,
			"max", c.maxRetries)
		time.Sleep(delay)
	}

	return lastResp, &RetryableError{
		StatusCode: statusCode(lastResp),
		Message:    fmt.Sprintf("retries exhausted after %d attempts", c.maxRetries+1),
		Err:        lastErr,
	}
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func (c *Client) delayFor(strategy RetryStrategy, attempt int, info RateLimitInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if info.RetryAfter > 0 {
			return info.RetryAfter
		}
		if info.ResetTime > 0 {
			if d := time.Until(time.Unix(info.ResetTime, 0)); d > 0 {
				return d
			}
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		return backoff + time.Duration(float64(backoff)*0.1)
	case ConservativeRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(2+attempt) * time.Second
	default:
		return 0
	}
}
