// Package common provides the shared transport layer for exchange adapters:
// a rate-limited, retrying HTTP client and the nonce source for
// authenticated requests.
package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/veiloq/lending-bot/pkg/logging"
	"github.com/veiloq/lending-bot/pkg/ratelimit"
)

// RequestBuilder produces a fresh, fully signed *http.Request.
//
// The client calls the builder once per attempt rather than cloning a
// request, because authenticated exchange requests embed a nonce in the
// signed body: a retried attempt must be rebuilt and re-signed with a fresh
// nonce, never replayed. The nonce counter therefore advances exactly once
// per attempt, including retries.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// HTTPClient is the transport used by all exchange adapters.
type HTTPClient interface {
	// Do acquires a rate-limit slot, builds and executes the request,
	// and retries server errors (5xx) and network faults. Responses with
	// other status codes are returned to the caller untouched; deciding
	// what a 4xx or an exchange-level error body means is adapter logic.
	Do(ctx context.Context, build RequestBuilder) (*http.Response, error)

	// Get is a convenience wrapper around Do for public endpoints.
	Get(ctx context.Context, url string) (*http.Response, error)

	// SetRateLimit updates the rate limiter configuration.
	SetRateLimit(limit ratelimit.Rate) error
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout   time.Duration
	RateLimit ratelimit.Rate

	MaxRetries uint
	RetryDelay time.Duration

	Logger logging.Logger
}

// DefaultConfig returns a default client configuration: a 6 requests per
// second budget (the Poloniex published limit) and three attempts per call.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout: 30 * time.Second,
		RateLimit: ratelimit.Rate{
			Limit:    6,
			Interval: time.Second,
		},
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NewNop(),
	}
}

// client implements the HTTPClient interface.
type client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	logger     logging.Logger
}

// NewHTTPClient creates a new HTTP client with the given configuration.
func NewHTTPClient(config *ClientConfig) HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}

	return &client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: ratelimit.NewWindowLimiter(config.RateLimit),
		logger:  config.Logger,
	}
}

// Do implements the HTTPClient interface.
func (c *client) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	var resp *http.Response

	err := retry.Do(
		func() error {
			// Every attempt is a separate outbound call and must hold
			// its own rate-limit slot.
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			req, err := build(ctx)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("building request: %w", err))
			}

			resp, err = c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("http request error: %w", err)
			}

			// 5xx is the exchange's problem, worth another attempt.
			// 429 is deliberately NOT retried here: hammering a banned
			// key makes the ban worse; the control loop backs off instead.
			if resp.StatusCode >= 500 {
				drain(resp)
				return fmt.Errorf("server error: status %d", resp.StatusCode)
			}

			return nil
		},
		retry.Attempts(c.config.MaxRetries),
		retry.Delay(c.config.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying request",
				logging.Int("attempt", int(n)),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries, err)
	}

	return resp, nil
}

// Get implements the HTTPClient interface.
func (c *client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// SetRateLimit implements the HTTPClient interface.
func (c *client) SetRateLimit(limit ratelimit.Rate) error {
	return c.limiter.SetLimit(limit)
}

// drain discards and closes a response body so the underlying connection
// can be reused by the next attempt.
func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
