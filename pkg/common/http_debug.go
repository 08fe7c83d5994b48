package common

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/veiloq/lending-bot/pkg/logging"
	"github.com/veiloq/lending-bot/pkg/ratelimit"
)

// DebugClientConfig holds configuration for the HTTP debug client.
type DebugClientConfig struct {
	*ClientConfig

	LogRequestBody  bool
	LogResponseBody bool

	// MaxBodyLogSize caps the logged request/response body size.
	MaxBodyLogSize int
}

// DefaultDebugConfig returns a default debug client configuration.
func DefaultDebugConfig() *DebugClientConfig {
	return &DebugClientConfig{
		ClientConfig:    DefaultConfig(),
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLogSize:  4096,
	}
}

// NewDebugHTTPClient wraps the standard client with verbose wire-level
// logging. Signed request bodies contain nonces but never the API secret,
// so dumping them at debug level is safe.
func NewDebugHTTPClient(config *DebugClientConfig) HTTPClient {
	if config == nil {
		config = DefaultDebugConfig()
	}
	if config.Logger == nil {
		config.Logger = logging.NewLogger(logging.WithLevel(logging.DEBUG))
	}

	return &debugClient{
		client: NewHTTPClient(config.ClientConfig).(*client),
		config: config,
	}
}

// debugClient implements the HTTPClient interface with wire-level logging.
type debugClient struct {
	client *client
	config *DebugClientConfig
}

// Do implements the HTTPClient interface.
func (c *debugClient) Do(ctx context.Context, build RequestBuilder) (*http.Response, error) {
	start := time.Now()

	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := build(ctx)
		if err == nil {
			c.logRequest(req)
		}
		return req, err
	})

	duration := time.Since(start)
	if err != nil {
		c.client.logger.Error("http request failed",
			logging.Duration("duration", duration),
			logging.Error(err))
		return nil, err
	}

	c.logResponse(resp, duration)
	return resp, nil
}

// Get implements the HTTPClient interface.
func (c *debugClient) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// SetRateLimit implements the HTTPClient interface.
func (c *debugClient) SetRateLimit(limit ratelimit.Rate) error {
	return c.client.SetRateLimit(limit)
}

func (c *debugClient) logRequest(req *http.Request) {
	dump, err := httputil.DumpRequestOut(req, c.config.LogRequestBody)
	if err != nil {
		c.client.logger.Warn("failed to dump request for logging", logging.Error(err))
		return
	}
	c.client.logger.Debug("http request",
		logging.String("method", req.Method),
		logging.String("url", req.URL.String()),
		logging.String("dump", truncate(dump, c.config.MaxBodyLogSize)))
}

func (c *debugClient) logResponse(resp *http.Response, duration time.Duration) {
	var dump []byte
	if c.config.LogResponseBody && resp.Body != nil {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.client.logger.Warn("failed to read response body for logging", logging.Error(err))
		} else {
			dump = body
			// The caller still needs to read the body.
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
	}
	c.client.logger.Debug("http response",
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", duration),
		logging.String("body", truncate(dump, c.config.MaxBodyLogSize)))
}

func truncate(b []byte, max int) string {
	if max > 0 && len(b) > max {
		b = b[:max]
	}
	return string(b)
}
