package interfaces

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		statusCode int
		want       Kind
	}{
		{"invalid api key", "Invalid API key/secret pair.", 0, KindAuth},
		{"permission denied", "Permission denied.", 403, KindAuth},
		{"bitfinex unknown key", "Could not find a key matching the given X-BFX-APIKEY.", 400, KindAuth},
		{"bitfinex bad signature", "Invalid X-BFX-SIGNATURE.", 400, KindAuth},
		{"nonce ordering", "Nonce must be greater than 1522080271091. You provided 1522080271090.", 0, KindNonce},
		{"bitfinex nonce", "Nonce is too small.", 400, KindNonce},
		{"timeout", "Request timed out.", 0, KindTimeout},
		{"http 429", "", http.StatusTooManyRequests, KindRateLimited},
		{"legacy 429 text", "HTTP Error 429: Too Many Requests", 0, KindRateLimited},
		{"bitfinex ratelimit", "ERR_RATE_LIMIT: ratelimit reached", 0, KindRateLimited},
		{"server error", "Internal error. Please try again.", 500, KindUnknown},
		{"empty", "", 0, KindUnknown},
		{"unrelated", "Total must be at least 0.0001.", 0, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.message, tt.statusCode))
		})
	}
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("poloniex", "Invalid API key/secret pair.", 403)

	assert.Equal(t, KindAuth, err.Kind)
	assert.Contains(t, err.Error(), "poloniex")
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "Invalid API key")

	var apiErr *APIError
	wrapped := fmt.Errorf("get balances: %w", err)
	require.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, KindAuth, apiErr.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "nonce", KindNonce.String())
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
