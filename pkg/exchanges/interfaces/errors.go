package interfaces

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common error variables that exchange adapters may return.
var (
	// ErrUnsupportedExchange is returned by the factory when the requested
	// exchange identifier is not in the known set.
	ErrUnsupportedExchange = errors.New("unsupported exchange")

	// ErrUnsupportedOperation is returned when an adapter's exchange has
	// no equivalent of the requested operation.
	ErrUnsupportedOperation = errors.New("operation not supported by this exchange")
)

// Kind is the normalized classification of an exchange failure, derived
// once at the transport boundary from the response status and message text.
// The remote APIs provide no stable machine-readable code for these cases,
// so the distinguishing signal is the human-readable message; the matching
// lives here and nowhere else.
type Kind int

const (
	// KindUnknown is any exchange-reported error not matched below.
	KindUnknown Kind = iota

	// KindNetwork is a transport-level fault: connection refused or
	// reset, malformed status line, premature EOF.
	KindNetwork

	// KindTimeout is a request that the exchange reported as timed out.
	KindTimeout

	// KindRateLimited is HTTP 429 or an exchange-specific rate-limit
	// signal.
	KindRateLimited

	// KindAuth is an authentication or permission failure. Cannot
	// self-heal; indicates misconfigured credentials or IP filtering.
	KindAuth

	// KindNonce is a nonce-ordering violation, typically caused by the
	// same API key being used from more than one application.
	KindNonce
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindNonce:
		return "nonce"
	default:
		return "unknown"
	}
}

// APIError is an exchange-reported failure. It carries the original message
// text (which drives classification), the HTTP status where available, and
// the normalized Kind.
type APIError struct {
	Exchange   string
	Message    string
	StatusCode int
	Kind       Kind
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api error (status %d): %s", e.Exchange, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Exchange, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates an APIError with its Kind derived from the status
// code and message text.
func NewAPIError(exchange, message string, statusCode int) *APIError {
	return &APIError{
		Exchange:   exchange,
		Message:    message,
		StatusCode: statusCode,
		Kind:       KindOf(message, statusCode),
	}
}

// authIndicators are the message fragments the exchanges use for credential
// and permission failures. Matched case-insensitively.
var authIndicators = []string{
	"invalid api key",
	"permission denied",
	"invalid key/secret",
	"could not find a key",
	"invalid x-bfx-signature",
}

// KindOf maps an exchange-reported message and HTTP status to a Kind.
func KindOf(message string, statusCode int) Kind {
	lower := strings.ToLower(message)

	switch {
	case statusCode == http.StatusTooManyRequests,
		strings.Contains(message, "Error 429"),
		strings.Contains(lower, "ratelimit"),
		strings.Contains(lower, "too many requests"):
		return KindRateLimited

	case strings.Contains(message, "Nonce must be greater"),
		strings.Contains(lower, "nonce is too small"):
		return KindNonce

	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "request timeout"):
		return KindTimeout
	}

	for _, ind := range authIndicators {
		if strings.Contains(lower, ind) {
			return KindAuth
		}
	}

	return KindUnknown
}
