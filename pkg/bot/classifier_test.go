package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
)

const testInterval = 60 * time.Second

func apiError(kind interfaces.Kind, message string) error {
	return &interfaces.APIError{
		Exchange: "poloniex",
		Message:  message,
		Kind:     kind,
	}
}

func TestClassifyAuthErrorsAreFatal(t *testing.T) {
	c := NewClassifier(testInterval)

	tests := []struct {
		name     string
		message  string
		wantHint string
	}{
		{"bad key", "Invalid API key/secret pair.", hintAPIKey},
		{"ip filter", "Permission denied.", hintIPFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(apiError(interfaces.KindAuth, tt.message))
			assert.Equal(t, ClassFatal, d.Class)
			assert.Equal(t, tt.wantHint, d.Hint)
			assert.Zero(t, d.Sleep)
		})
	}
}

func TestClassifyNonceErrorIsFatal(t *testing.T) {
	c := NewClassifier(testInterval)

	d := c.Classify(apiError(interfaces.KindNonce, "Nonce must be greater than 1512345678. You provided 42."))

	assert.Equal(t, ClassFatal, d.Class)
	assert.Equal(t, hintNonceUsed, d.Hint)
}

func TestClassifyRateLimited(t *testing.T) {
	c := NewClassifier(testInterval)

	d := c.Classify(apiError(interfaces.KindRateLimited, "Error 429"))

	assert.Equal(t, ClassRateLimited, d.Class)
	assert.Equal(t, DefaultRateLimitPause, d.Sleep)
}

func TestClassifyRateLimitedLongInterval(t *testing.T) {
	// A cycle interval longer than the ban pause wins; the two never stack.
	c := NewClassifier(5 * time.Minute)

	d := c.Classify(apiError(interfaces.KindRateLimited, "Error 429"))

	assert.Equal(t, ClassRateLimited, d.Class)
	assert.Equal(t, 5*time.Minute, d.Sleep)
}

func TestClassifyTimeoutsAreTransient(t *testing.T) {
	c := NewClassifier(testInterval)

	tests := []struct {
		name string
		err  error
	}{
		{"api timeout", apiError(interfaces.KindTimeout, "request timed out")},
		{"deadline", fmt.Errorf("placing offers: %w", context.DeadlineExceeded)},
		{"url timeout", &url.Error{Op: "Post", URL: "https://poloniex.com", Err: timeoutError{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.err)
			assert.Equal(t, ClassTransient, d.Class)
			assert.Equal(t, testInterval, d.Sleep)
			assert.False(t, d.Notify)
		})
	}
}

func TestClassifyConnectionFaultsAreIgnorable(t *testing.T) {
	c := NewClassifier(testInterval)

	tests := []struct {
		name string
		err  error
	}{
		{"reset", fmt.Errorf("reading body: %w", syscall.ECONNRESET)},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
		{"unexpected eof", io.ErrUnexpectedEOF},
		{"api network", apiError(interfaces.KindNetwork, "connection reset by peer")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.err)
			assert.Equal(t, ClassIgnorable, d.Class)
			assert.Zero(t, d.Sleep)
		})
	}
}

func TestClassifyUnknownErrorsNotify(t *testing.T) {
	c := NewClassifier(testInterval)

	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errors.New("something odd happened")},
		{"unknown api error", apiError(interfaces.KindUnknown, "Total must be at least 0.0001.")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.err)
			assert.Equal(t, ClassTransient, d.Class)
			assert.Equal(t, testInterval, d.Sleep)
			assert.True(t, d.Notify)
		})
	}
}

// timeoutError satisfies net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
