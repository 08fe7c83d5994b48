package bot

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/veiloq/lending-bot/pkg/exchanges/interfaces"
)

// ErrorClass is the recovery verdict for one failure instance.
type ErrorClass int

const (
	// ClassIgnorable: log and start the next cycle immediately, no sleep.
	// Transport-level socket faults fall here; the connection will be
	// re-established on the next call.
	ClassIgnorable ErrorClass = iota

	// ClassTransient: log, sleep the standard cycle interval, retry.
	ClassTransient

	// ClassRateLimited: sleep well beyond the standard interval and
	// raise the adapter's self-imposed request delay.
	ClassRateLimited

	// ClassFatal: surface to the operator and terminate the loop. The
	// condition indicates a misconfiguration that cannot self-heal.
	ClassFatal
)

// String returns the string representation of an ErrorClass.
func (c ErrorClass) String() string {
	switch c {
	case ClassIgnorable:
		return "ignorable"
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Decision is the classifier's recommendation for one failure.
type Decision struct {
	Class ErrorClass

	// Sleep is the total pause before the next cycle, replacing the
	// standard interval for this iteration. Zero for ignorable and
	// fatal failures.
	Sleep time.Duration

	// Hint is a troubleshooting message shown to the operator for fatal
	// failures.
	Hint string

	// Notify marks failures worth pushing to the operator even though
	// the loop recovers from them.
	Notify bool
}

// Troubleshooting hints for conditions that cannot self-heal.
const (
	hintAPIKey    = "Are your API keys correct? No quotation. Just plain keys."
	hintIPFilter  = "Are you using IP filter on the key? Maybe your IP changed?"
	hintNonceUsed = "Are you reusing the API key in multiple applications? Use a unique key for every application."
)

// Classifier maps a caught failure to a recovery decision. One classifier
// serves the whole loop so the backoff arithmetic stays in one place.
type Classifier struct {
	// CycleInterval is the standard sleep between cycles.
	CycleInterval time.Duration

	// RateLimitPause is the total pause after a rate-limit ban. The
	// 130s default matches the observed Poloniex ban length; whether
	// that value is exchange-mandated is undocumented, so it is
	// configurable rather than hardcoded.
	RateLimitPause time.Duration
}

// DefaultRateLimitPause is the pause applied after a rate-limit ban when
// no explicit value is configured.
const DefaultRateLimitPause = 130 * time.Second

// NewClassifier creates a classifier for the given cycle interval.
func NewClassifier(cycleInterval time.Duration) *Classifier {
	return &Classifier{
		CycleInterval:  cycleInterval,
		RateLimitPause: DefaultRateLimitPause,
	}
}

// Classify returns the recovery decision for err.
//
// Exchange-reported failures carry a normalized Kind assigned at the
// transport boundary; everything else is matched structurally as a
// transport-level fault. Unrecognized failures default to transient with
// operator notification, because aborting on every unknown error would
// make the bot useless and ignoring them silently would hide real bugs.
func (c *Classifier) Classify(err error) Decision {
	var apiErr *interfaces.APIError
	if errors.As(err, &apiErr) {
		return c.classifyAPIError(apiErr)
	}

	// Timeouts before connection faults: a timed-out dial satisfies both
	// and should wait out the interval, not spin.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Sleep: c.CycleInterval}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Sleep: c.CycleInterval}
	}

	if isConnectionFault(err) {
		return Decision{Class: ClassIgnorable}
	}

	return Decision{Class: ClassTransient, Sleep: c.CycleInterval, Notify: true}
}

func (c *Classifier) classifyAPIError(apiErr *interfaces.APIError) Decision {
	switch apiErr.Kind {
	case interfaces.KindAuth:
		hint := hintAPIKey
		if strings.Contains(apiErr.Message, "Permission denied") {
			hint = hintIPFilter
		}
		return Decision{Class: ClassFatal, Hint: hint}

	case interfaces.KindNonce:
		return Decision{Class: ClassFatal, Hint: hintNonceUsed}

	case interfaces.KindRateLimited:
		// The ban outlasts the cycle interval; sleep whichever is
		// longer rather than stacking the two.
		sleep := c.RateLimitPause
		if c.CycleInterval > sleep {
			sleep = c.CycleInterval
		}
		return Decision{Class: ClassRateLimited, Sleep: sleep}

	case interfaces.KindTimeout:
		return Decision{Class: ClassTransient, Sleep: c.CycleInterval}

	case interfaces.KindNetwork:
		return Decision{Class: ClassIgnorable}

	default:
		return Decision{Class: ClassTransient, Sleep: c.CycleInterval, Notify: true}
	}
}

// isConnectionFault reports whether err is a socket-level failure that the
// next request will simply not see: refused/reset connections, premature
// EOF, a malformed status line from a dying server.
func isConnectionFault(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && !urlErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
