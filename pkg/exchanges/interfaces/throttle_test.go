package interfaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleRaiseCapped(t *testing.T) {
	th := NewThrottle(time.Second)
	assert.Equal(t, time.Second, th.Period())

	for i := 0; i < 20; i++ {
		th.Raise()
	}

	// Capped at 1.5x the default, no matter how often pressure repeats.
	assert.Equal(t, 1500*time.Millisecond, th.Period())
}

func TestThrottleZeroDefault(t *testing.T) {
	th := NewThrottle(0)
	assert.Equal(t, time.Duration(0), th.Period())

	th.Raise()
	assert.Greater(t, th.Period(), time.Duration(0))

	before := th.Period()
	for i := 0; i < 20; i++ {
		th.Raise()
	}
	assert.GreaterOrEqual(t, th.Period(), before)
}
