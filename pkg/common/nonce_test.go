package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStrictlyIncreasing(t *testing.T) {
	ns := NewNonceSource()

	prev := ns.Next()
	for i := 0; i < 1000; i++ {
		n := ns.Next()
		require.Greater(t, n, prev)
		prev = n
	}
}

func TestNonceConcurrentNoDuplicates(t *testing.T) {
	ns := NewNonceSource()

	const (
		goroutines = 50
		perCaller  = 20
	)

	results := make(chan int64, goroutines*perCaller)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := int64(0)
			for j := 0; j < perCaller; j++ {
				n := ns.Next()
				// Each caller must observe its own draws in order.
				assert.Greater(t, n, prev)
				prev = n
				results <- n
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, goroutines*perCaller)
	for n := range results {
		require.False(t, seen[n], "duplicate nonce %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, goroutines*perCaller)
}
