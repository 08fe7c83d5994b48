package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/lending-bot/pkg/ratelimit"
)

func testConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    5 * time.Second,
		RateLimit:  ratelimit.Rate{Limit: 100, Interval: time.Second},
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig())

	var builds atomic.Int32
	resp, err := c.Do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		builds.Add(1)
		return http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// Each attempt must rebuild the request from scratch.
	assert.Equal(t, int32(3), builds.Load())
	assert.Equal(t, int32(3), hits.Load())
}

func TestDoRebuildsWithFreshNonce(t *testing.T) {
	var nonces []int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		n, err := strconv.ParseInt(r.PostFormValue("nonce"), 10, 64)
		require.NoError(t, err)
		nonces = append(nonces, n)
		if len(nonces) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig())
	ns := NewNonceSource()

	resp, err := c.Do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		body := "command=test&nonce=" + strconv.FormatInt(ns.Next(), 10)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, nonces, 3)
	assert.Greater(t, nonces[1], nonces[0])
	assert.Greater(t, nonces[2], nonces[1])
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Permission denied."}`))
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig())

	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// 4xx carries an exchange-level verdict; the adapter interprets it,
	// the transport must not burn attempts on it.
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDoDoesNotRetryRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig())

	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDoExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig())

	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
