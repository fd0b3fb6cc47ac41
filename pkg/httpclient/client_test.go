package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(WithMaxRetries(3))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("retry-after", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(WithMaxRetries(1), WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := client.Do(req)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	var retryErr *RetryableError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, http.StatusTooManyRequests, retryErr.StatusCode)
}

func TestParseAnthropicHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after", "7")
	h.Set("anthropic-ratelimit-requests-remaining", "12")

	info := ParseAnthropicHeaders(h)
	assert.Equal(t, 7*time.Second, info.RetryAfter)
	assert.Equal(t, 12, info.RequestsRemaining)
}

func TestParseOpenAIHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "3")
	h.Set("x-ratelimit-remaining-tokens", "4000")

	info := ParseOpenAIHeaders(h)
	assert.Equal(t, 3*time.Second, info.RetryAfter)
	assert.Equal(t, 4000, info.TokensRemaining)
}
