package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"odinboard/internal/config"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := New(newTestLogger(), &config.UpstreamConfig{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestClient_RetriesOn5xxThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"tok1"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	body, err := c.Tokens(context.Background(), "", 10)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.JSONEq(t, `[{"id":"tok1"}]`, string(body))
}

func TestClient_ExhaustedRetriesReportFetchError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Token(context.Background(), "tok1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(3), calls.Load(), "bounded retry must stop at max attempts")
}

// 4xx other than 429 is a hard failure, no point retrying
func TestClient_NoRetryOn404(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Token(context.Background(), "gone")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetryOn429(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Token(context.Background(), "tok1")

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NewestTokensQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens", r.URL.Path)
		assert.Equal(t, "created_time:desc", r.URL.Query().Get("sort"))
		assert.Equal(t, "4", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.NewestTokens(context.Background())
	require.NoError(t, err)
}
