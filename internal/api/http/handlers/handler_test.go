package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"odinboard/internal/cache"
	"odinboard/internal/config"
	"odinboard/internal/domain"
	"odinboard/internal/feed"
	"odinboard/internal/proxy"
	"odinboard/internal/service"
	"odinboard/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
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

type staticBoard struct {
	view feed.View
}

func (s *staticBoard) View() feed.View { return s.view }

type fakeRefresher struct {
	called atomic.Bool
}

func (f *fakeRefresher) ForceRefresh() { f.called.Store(true) }

type brokenDep struct{}

func (brokenDep) Health(context.Context) error { return assert.AnError }

// newTestHandler wires a real proxy and upstream client against the given
// fake market server, plus a board over a canned view
func newTestHandler(t *testing.T, upstreamURL string, view feed.View) *Handler {
	t.Helper()

	lg := newTestLogger()

	store := cache.NewMemoryStore(lg, 3, time.Hour, 0)
	t.Cleanup(store.Close)

	pxy, err := proxy.New(lg, store, &config.TTLClassesConfig{})
	require.NoError(t, err)

	up, err := upstream.New(lg, &config.UpstreamConfig{
		BaseURL:     upstreamURL,
		Timeout:     2 * time.Second,
		MaxAttempts: 1,
	})
	require.NoError(t, err)

	board := service.NewBoardService(lg, &staticBoard{view: view}, domain.DefaultTierThresholds())

	return New(lg, pxy, up, board, &fakeRefresher{})
}

// the same api surface the real router mounts, minus middleware
func testRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/health", h.Health)
	r.Get("/readiness", h.Readiness)

	r.Route("/api", func(api chi.Router) {
		api.Get("/tokens", h.Tokens)
		api.Route("/token/{id}", func(t chi.Router) {
			t.Get("/", h.Token)
			t.Get("/holders", h.TokenHolders)
		})
		api.Get("/leaderboard", h.Leaderboard)
		api.Get("/leaderboard/creator/{principal}", h.LeaderboardCreator)
		api.Get("/feed", h.Feed)
		api.Post("/invalidate-cache", h.InvalidateCache)
		api.Post("/refresh", h.ForceRefresh)
	})

	return r
}

func boardView(creators ...*domain.CreatorPerformance) feed.View {
	tokens := make([]domain.TokenWithCreator, 0, len(creators))
	for _, c := range creators {
		tokens = append(tokens, domain.TokenWithCreator{
			Token:   domain.Token{ID: c.Principal + "-1", Creator: c.Principal},
			Creator: c,
		})
	}
	return feed.View{CycleSeq: 3, MergedAt: time.Now(), Tokens: tokens}
}

func TestTokens_PassthroughVerbatim(t *testing.T) {
	t.Parallel()

	// spacing deliberately non-canonical; a re-encode would normalize it
	payload := `[ {"id":"a",  "odd_field":1} ]`

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL, feed.View{})
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String(), "upstream payload must pass through byte-for-byte")
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	// second hit is served from cache
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/tokens", nil))
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokens_UpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL, feed.View{})
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"], "failures must use the {\"error\": ...} shape")
}

func TestTokenHolders_FieldReduced(t *testing.T) {
	t.Parallel()

	full := domain.Token{
		ID:          "tok-1",
		Name:        "Oden",
		Creator:     "alice",
		Price:       12345,
		Volume:      999,
		HolderCount: 42,
		HolderTop:   10,
		HolderDev:   3,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(full)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL, feed.View{})
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/token/tok-1/holders", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "tok-1", got["id"])
	assert.EqualValues(t, 42, got["holder_count"])
	assert.EqualValues(t, 10, got["holder_top"])
	assert.EqualValues(t, 3, got["holder_dev"])
	assert.NotContains(t, got, "price", "holder route must strip market fields")
	assert.NotContains(t, got, "volume")
	assert.NotContains(t, got, "creator")
}

func TestInvalidateCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL, feed.View{})
	router := testRouter(h)

	get := func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	get()
	get()
	require.Equal(t, int32(1), calls.Load())

	key := proxy.TokensKey("", 100)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/invalidate-cache",
		bytes.NewBufferString(`{"key":"`+key+`"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"invalidated":"`+key+`"}`, rec.Body.String())

	get()
	assert.Equal(t, int32(2), calls.Load(), "invalidated key must refetch")
}

func TestInvalidateCache_BadBody(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", feed.View{})
	router := testRouter(h)

	for _, body := range []string{``, `{}`, `not json`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/invalidate-cache",
			strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", feed.View{})
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", feed.View{})
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	h.Board.RegisterDependency("redis", brokenDep{})

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis connection error")
}

func TestForceRefresh(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", feed.View{})
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, h.Pipeline.(*fakeRefresher).called.Load())
}

func TestForceRefresh_SyncDisabled(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", feed.View{})
	h.Pipeline = nil
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeaderboardEndpoint(t *testing.T) {
	t.Parallel()

	view := boardView(
		&domain.CreatorPerformance{Principal: "alice", ConfidenceScore: 92},
		&domain.CreatorPerformance{Principal: "bob", ConfidenceScore: 55},
	)

	h := newTestHandler(t, "http://127.0.0.1:0", view)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			CycleSeq uint64                      `json:"cycle_seq"`
			Creators []domain.CreatorPerformance `json:"creators"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, uint64(3), body.Data.CycleSeq)
	require.Len(t, body.Data.Creators, 2)
	assert.Equal(t, "alice", body.Data.Creators[0].Principal)
	assert.Equal(t, 1, body.Data.Creators[0].Rank)
}

func TestLeaderboardEndpoint_BadMetric(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", boardView())
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard?metric=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown ranking metric")
}

func TestLeaderboardCreator_NotFound(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "http://127.0.0.1:0", boardView())
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard/creator/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedEndpoint(t *testing.T) {
	t.Parallel()

	view := boardView(&domain.CreatorPerformance{Principal: "alice", ConfidenceScore: 92})
	view.NewTokenIDs = []string{"alice-1"}

	h := newTestHandler(t, "http://127.0.0.1:0", view)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string    `json:"status"`
		Data   feed.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Data.Tokens, 1)
	assert.Equal(t, []string{"alice-1"}, body.Data.NewTokenIDs)
}
