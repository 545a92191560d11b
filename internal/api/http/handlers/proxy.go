package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"odinboard/internal/api/http/mw"
	"odinboard/internal/proxy"
	"odinboard/internal/upstream"
	"odinboard/pkg/httputil"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Tokens proxies the generic token listing. sort=created_time gets the short
// TTL class so the dashboard's creation feed stays fresh.
func (h *Handler) Tokens(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	limit := queryInt(r, "limit", 100)

	class := proxy.TTLDefault
	if sort == "created_time" || sort == "created_time:desc" {
		class = proxy.TTLCreatedSort
	}

	h.passthrough(w, r, proxy.TokensKey(sort, limit), class,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.Tokens(ctx, sort, limit)
		})
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.passthrough(w, r, proxy.TokenKey(id), proxy.TTLDefault,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.Token(ctx, id)
		})
}

func (h *Handler) TokenTrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 100)

	h.passthrough(w, r, proxy.TradesKey(id, limit), proxy.TTLTrades,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.TokenTrades(ctx, id, limit)
		})
}

// TokenHolders is the one route that does not pass the payload through
// verbatim: the holder snapshot is reduced to the counting fields only.
func (h *Handler) TokenHolders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, err := h.Proxy.Resolve(r.Context(), proxy.HoldersKey(id), proxy.TTLHolders,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.TokenHolders(ctx, id)
		})
	if err != nil {
		h.fetchError(w, r, err)
		return
	}

	token, err := upstream.DecodeToken(raw)
	if err != nil {
		h.Log.Errorf("Failed to decode holders payload for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to decode holders payload")
		return
	}

	writeRawJSON(w, http.StatusOK, token.HolderSummary())
}

func (h *Handler) CreatorTokens(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")
	limit := queryInt(r, "limit", 100)

	h.passthrough(w, r, proxy.CreatorTokensKey(principal, limit), proxy.TTLDefault,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.CreatorTokens(ctx, principal, limit)
		})
}

func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	h.passthrough(w, r, proxy.UserKey(principal), proxy.TTLDefault,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.User(ctx, principal)
		})
}

func (h *Handler) UserBalances(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")
	lp := r.URL.Query().Get("lp") == "true"
	limit := queryInt(r, "limit", 100)

	h.passthrough(w, r, proxy.UserBalancesKey(principal, lp, limit), proxy.TTLDefault,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.UserBalances(ctx, principal, lp, limit)
		})
}

func (h *Handler) NewestTokens(w http.ResponseWriter, r *http.Request) {
	h.passthrough(w, r, proxy.NewestTokensKey(), proxy.TTLNewest,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.NewestTokens(ctx)
		})
}

func (h *Handler) OlderRecentTokens(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	h.passthrough(w, r, proxy.OlderRecentTokensKey(limit), proxy.TTLOlder,
		func(ctx context.Context) ([]byte, error) {
			return h.Upstream.OlderRecentTokens(ctx, limit)
		})
}

// InvalidateCache evicts exactly one cache key, given verbatim in the body
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"key\": \"<cache key>\"}")
		return
	}

	if err := h.Proxy.Invalidate(r.Context(), body.Key); err != nil {
		h.Log.Errorf("Failed to invalidate cache key=%s: %v", body.Key, err)
		writeError(w, http.StatusInternalServerError, "failed to invalidate cache entry")
		return
	}

	if sub := mw.SubjectFromContext(r); sub != "" {
		h.Log.Infof("Cache key=%s invalidated by %s", body.Key, sub)
	}

	writeRawJSON(w, http.StatusOK, map[string]string{"invalidated": body.Key})
}

// passthrough resolves through the caching proxy and relays the upstream
// payload byte-for-byte
func (h *Handler) passthrough(w http.ResponseWriter, r *http.Request, key string, class proxy.TTLClass, fetch proxy.FetchFunc) {
	raw, err := h.Proxy.Resolve(r.Context(), key, class, fetch)
	if err != nil {
		h.fetchError(w, r, err)
		return
	}

	_ = httputil.Raw(w, http.StatusOK, raw, nil)
}

func (h *Handler) fetchError(w http.ResponseWriter, r *http.Request, err error) {
	h.Log.Errorf("Unrecoverable fetch failure path=%s: %v", r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeRawJSON(w, code, map[string]string{"error": msg})
}

func writeRawJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
