package handlers

import (
	"errors"
	"net/http"
	"odinboard/internal/service"
	"odinboard/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

// Leaderboard serves the ranked creator set out of the pipeline's committed
// state. Unlike the proxied routes this is our own shape, so it goes through
// the response envelope.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := service.BoardQuery{
		Metric: r.URL.Query().Get("metric"),
		Tier:   r.URL.Query().Get("tier"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	creators, err := h.Board.Leaderboard(q)
	if err != nil {
		if errors.Is(err, service.ErrBadMetric) || errors.Is(err, service.ErrBadTier) {
			_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", err.Error(), nil)
			return
		}
		h.Log.Errorf("Leaderboard query failed: %v", err)
		_ = httputil.Error(w, r, http.StatusInternalServerError, "internal", "leaderboard query failed", nil)
		return
	}

	view := h.Board.Feed()
	_ = httputil.JSON(w, http.StatusOK, httputil.Envelope{
		"cycle_seq": view.CycleSeq,
		"merged_at": view.MergedAt,
		"creators":  creators,
	}, nil)
}

func (h *Handler) LeaderboardCreator(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	perf, err := h.Board.Creator(principal)
	if err != nil {
		if errors.Is(err, service.ErrCreatorNotFound) {
			_ = httputil.Error(w, r, http.StatusNotFound, "not_found", err.Error(), nil)
			return
		}
		h.Log.Errorf("Creator lookup failed for %s: %v", principal, err)
		_ = httputil.Error(w, r, http.StatusInternalServerError, "internal", "creator lookup failed", nil)
		return
	}

	_ = httputil.JSON(w, http.StatusOK, perf, nil)
}

// Feed serves the merged token list with creator joins and the transient
// new-token highlight set
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	view := h.Board.Feed()
	_ = httputil.JSON(w, http.StatusOK, view, nil)
}

// ForceRefresh asks the pipeline to run a cycle out of schedule
func (h *Handler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	if h.Pipeline == nil {
		_ = httputil.Error(w, r, http.StatusConflict, "sync_disabled", "sync pipeline is not running", nil)
		return
	}

	h.Pipeline.ForceRefresh()
	_ = httputil.JSON(w, http.StatusAccepted, httputil.Envelope{"refresh": "scheduled"}, nil)
}
