package handlers

import (
	"net/http"
)

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness checks the external dependencies registered on the board service
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.Board.CheckDependency(r.Context()); err != nil {
		h.Log.Warnf("Readiness check failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
