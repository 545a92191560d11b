package http

import (
	"odinboard/internal/api/http/handlers"
	"odinboard/internal/api/http/mw"
	"odinboard/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func BuildRouter(
	h *handlers.Handler,
	logMW *mw.LoggingMiddleware,
	gzipMW *mw.GzipMiddleware,
	rateLimitMW *mw.RateLimitMiddleware,
	jwtMW *mw.JWTMiddleware,
	corsMW *mw.CORSMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if gzipMW != nil {
		r.Use(gzipMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoints, no auth and no rate limit
	r.Get("/health", h.Health)
	r.Get("/readiness", h.Readiness)
	r.Mount("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		if rateLimitMW != nil {
			api.Use(rateLimitMW.Handler)
		}

		// proxied read surface, upstream payload verbatim
		api.Get("/tokens", h.Tokens)
		api.Get("/newest-tokens", h.NewestTokens)
		api.Get("/older-recent-tokens", h.OlderRecentTokens)
		api.Route("/token/{id}", func(t chi.Router) {
			t.Get("/", h.Token)
			t.Get("/trades", h.TokenTrades)
			t.Get("/holders", h.TokenHolders)
		})
		api.Get("/creator/{principal}/tokens", h.CreatorTokens)
		api.Route("/user/{principal}", func(u chi.Router) {
			u.Get("/", h.User)
			u.Get("/balances", h.UserBalances)
		})

		// board surface, our own shapes
		api.Get("/feed", h.Feed)
		api.Route("/leaderboard", func(lb chi.Router) {
			lb.Get("/", h.Leaderboard)
			lb.Get("/creator/{principal}", h.LeaderboardCreator)
		})

		// admin surface, JWT-protected when enabled
		api.Group(func(admin chi.Router) {
			if jwtMW != nil {
				admin.Use(jwtMW.Handler)
			}
			admin.Post("/invalidate-cache", h.InvalidateCache)
			admin.Post("/refresh", h.ForceRefresh)
		})
	})

	return r
}
