package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/mukti/internal/releaseservice"
)

// NewServer builds the full preview handler: health checks, the API under
// /api and every other GET path answered from the generated redirect rules.
func NewServer(svc *releaseservice.Service, rules releaseservice.RulesRequest, token string, events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Registry(r.Context()); err != nil {
			writeError(w, "readiness", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Mount("/api", NewRouter(svc, rules, token, events))

	h := NewHandler(svc, rules)
	r.Get("/*", h.Redirect)

	return r
}
