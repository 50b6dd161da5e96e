package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mukti/internal/releaseservice"
)

// NewRouter creates a chi router with the release API routes. rules selects
// the aliases and options used by the redirect preview. A non-empty token
// enables Bearer authentication. events, if non-nil, is mounted at
// GET /events inside the auth group.
func NewRouter(svc *releaseservice.Service, rules releaseservice.RulesRequest, token string, events http.Handler) chi.Router {
	h := NewHandler(svc, rules)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(token))

	r.Get("/releases", h.ListReleases)
	r.Get("/releases/latest", h.LatestRelease)
	r.Get("/releases/{version}", h.GetRelease)
	r.Get("/redirects", h.ListRules)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
