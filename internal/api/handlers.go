package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/releaseservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc   *releaseservice.Service
	rules releaseservice.RulesRequest
}

// NewHandler creates a new Handler.
func NewHandler(svc *releaseservice.Service, rules releaseservice.RulesRequest) *Handler {
	return &Handler{svc: svc, rules: rules}
}

// ListReleases handles GET /api/releases.
//
//	@Summary		List releases in registry order
//	@Tags			releases
//	@Produce		json
//	@Success		200	{object}	ReleaseListResponse
//	@Security		BearerAuth
//	@Router			/releases [get]
func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Registry(r.Context())
	if err != nil {
		writeError(w, "list releases", err)
		return
	}
	resp := ReleaseListResponse{
		Releases: make([]ReleaseSummary, 0, len(reg.Releases)),
		Total:    len(reg.Releases),
	}
	for i := range reg.Releases {
		resp.Releases = append(resp.Releases, summarize(&reg.Releases[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRelease handles GET /api/releases/{version}.
//
//	@Summary		Get a single release by version
//	@Tags			releases
//	@Produce		json
//	@Param			version	path		string	true	"Release version"
//	@Success		200		{object}	ReleaseDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/releases/{version} [get]
func (h *Handler) GetRelease(w http.ResponseWriter, r *http.Request) {
	h.writeRelease(w, r, chi.URLParam(r, "version"))
}

// LatestRelease handles GET /api/releases/latest.
//
//	@Summary		Get the most recent active release
//	@Tags			releases
//	@Produce		json
//	@Success		200	{object}	ReleaseDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/releases/latest [get]
func (h *Handler) LatestRelease(w http.ResponseWriter, r *http.Request) {
	h.writeRelease(w, r, "")
}

func (h *Handler) writeRelease(w http.ResponseWriter, r *http.Request, version string) {
	reg, err := h.svc.Registry(r.Context())
	if err != nil {
		writeError(w, "get release", err)
		return
	}
	rel, err := reg.Select(version)
	if err != nil {
		writeError(w, "get release", err)
		return
	}
	writeJSON(w, http.StatusOK, detail(rel))
}

// ListRules handles GET /api/redirects.
//
//	@Summary		Preview the generated redirect rules
//	@Tags			redirects
//	@Produce		json
//	@Param			version	query		string	false	"Release to resolve aliases against"
//	@Success		200		{object}	RulesResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/redirects [get]
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	req := h.rules
	if v := r.URL.Query().Get("version"); v != "" {
		req.Version = v
	}
	rules, rel, err := h.svc.Rules(r.Context(), req)
	if err != nil {
		writeError(w, "list redirects", err)
		return
	}
	writeJSON(w, http.StatusOK, RulesResponse{Version: rel.Version, Rules: rules})
}

// Redirect serves the generated rules the way the static host would: a
// matching source path is redirected with the rule's status.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	rules, _, err := h.svc.Rules(r.Context(), h.rules)
	if err != nil {
		writeError(w, "redirect", err)
		return
	}
	path := r.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, rule := range rules {
		if rule.From == path {
			http.Redirect(w, r, rule.To, rule.Status)
			return
		}
	}
	writeError(w, "redirect", fmt.Errorf("%w: no redirect for %s", apperr.ErrNotFound, path))
}
