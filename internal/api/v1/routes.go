// Package v1 provides the repository inspection API v1 endpoints.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/repolens/repolens-server/internal/api/common"
	"github.com/repolens/repolens-server/internal/repourl"
	"github.com/repolens/repolens-server/internal/service"
	"github.com/repolens/repolens-server/internal/versions"
)

// Routes handles HTTP requests for the v1 endpoints.
type Routes struct {
	service service.RepositoryService
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.RepositoryService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates and configures the HTTP router for the v1 endpoints.
//
// Repository coordinates and credentials travel in POST bodies rather than
// the URL so tokens never show up in access logs or proxy caches.
func Router(svc service.RepositoryService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Post("/branches", routes.listBranches)
	r.Post("/diff", routes.compareBranches)
	r.Post("/file", routes.getFileContent)
	r.Post("/commits", routes.listCommits)
	r.Post("/resolve", routes.resolve)

	return r
}

// HealthRouter creates the router for the unversioned health and version
// endpoints.
func HealthRouter(svc service.RepositoryService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/health", routes.health)
	r.Get("/version", routes.version)

	return r
}

// repoPayload identifies a repository plus optional per-request credentials.
type repoPayload struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

type diffPayload struct {
	repoPayload
	Base string `json:"base"`
	Head string `json:"head"`
}

type filePayload struct {
	repoPayload
	Ref  string `json:"ref"`
	Path string `json:"path"`
}

type commitsPayload struct {
	repoPayload
	Ref   string `json:"ref"`
	Limit int    `json:"limit,omitempty"`
}

func (p *repoPayload) repoRequest() service.RepoRequest {
	return service.RepoRequest{
		URL:      p.URL,
		Username: p.Username,
		Token:    p.Token,
	}
}

// listBranches handles POST /api/v1/branches
func (rr *Routes) listBranches(w http.ResponseWriter, r *http.Request) {
	var payload repoPayload
	if err := common.DecodeJSONRequest(r, &payload); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.URL == "" {
		common.WriteErrorResponse(w, "url is required", http.StatusBadRequest)
		return
	}

	branches, err := rr.service.ListBranches(r.Context(), payload.repoRequest())
	if err != nil {
		rr.writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, map[string][]string{"branches": branches}, http.StatusOK)
}

// compareBranches handles POST /api/v1/diff
func (rr *Routes) compareBranches(w http.ResponseWriter, r *http.Request) {
	var payload diffPayload
	if err := common.DecodeJSONRequest(r, &payload); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.URL == "" || payload.Base == "" || payload.Head == "" {
		common.WriteErrorResponse(w, "url, base, and head are required", http.StatusBadRequest)
		return
	}

	diff, err := rr.service.CompareBranches(r.Context(), service.DiffRequest{
		RepoRequest: payload.repoRequest(),
		Base:        payload.Base,
		Head:        payload.Head,
	})
	if err != nil {
		rr.writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, map[string]string{"diff": diff}, http.StatusOK)
}

// getFileContent handles POST /api/v1/file
func (rr *Routes) getFileContent(w http.ResponseWriter, r *http.Request) {
	var payload filePayload
	if err := common.DecodeJSONRequest(r, &payload); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.URL == "" || payload.Ref == "" || payload.Path == "" {
		common.WriteErrorResponse(w, "url, ref, and path are required", http.StatusBadRequest)
		return
	}

	content, err := rr.service.GetFileContent(r.Context(), service.FileRequest{
		RepoRequest: payload.repoRequest(),
		Ref:         payload.Ref,
		Path:        payload.Path,
	})
	if err != nil {
		rr.writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, map[string]string{
		"path":    payload.Path,
		"ref":     payload.Ref,
		"content": string(content),
	}, http.StatusOK)
}

// listCommits handles POST /api/v1/commits
func (rr *Routes) listCommits(w http.ResponseWriter, r *http.Request) {
	var payload commitsPayload
	if err := common.DecodeJSONRequest(r, &payload); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.URL == "" || payload.Ref == "" {
		common.WriteErrorResponse(w, "url and ref are required", http.StatusBadRequest)
		return
	}

	commits, err := rr.service.ListCommits(r.Context(), service.CommitsRequest{
		RepoRequest: payload.repoRequest(),
		Ref:         payload.Ref,
		Limit:       payload.Limit,
	})
	if err != nil {
		rr.writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, map[string][]service.Commit{"commits": commits}, http.StatusOK)
}

// resolveResponse reports how a repository URL was normalized. The
// transport URL is always redacted before leaving the server.
type resolveResponse struct {
	CacheKey           string `json:"cache_key"`
	TransportURL       string `json:"transport_url"`
	APIBaseURL         string `json:"api_base_url"`
	EncodedProjectPath string `json:"encoded_project_path"`
}

// resolve handles POST /api/v1/resolve
func (rr *Routes) resolve(w http.ResponseWriter, r *http.Request) {
	var payload repoPayload
	if err := common.DecodeJSONRequest(r, &payload); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.URL == "" {
		common.WriteErrorResponse(w, "url is required", http.StatusBadRequest)
		return
	}

	target, err := rr.service.Resolve(r.Context(), payload.repoRequest())
	if err != nil {
		rr.writeServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, resolveResponse{
		CacheKey:           target.CacheKey,
		TransportURL:       repourl.RedactURL(target.TransportURL),
		APIBaseURL:         target.APIBaseURL,
		EncodedProjectPath: target.EncodedProjectPath,
	}, http.StatusOK)
}

// health handles GET /health
func (rr *Routes) health(w http.ResponseWriter, r *http.Request) {
	if err := rr.service.CheckReadiness(r.Context()); err != nil {
		common.WriteErrorResponse(w, "service not ready", http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// version handles GET /version
func (*Routes) version(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

// writeServiceError maps service failures onto HTTP statuses. Upstream
// details are logged server-side; clients get the sentinel message only.
func (*Routes) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repourl.ErrInvalidURL):
		common.WriteErrorResponse(w, "invalid repository URL", http.StatusBadRequest)
	case errors.Is(err, repourl.ErrUnsupportedScheme):
		common.WriteErrorResponse(w, "unsupported repository URL scheme", http.StatusBadRequest)
	case errors.Is(err, service.ErrRepositoryNotFound):
		common.WriteErrorResponse(w, "repository not found", http.StatusNotFound)
	case errors.Is(err, service.ErrRefNotFound):
		common.WriteErrorResponse(w, "ref not found", http.StatusNotFound)
	case errors.Is(err, service.ErrFileNotFound):
		common.WriteErrorResponse(w, "file not found", http.StatusNotFound)
	case errors.Is(err, service.ErrUpstreamAuth):
		common.WriteErrorResponse(w, "upstream authentication failed", http.StatusBadGateway)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		common.WriteErrorResponse(w, "upstream unavailable", http.StatusBadGateway)
	default:
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		common.WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}
