package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens-server/internal/repourl"
	"github.com/repolens/repolens-server/internal/service"
)

type stubService struct{}

func (stubService) CheckReadiness(context.Context) error { return nil }
func (stubService) ListBranches(context.Context, service.RepoRequest) ([]string, error) {
	return []string{"main"}, nil
}
func (stubService) CompareBranches(context.Context, service.DiffRequest) (string, error) {
	return "", nil
}
func (stubService) GetFileContent(context.Context, service.FileRequest) ([]byte, error) {
	return nil, nil
}
func (stubService) ListCommits(context.Context, service.CommitsRequest) ([]service.Commit, error) {
	return nil, nil
}
func (stubService) Resolve(context.Context, service.RepoRequest) (*repourl.ResolvedTarget, error) {
	return &repourl.ResolvedTarget{}, nil
}

func TestNewServer_Routes(t *testing.T) {
	t.Parallel()

	server := NewServer(stubService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics disabled by default")
}

func TestNewServer_WithMetricsHandler(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	})
	server := NewServer(stubService{}, WithMetricsHandler(metrics))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestNewServer_WithMiddlewares(t *testing.T) {
	t.Parallel()

	var called bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}
	server := NewServer(stubService{}, WithMiddlewares(mw))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}
