package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	glab "gitlab.com/gitlab-org/api/client-go"

	"github.com/repolens/repolens-server/internal/gitlab"
	"github.com/repolens/repolens-server/internal/repourl"
)

// apiClient is the surface of the GitLab REST wrapper used by the API
// provider, kept as an interface so tests can substitute a fake.
type apiClient interface {
	ListBranches(ctx context.Context, project string) ([]*glab.Branch, error)
	Compare(ctx context.Context, project, from, to string) (*glab.Compare, error)
	RawFile(ctx context.Context, project, path, ref string) ([]byte, error)
	ListCommits(ctx context.Context, project, ref string, limit int) ([]*glab.Commit, error)
}

// apiProvider answers repository queries over the GitLab REST API without
// cloning anything.
type apiProvider struct {
	resolver     *repourl.Resolver
	defaultToken string
	newClient    func(baseURL, token string) (apiClient, error)
}

// NewAPIService creates a RepositoryService backed by the GitLab REST API.
// defaultToken is used when a request carries no credentials of its own.
func NewAPIService(resolver *repourl.Resolver, defaultToken string) RepositoryService {
	return &apiProvider{
		resolver:     resolver,
		defaultToken: defaultToken,
		newClient: func(baseURL, token string) (apiClient, error) {
			return gitlab.NewClient(baseURL, token)
		},
	}
}

func (*apiProvider) CheckReadiness(_ context.Context) error {
	return nil
}

func (p *apiProvider) ListBranches(ctx context.Context, req RepoRequest) ([]string, error) {
	client, project, err := p.clientFor(req)
	if err != nil {
		return nil, err
	}

	branches, err := client.ListBranches(ctx, project)
	if err != nil {
		return nil, mapAPIError(err, ErrRepositoryNotFound)
	}

	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	return shapeBranches(names), nil
}

func (p *apiProvider) CompareBranches(ctx context.Context, req DiffRequest) (string, error) {
	client, project, err := p.clientFor(req.RepoRequest)
	if err != nil {
		return "", err
	}

	compare, err := client.Compare(ctx, project, req.Base, req.Head)
	if err != nil {
		return "", mapAPIError(err, ErrRefNotFound)
	}
	return renderCompare(compare), nil
}

func (p *apiProvider) GetFileContent(ctx context.Context, req FileRequest) ([]byte, error) {
	client, project, err := p.clientFor(req.RepoRequest)
	if err != nil {
		return nil, err
	}

	content, err := client.RawFile(ctx, project, req.Path, req.Ref)
	if err != nil {
		return nil, mapAPIError(err, ErrFileNotFound)
	}
	return content, nil
}

func (p *apiProvider) ListCommits(ctx context.Context, req CommitsRequest) ([]Commit, error) {
	client, project, err := p.clientFor(req.RepoRequest)
	if err != nil {
		return nil, err
	}

	raw, err := client.ListCommits(ctx, project, req.Ref, req.Limit)
	if err != nil {
		return nil, mapAPIError(err, ErrRefNotFound)
	}

	commits := make([]Commit, 0, len(raw))
	for _, c := range raw {
		commit := Commit{
			Hash:    c.ID,
			Author:  c.AuthorName,
			Email:   c.AuthorEmail,
			Message: c.Message,
		}
		if c.AuthoredDate != nil {
			commit.Date = *c.AuthoredDate
		} else if c.CreatedAt != nil {
			commit.Date = *c.CreatedAt
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

func (p *apiProvider) Resolve(_ context.Context, req RepoRequest) (*repourl.ResolvedTarget, error) {
	return p.resolver.Resolve(req.URL, credential(req))
}

// clientFor resolves the repository reference and builds a REST client for
// its host. The REST provider needs an HTTPS API endpoint, so SSH-style
// references are rejected here.
func (p *apiProvider) clientFor(req RepoRequest) (apiClient, string, error) {
	target, err := p.resolver.Resolve(req.URL, credential(req))
	if err != nil {
		return nil, "", err
	}
	if target.Ref.Scheme != repourl.SchemeHTTPS {
		return nil, "", fmt.Errorf("%w: the API provider requires an HTTPS repository URL", repourl.ErrUnsupportedScheme)
	}

	token := req.Token
	if token == "" {
		token = p.defaultToken
	}

	client, err := p.newClient(target.APIBaseURL, token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build API client for %s: %w", target.APIBaseURL, err)
	}
	return client, target.Ref.ProjectPathString(), nil
}

// renderCompare assembles the per-file diffs of a comparison into one
// unified diff document.
func renderCompare(compare *glab.Compare) string {
	var b strings.Builder
	for _, d := range compare.Diffs {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", d.OldPath, d.NewPath)
		switch {
		case d.NewFile:
			fmt.Fprintf(&b, "--- /dev/null\n+++ b/%s\n", d.NewPath)
		case d.DeletedFile:
			fmt.Fprintf(&b, "--- a/%s\n+++ /dev/null\n", d.OldPath)
		default:
			fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", d.OldPath, d.NewPath)
		}
		b.WriteString(d.Diff)
		if d.Diff != "" && !strings.HasSuffix(d.Diff, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// mapAPIError translates REST failures into the service error taxonomy.
// notFound names the sentinel a 404 means for the operation at hand.
func mapAPIError(err error, notFound error) error {
	switch {
	case errors.Is(err, gitlab.ErrNotFound):
		return fmt.Errorf("%w: %v", notFound, err)
	case errors.Is(err, gitlab.ErrUnauthorized):
		return fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	default:
		return err
	}
}
