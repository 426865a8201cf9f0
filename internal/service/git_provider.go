package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/repolens/repolens-server/internal/gitclient"
	"github.com/repolens/repolens-server/internal/repourl"
)

// gitProvider answers repository queries from local bare clones maintained
// by the gitclient cache.
type gitProvider struct {
	resolver *repourl.Resolver
	git      gitclient.Client
}

// NewGitService creates a RepositoryService backed by the git transport.
func NewGitService(resolver *repourl.Resolver, client gitclient.Client) RepositoryService {
	return &gitProvider{resolver: resolver, git: client}
}

func (*gitProvider) CheckReadiness(_ context.Context) error {
	return nil
}

func (p *gitProvider) ListBranches(ctx context.Context, req RepoRequest) ([]string, error) {
	spec, err := p.repoSpec(req)
	if err != nil {
		return nil, err
	}

	branches, err := p.git.ListBranches(ctx, spec)
	if err != nil {
		return nil, mapGitError(err)
	}
	return shapeBranches(branches), nil
}

func (p *gitProvider) CompareBranches(ctx context.Context, req DiffRequest) (string, error) {
	spec, err := p.repoSpec(req.RepoRequest)
	if err != nil {
		return "", err
	}

	diff, err := p.git.Diff(ctx, spec, req.Base, req.Head)
	if err != nil {
		return "", mapGitError(err)
	}
	return diff, nil
}

func (p *gitProvider) GetFileContent(ctx context.Context, req FileRequest) ([]byte, error) {
	spec, err := p.repoSpec(req.RepoRequest)
	if err != nil {
		return nil, err
	}

	content, err := p.git.FileContent(ctx, spec, req.Ref, req.Path)
	if err != nil {
		return nil, mapGitError(err)
	}
	return content, nil
}

func (p *gitProvider) ListCommits(ctx context.Context, req CommitsRequest) ([]Commit, error) {
	spec, err := p.repoSpec(req.RepoRequest)
	if err != nil {
		return nil, err
	}

	raw, err := p.git.ListCommits(ctx, spec, req.Ref, req.Limit)
	if err != nil {
		return nil, mapGitError(err)
	}

	commits := make([]Commit, 0, len(raw))
	for _, c := range raw {
		commits = append(commits, Commit{
			Hash:    c.Hash,
			Author:  c.Author,
			Email:   c.Email,
			Date:    c.When,
			Message: c.Message,
		})
	}
	return commits, nil
}

func (p *gitProvider) Resolve(_ context.Context, req RepoRequest) (*repourl.ResolvedTarget, error) {
	return p.resolver.Resolve(req.URL, credential(req))
}

func (p *gitProvider) repoSpec(req RepoRequest) (gitclient.RepoSpec, error) {
	target, err := p.resolver.Resolve(req.URL, credential(req))
	if err != nil {
		return gitclient.RepoSpec{}, err
	}
	return gitclient.RepoSpec{
		CacheKey:     target.CacheKey,
		TransportURL: target.TransportURL,
	}, nil
}

// mapGitError translates transport-level failures into the service error
// taxonomy. Unrecognized errors are treated as upstream failures.
func mapGitError(err error) error {
	switch {
	case errors.Is(err, gitclient.ErrUnknownRevision):
		return fmt.Errorf("%w: %v", ErrRefNotFound, err)
	case errors.Is(err, gitclient.ErrFileNotFound):
		return fmt.Errorf("%w: %v", ErrFileNotFound, err)
	case errors.Is(err, gitclient.ErrRepoNotFound):
		return fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	case errors.Is(err, gitclient.ErrAuthRequired):
		return fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	default:
		return err
	}
}
