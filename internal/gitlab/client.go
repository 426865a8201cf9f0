// Package gitlab wraps the GitLab REST API behind narrow interfaces so the
// service layer can query repositories without cloning them.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	glab "gitlab.com/gitlab-org/api/client-go"
)

var (
	// ErrNotFound is returned when the project, ref, or file does not
	// exist or the token cannot see it.
	ErrNotFound = errors.New("not found on GitLab")

	// ErrUnauthorized is returned when the API rejects the token.
	ErrUnauthorized = errors.New("GitLab authentication failed")
)

// BranchesService is the subset of the GitLab branches API we consume.
type BranchesService interface {
	ListBranches(pid any, opt *glab.ListBranchesOptions, options ...glab.RequestOptionFunc) ([]*glab.Branch, *glab.Response, error)
}

// CommitsService is the subset of the GitLab commits API we consume.
type CommitsService interface {
	ListCommits(pid any, opt *glab.ListCommitsOptions, options ...glab.RequestOptionFunc) ([]*glab.Commit, *glab.Response, error)
}

// RepositoriesService is the subset of the GitLab repositories API we consume.
type RepositoriesService interface {
	Compare(pid any, opt *glab.CompareOptions, options ...glab.RequestOptionFunc) (*glab.Compare, *glab.Response, error)
}

// RepositoryFilesService is the subset of the GitLab repository files API we
// consume.
type RepositoryFilesService interface {
	GetRawFile(pid any, fileName string, opt *glab.GetRawFileOptions, options ...glab.RequestOptionFunc) ([]byte, *glab.Response, error)
}

// Client queries a single GitLab instance over REST.
type Client struct {
	branches     BranchesService
	commits      CommitsService
	repositories RepositoriesService
	files        RepositoryFilesService
}

// NewClient creates a REST client for the GitLab instance at baseURL
// (scheme and host only; the API version path is appended automatically).
func NewClient(baseURL, token string) (*Client, error) {
	c, err := glab.NewClient(token, glab.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return &Client{
		branches:     c.Branches,
		commits:      c.Commits,
		repositories: c.Repositories,
		files:        c.RepositoryFiles,
	}, nil
}

// ListBranches returns all branches of the project. project is the
// namespaced path, e.g. "group/subgroup/name".
func (c *Client) ListBranches(ctx context.Context, project string) ([]*glab.Branch, error) {
	branches, resp, err := c.branches.ListBranches(project, &glab.ListBranchesOptions{}, glab.WithContext(ctx))
	if err != nil {
		return nil, mapError("list branches", resp, err)
	}
	return branches, nil
}

// Compare returns the comparison of two refs, including the per-file diffs.
func (c *Client) Compare(ctx context.Context, project, from, to string) (*glab.Compare, error) {
	compare, resp, err := c.repositories.Compare(project, &glab.CompareOptions{
		From: glab.Ptr(from),
		To:   glab.Ptr(to),
	}, glab.WithContext(ctx))
	if err != nil {
		return nil, mapError("compare refs", resp, err)
	}
	return compare, nil
}

// RawFile returns the raw content of a file at a ref.
func (c *Client) RawFile(ctx context.Context, project, path, ref string) ([]byte, error) {
	content, resp, err := c.files.GetRawFile(project, path, &glab.GetRawFileOptions{
		Ref: glab.Ptr(ref),
	}, glab.WithContext(ctx))
	if err != nil {
		return nil, mapError("get raw file", resp, err)
	}
	return content, nil
}

// ListCommits returns up to limit commits reachable from ref, newest first.
func (c *Client) ListCommits(ctx context.Context, project, ref string, limit int) ([]*glab.Commit, error) {
	if limit <= 0 {
		limit = 20
	}
	commits, resp, err := c.commits.ListCommits(project, &glab.ListCommitsOptions{
		RefName:     glab.Ptr(ref),
		ListOptions: glab.ListOptions{PerPage: limit},
	}, glab.WithContext(ctx))
	if err != nil {
		return nil, mapError("list commits", resp, err)
	}
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

func mapError(op string, resp *glab.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
