// Package service provides the business logic for the repository
// inspection API
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/repolens/repolens-server/internal/repourl"
)

var (
	// ErrRepositoryNotFound is returned when the remote repository does
	// not exist or is not visible with the supplied credentials.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrRefNotFound is returned when a requested branch, tag, or commit
	// does not exist.
	ErrRefNotFound = errors.New("ref not found")
	// ErrFileNotFound is returned when a requested file does not exist at
	// the requested ref.
	ErrFileNotFound = errors.New("file not found")
	// ErrUpstreamAuth is returned when the upstream rejects the
	// credentials.
	ErrUpstreamAuth = errors.New("upstream authentication failed")
	// ErrUpstreamUnavailable is returned when the upstream cannot be
	// reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// RepoRequest identifies a repository plus optional per-request
// credentials. Credentials given here take precedence over any configured
// default token.
type RepoRequest struct {
	URL      string
	Username string
	Token    string
}

// DiffRequest asks for the changes between two refs.
type DiffRequest struct {
	RepoRequest
	Base string
	Head string
}

// FileRequest asks for the content of one file at a ref.
type FileRequest struct {
	RepoRequest
	Ref  string
	Path string
}

// CommitsRequest asks for the recent history of a ref.
type CommitsRequest struct {
	RepoRequest
	Ref   string
	Limit int
}

// Commit is one entry of a repository's history.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// RepositoryService defines the interface for repository inspection
// operations.
type RepositoryService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// ListBranches returns the branch names of the repository, default
	// branch first and the rest sorted.
	ListBranches(ctx context.Context, req RepoRequest) ([]string, error)

	// CompareBranches returns the unified diff between two refs.
	CompareBranches(ctx context.Context, req DiffRequest) (string, error)

	// GetFileContent returns the content of a file at a ref.
	GetFileContent(ctx context.Context, req FileRequest) ([]byte, error)

	// ListCommits returns the recent commits of a ref, newest first.
	ListCommits(ctx context.Context, req CommitsRequest) ([]Commit, error)

	// Resolve normalizes the repository URL and reports the derived cache
	// key and access URLs without contacting the upstream.
	Resolve(ctx context.Context, req RepoRequest) (*repourl.ResolvedTarget, error)
}

// credential builds the per-request credential override, if any.
func credential(req RepoRequest) *repourl.Credential {
	if req.Token == "" {
		return nil
	}
	return &repourl.Credential{Username: req.Username, Token: req.Token}
}

// shapeBranches collates raw branch names for display: pseudo-entries such
// as a remote HEAD pointer are dropped, duplicates removed, and the result
// sorted with the default branch (main, else master) first.
func shapeBranches(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	shaped := make([]string, 0, len(raw))
	for _, name := range raw {
		if name == "" || name == "HEAD" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		shaped = append(shaped, name)
	}
	sort.Strings(shaped)

	for _, preferred := range []string{"main", "master"} {
		for i, name := range shaped {
			if name != preferred {
				continue
			}
			copy(shaped[1:i+1], shaped[:i])
			shaped[0] = preferred
			return shaped
		}
	}
	return shaped
}
