// Package gitclient maintains an on-disk cache of bare clones and answers
// branch, diff, file, and commit queries from it using go-git.
//
// The cache holds one bare repository per cache key. Concurrent requests
// for the same repository are collapsed in-process with singleflight and
// serialized across processes with a file lock, so at most one clone or
// fetch per key runs at a time.
package gitclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/repolens/repolens-server/internal/repourl"
)

var (
	// ErrUnknownRevision is returned when a requested branch, tag, or
	// commit does not exist in the repository.
	ErrUnknownRevision = errors.New("unknown revision")

	// ErrFileNotFound is returned when a requested path does not exist at
	// the requested ref.
	ErrFileNotFound = errors.New("file not found in repository")

	// ErrAuthRequired is returned when the remote rejects the clone or
	// fetch for lack of (valid) credentials.
	ErrAuthRequired = errors.New("authentication required or failed")

	// ErrRepoNotFound is returned when the remote repository does not
	// exist or is not reachable under the given URL.
	ErrRepoNotFound = errors.New("repository not found")
)

// branchRefSpec mirrors remote branches straight into refs/heads of the
// bare cache repository.
const branchRefSpec = gitcfg.RefSpec("+refs/heads/*:refs/heads/*")

const lockRetryDelay = 250 * time.Millisecond

// Client defines the git transport operations the service layer needs.
type Client interface {
	// ListBranches returns the branch names of the repository, unsorted.
	ListBranches(ctx context.Context, spec RepoSpec) ([]string, error)

	// Diff returns the unified diff text between two revisions.
	Diff(ctx context.Context, spec RepoSpec, base, head string) (string, error)

	// FileContent returns the content of a file at a revision.
	FileContent(ctx context.Context, spec RepoSpec, rev, path string) ([]byte, error)

	// ListCommits returns up to limit commits reachable from a revision,
	// newest first.
	ListCommits(ctx context.Context, spec RepoSpec, rev string, limit int) ([]Commit, error)
}

// Options configures the caching client.
type Options struct {
	// BaseDir is the directory holding the bare clone cache.
	BaseDir string

	// CloneTimeout bounds an initial clone.
	CloneTimeout time.Duration

	// FetchTimeout bounds a refresh fetch of a cached repository.
	FetchTimeout time.Duration
}

type cachingClient struct {
	baseDir      string
	cloneTimeout time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
}

// NewCachingClient creates a Client backed by an on-disk bare clone cache.
func NewCachingClient(opts Options) (Client, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("cache base directory is required")
	}
	if err := os.MkdirAll(opts.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &cachingClient{
		baseDir:      opts.BaseDir,
		cloneTimeout: opts.CloneTimeout,
		fetchTimeout: opts.FetchTimeout,
	}
	if c.cloneTimeout <= 0 {
		c.cloneTimeout = 10 * time.Minute
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = 2 * time.Minute
	}
	return c, nil
}

// ListBranches returns the branch names of the repository, unsorted.
func (c *cachingClient) ListBranches(ctx context.Context, spec RepoSpec) ([]string, error) {
	repo, err := c.ensure(ctx, spec)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}
	return names, nil
}

// Diff returns the unified diff text between two revisions.
func (c *cachingClient) Diff(ctx context.Context, spec RepoSpec, base, head string) (string, error) {
	repo, err := c.ensure(ctx, spec)
	if err != nil {
		return "", err
	}

	baseCommit, err := resolveCommit(repo, base)
	if err != nil {
		return "", err
	}
	headCommit, err := resolveCommit(repo, head)
	if err != nil {
		return "", err
	}

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to get tree for %s: %w", base, err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to get tree for %s: %w", head, err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, baseTree, headTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return "", fmt.Errorf("failed to diff trees: %w", err)
	}

	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to build patch: %w", err)
	}
	return patch.String(), nil
}

// FileContent returns the content of a file at a revision.
func (c *cachingClient) FileContent(ctx context.Context, spec RepoSpec, rev, path string) ([]byte, error) {
	repo, err := c.ensure(ctx, spec)
	if err != nil {
		return nil, err
	}

	commit, err := resolveCommit(repo, rev)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s: %w", rev, err)
	}

	file, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %q at %q", ErrFileNotFound, path, rev)
		}
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	return []byte(content), nil
}

// ListCommits returns up to limit commits reachable from a revision,
// newest first.
func (c *cachingClient) ListCommits(ctx context.Context, spec RepoSpec, rev string, limit int) ([]Commit, error) {
	repo, err := c.ensure(ctx, spec)
	if err != nil {
		return nil, err
	}

	commit, err := resolveCommit(repo, rev)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: commit.Hash})
	if err != nil {
		return nil, fmt.Errorf("failed to read log from %s: %w", rev, err)
	}
	defer iter.Close()

	if limit <= 0 {
		limit = 20
	}

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
			Message: c.Message,
		})
		if len(commits) >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return commits, nil
}

// ensure returns the cached repository for spec, cloning or refreshing it
// first. Callers for the same cache key share a single clone or fetch.
func (c *cachingClient) ensure(ctx context.Context, spec RepoSpec) (*git.Repository, error) {
	v, err, _ := c.group.Do(spec.CacheKey, func() (any, error) {
		return c.cloneOrFetch(ctx, spec)
	})
	if err != nil {
		return nil, err
	}
	return v.(*git.Repository), nil
}

func (c *cachingClient) cloneOrFetch(ctx context.Context, spec RepoSpec) (*git.Repository, error) {
	path := filepath.Join(c.baseDir, spec.CacheKey)

	// Serialize clone/fetch per key across processes sharing the cache.
	fileLock := flock.New(path + ".lock")
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cache entry %s: %w", spec.CacheKey, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock cache entry %s", spec.CacheKey)
	}
	defer func() {
		if unlockErr := fileLock.Unlock(); unlockErr != nil {
			slog.Warn("Failed to release cache lock", "cache_key", spec.CacheKey, "error", unlockErr)
		}
	}()

	remoteURL, auth := splitAuth(spec.TransportURL)

	if _, statErr := os.Stat(path); statErr == nil {
		return c.refresh(ctx, spec, path, auth)
	}
	return c.clone(ctx, spec, path, remoteURL, auth)
}

// clone initializes a bare repository and fetches all branches into it. The
// remote URL stored in the repository config never carries credentials;
// auth travels separately per fetch.
func (c *cachingClient) clone(
	ctx context.Context, spec RepoSpec, path, remoteURL string, auth *githttp.BasicAuth,
) (*git.Repository, error) {
	start := time.Now()
	slog.Info("Cloning repository into cache",
		"repository", repourl.RedactURL(spec.TransportURL),
		"cache_key", spec.CacheKey)

	repo, err := git.PlainInit(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache repository: %w", err)
	}

	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{
		Name:  git.DefaultRemoteName,
		URLs:  []string{remoteURL},
		Fetch: []gitcfg.RefSpec{branchRefSpec},
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("failed to configure remote: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cloneTimeout)
	defer cancel()

	if err := c.fetch(fetchCtx, repo, auth); err != nil {
		// A half-populated cache entry would shadow the failure on the
		// next request.
		_ = os.RemoveAll(path)
		return nil, err
	}

	slog.Info("Clone completed",
		"cache_key", spec.CacheKey,
		"duration", time.Since(start).String())
	return repo, nil
}

func (c *cachingClient) refresh(
	ctx context.Context, spec RepoSpec, path string, auth *githttp.BasicAuth,
) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached repository %s: %w", spec.CacheKey, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	slog.Debug("Refreshing cached repository", "cache_key", spec.CacheKey)
	if err := c.fetch(fetchCtx, repo, auth); err != nil {
		return nil, err
	}
	return repo, nil
}

func (c *cachingClient) fetch(ctx context.Context, repo *git.Repository, auth *githttp.BasicAuth) error {
	opts := &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []gitcfg.RefSpec{branchRefSpec},
		Prune:      true,
		Force:      true,
		Tags:       git.NoTags,
	}
	if auth != nil {
		opts.Auth = auth
	}

	err := repo.FetchContext(ctx, opts)
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return fmt.Errorf("%w: %v", ErrRepoNotFound, err)
	default:
		return fmt.Errorf("failed to fetch repository: %w", err)
	}
}

// splitAuth separates embedded userinfo from a transport URL so credentials
// never end up in the on-disk remote config.
func splitAuth(transportURL string) (string, *githttp.BasicAuth) {
	u, err := url.Parse(transportURL)
	if err != nil || u.User == nil {
		return transportURL, nil
	}

	password, _ := u.User.Password()
	auth := &githttp.BasicAuth{
		Username: u.User.Username(),
		Password: password,
	}

	clean := *u
	clean.User = nil
	return clean.String(), auth
}

// resolveCommit resolves a revision (branch name, tag, or SHA) to its
// commit object.
func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	return commit, nil
}
