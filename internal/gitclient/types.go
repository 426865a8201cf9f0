package gitclient

import (
	"time"
)

// RepoSpec identifies a repository to operate on. Both fields come from the
// URL resolver: CacheKey names the cache directory, TransportURL is the
// remote (possibly with credentials embedded as userinfo).
type RepoSpec struct {
	CacheKey     string
	TransportURL string
}

// Commit is a single commit reachable from a requested ref.
type Commit struct {
	// Hash is the full commit SHA.
	Hash string

	// Author is the author name.
	Author string

	// Email is the author email.
	Email string

	// When is the author timestamp.
	When time.Time

	// Message is the full commit message.
	Message string
}
