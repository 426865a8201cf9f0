package repourl

import (
	"fmt"
)

// ResolvedTarget is everything the server's collaborators need to act on a
// repository: the cache key for the clone cache, the transport URL for git,
// and the API base plus encoded project path for the REST client.
type ResolvedTarget struct {
	Ref                NormalizedRepoRef
	CacheKey           string
	TransportURL       string
	APIBaseURL         string
	EncodedProjectPath string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDefaultCredential sets a credential used when Resolve is called
// without one. Per-request credentials always take precedence.
func WithDefaultCredential(cred Credential) ResolverOption {
	return func(r *Resolver) {
		r.defaultCred = &cred
	}
}

// Resolver turns raw repository URLs into ResolvedTargets. All
// configuration is supplied at construction; Resolve itself performs no
// I/O, so failures are deterministic functions of the input and are never
// worth retrying.
type Resolver struct {
	defaultCred *Credential
}

// NewResolver creates a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve normalizes rawURL, derives the cache key, and produces the
// transport URL (with credentials embedded when any are in effect). The
// cache key and API coordinates never depend on credentials.
func (r *Resolver) Resolve(rawURL string, cred *Credential) (*ResolvedTarget, error) {
	ref, err := Normalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	key := DeriveCacheKey(ref)

	effective := cred
	if effective == nil || effective.Token == "" {
		effective = r.defaultCred
	}

	transportURL := ref.TransportURL()
	if effective != nil && effective.Token != "" {
		transportURL, err = InjectCredentials(ref, *effective)
		if err != nil {
			return nil, fmt.Errorf("inject credentials: %w", err)
		}
	}

	return &ResolvedTarget{
		Ref:                ref,
		CacheKey:           key,
		TransportURL:       transportURL,
		APIBaseURL:         ref.APIBaseURL(),
		EncodedProjectPath: ref.EncodedProjectPath(),
	}, nil
}
