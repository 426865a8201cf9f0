package service

import (
	"fmt"
	"os"

	"github.com/repolens/repolens-server/internal/config"
	"github.com/repolens/repolens-server/internal/gitclient"
	"github.com/repolens/repolens-server/internal/repourl"
)

// NewRepositoryService builds the repository service selected by
// cfg.Provider, wired with the configured default credential.
func NewRepositoryService(cfg *config.Config) (RepositoryService, error) {
	token := os.Getenv(config.TokenEnvVar)
	if cfg.Auth != nil {
		var err error
		token, err = cfg.Auth.GetToken()
		if err != nil {
			return nil, fmt.Errorf("failed to load default credential: %w", err)
		}
	}

	var resolverOpts []repourl.ResolverOption
	if token != "" {
		resolverOpts = append(resolverOpts, repourl.WithDefaultCredential(repourl.Credential{
			Username: cfg.Auth.GetUsername(),
			Token:    token,
		}))
	}
	resolver := repourl.NewResolver(resolverOpts...)

	switch cfg.Provider {
	case config.ProviderGit:
		client, err := gitclient.NewCachingClient(gitclient.Options{
			BaseDir:      cfg.Cache.Dir,
			CloneTimeout: cfg.Cache.GetCloneTimeout(),
			FetchTimeout: cfg.Cache.GetFetchTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create git client: %w", err)
		}
		return NewGitService(resolver, client), nil
	case config.ProviderAPI:
		return NewAPIService(resolver, token), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}
