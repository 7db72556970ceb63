package committer

import (
	"fmt"
	"net/http"
	"os"

	"github.com/byte4ever/remote_commit/config"
	"github.com/byte4ever/remote_commit/gitdata"
	"github.com/byte4ever/remote_commit/gitdata/github"
	"github.com/byte4ever/remote_commit/gitdata/rest"
)

// NewProvider creates the gitdata.Provider named by
// cfg.Provider. Pattern: Factory -- selects the client
// implementation at runtime.
func NewProvider(
	cfg *config.Config,
	client *http.Client,
) (gitdata.Provider, error) {
	const errCtx = "creating provider"

	switch cfg.Provider {
	case config.ProviderGitHub:
		p, err := github.NewProvider(github.Config{
			Account:        cfg.Account,
			Repository:     cfg.Repository,
			AccessToken:    cfg.Token,
			EnterpriseHost: cfg.EnterpriseHost,
			BaseURL:        cfg.APIURL,
			UserAgent:      cfg.UserAgent,
			HTTPClient:     client,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return p, nil

	case config.ProviderREST:
		p, err := rest.NewProvider(rest.Config{
			BaseURL:    cfg.APIURL,
			Account:    cfg.Account,
			Repository: cfg.Repository,
			Token:      cfg.Token,
			UserAgent:  cfg.UserAgent,
			HTTPClient: client,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: %w: unknown provider %q",
			errCtx, config.ErrConfig, cfg.Provider,
		)
	}
}

// FromConfig builds a pipeline Config from a loaded
// configuration. The local file, if any, is read here.
func FromConfig(
	cfg *config.Config,
	pv gitdata.Provider,
) (Config, error) {
	const errCtx = "building pipeline config"

	var base string

	if cfg.LocalFile != "" {
		data, err := os.ReadFile(cfg.LocalFile) //nolint:gosec // path from config
		if err != nil {
			return Config{}, fmt.Errorf(
				"%s: %w: local file: %w",
				errCtx, config.ErrConfig, err,
			)
		}

		base = string(data)
	}

	return Config{
		Provider:        pv,
		Account:         cfg.Account,
		Repository:      cfg.Repository,
		Branch:          cfg.Branch,
		FilePath:        cfg.FilePath,
		MessageTemplate: cfg.CommitMessage,
		ContentTemplate: cfg.ContentTemplate,
		BaseContent:     base,
		Timeout:         cfg.Timeout,
		ConfirmBranch:   cfg.ConfirmBranch,
		GuardRef:        cfg.GuardRef,
		VerifyBlob:      cfg.VerifyBlob,
	}, nil
}

// APIRoot returns the base URL the provider talks to,
// used by the connectivity check.
func APIRoot(cfg *config.Config) string {
	switch {
	case cfg.APIURL != "":
		return cfg.APIURL
	case cfg.Provider == config.ProviderGitHub &&
		cfg.EnterpriseHost != "":
		return "https://" + cfg.EnterpriseHost + "/api/v3/"
	default:
		return rest.DefaultBaseURL
	}
}
