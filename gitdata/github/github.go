package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/remote_commit/gitdata"
)

// Config holds the settings needed to create a GitHub
// Git data provider.
type Config struct {
	// Account is the GitHub user or organisation that
	// owns the repository.
	Account string
	// Repository is the repository name (without
	// account).
	Repository string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// BaseURL overrides the API root entirely. Takes
	// precedence over EnterpriseHost.
	BaseURL string
	// UserAgent replaces go-github's default agent.
	UserAgent string
	// HTTPClient is the underlying transport client.
	HTTPClient *http.Client
}

// Provider drives the Git data API of one GitHub
// repository.
//
// Pattern: Strategy -- implements gitdata.Provider.
type Provider struct {
	client  *gh.Client
	account string
	repo    string
}

var _ gitdata.Provider = (*Provider)(nil)

// branchUpdate is the body of the branch PATCH, which
// go-github has no method for.
type branchUpdate struct {
	SHA string `json:"sha"`
}

// NewProvider validates cfg and returns a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.Account == "" {
		return nil, fmt.Errorf(
			"%s: account must be set", errCtx,
		)
	}

	if cfg.Repository == "" {
		return nil, fmt.Errorf(
			"%s: repository must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(cfg.HTTPClient).
		WithAuthToken(cfg.AccessToken)

	switch {
	case cfg.BaseURL != "":
		raw := cfg.BaseURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}

		base, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: base url: %w", errCtx, err,
			)
		}

		client.BaseURL = base

	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}

	return &Provider{
		client:  client,
		account: cfg.Account,
		repo:    cfg.Repository,
	}, nil
}

// BranchHead returns the commit at the tip of branch.
func (p *Provider) BranchHead(
	ctx context.Context,
	branch string,
) (gitdata.SHA, error) {
	const errCtx = "resolving branch head"

	br, resp, err := p.client.Repositories.GetBranch(
		ctx, p.account, p.repo, branch, 0,
	)
	if err != nil {
		logResponse(resp)

		return "", gitdata.LookupError(errCtx, err)
	}

	sha := br.GetCommit().GetSHA()
	if sha == "" {
		return "", gitdata.LookupError(
			errCtx, gitdata.ErrMissingSHA,
		)
	}

	return gitdata.SHA(sha), nil
}

// RefHead returns the commit refs/heads/<branch>
// points at.
func (p *Provider) RefHead(
	ctx context.Context,
	branch string,
) (gitdata.SHA, error) {
	const errCtx = "resolving reference"

	ref, resp, err := p.client.Git.GetRef(
		ctx, p.account, p.repo, "heads/"+branch,
	)
	if err != nil {
		logResponse(resp)

		return "", gitdata.LookupError(errCtx, err)
	}

	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", gitdata.LookupError(
			errCtx, gitdata.ErrMissingSHA,
		)
	}

	return gitdata.SHA(sha), nil
}

// CreateBlob stores content as a UTF-8 blob.
func (p *Provider) CreateBlob(
	ctx context.Context,
	content string,
) (gitdata.SHA, error) {
	const errCtx = "creating blob"

	blob, resp, err := p.client.Git.CreateBlob(
		ctx, p.account, p.repo, &gh.Blob{
			Content:  gh.Ptr(content),
			Encoding: gh.Ptr("utf-8"),
		},
	)
	if err != nil {
		logResponse(resp)

		return "", gitdata.WriteError(errCtx, err)
	}

	return requireSHA(errCtx, blob.GetSHA())
}

// CreateTree overlays entries onto base.
func (p *Provider) CreateTree(
	ctx context.Context,
	base gitdata.SHA,
	entries []gitdata.TreeEntry,
) (gitdata.SHA, error) {
	const errCtx = "creating tree"

	ghEntries := make([]*gh.TreeEntry, 0, len(entries))

	for _, en := range entries {
		ghEntries = append(ghEntries, &gh.TreeEntry{
			Path: gh.Ptr(en.Path),
			Mode: gh.Ptr(en.Mode),
			Type: gh.Ptr(en.Type),
			SHA:  gh.Ptr(en.SHA.String()),
		})
	}

	tree, resp, err := p.client.Git.CreateTree(
		ctx, p.account, p.repo, base.String(), ghEntries,
	)
	if err != nil {
		logResponse(resp)

		return "", gitdata.WriteError(errCtx, err)
	}

	return requireSHA(errCtx, tree.GetSHA())
}

// CreateCommit creates a commit object.
func (p *Provider) CreateCommit(
	ctx context.Context,
	commit gitdata.Commit,
) (gitdata.SHA, error) {
	const errCtx = "creating commit"

	parents := make([]*gh.Commit, 0, len(commit.Parents))
	for _, parent := range commit.Parents {
		parents = append(parents, &gh.Commit{
			SHA: gh.Ptr(parent.String()),
		})
	}

	created, resp, err := p.client.Git.CreateCommit(
		ctx, p.account, p.repo, &gh.Commit{
			Message: gh.Ptr(commit.Message),
			Tree:    &gh.Tree{SHA: gh.Ptr(commit.Tree.String())},
			Parents: parents,
		},
		nil,
	)
	if err != nil {
		logResponse(resp)

		return "", gitdata.WriteError(errCtx, err)
	}

	return requireSHA(errCtx, created.GetSHA())
}

// UpdateRef points refs/heads/<branch> at sha without
// forcing.
func (p *Provider) UpdateRef(
	ctx context.Context,
	branch string,
	sha gitdata.SHA,
) error {
	const errCtx = "updating reference"

	_, resp, err := p.client.Git.UpdateRef(
		ctx, p.account, p.repo, &gh.Reference{
			Ref:    gh.Ptr("refs/heads/" + branch),
			Object: &gh.GitObject{SHA: gh.Ptr(sha.String())},
		},
		false,
	)
	if err != nil {
		logResponse(resp)

		return gitdata.WriteError(errCtx, err)
	}

	return nil
}

// ConfirmBranch patches the branch endpoint with sha
// and returns the SHA found in the response.
func (p *Provider) ConfirmBranch(
	ctx context.Context,
	branch string,
	sha gitdata.SHA,
) (gitdata.SHA, error) {
	const errCtx = "confirming branch"

	u := fmt.Sprintf(
		"repos/%v/%v/branches/%v",
		p.account, p.repo, url.PathEscape(branch),
	)

	req, err := p.client.NewRequest(
		http.MethodPatch, u, &branchUpdate{SHA: sha.String()},
	)
	if err != nil {
		return "", gitdata.WriteError(errCtx, err)
	}

	var out branchUpdate

	resp, err := p.client.Do(ctx, req, &out)
	if err != nil {
		logResponse(resp)

		return "", gitdata.WriteError(errCtx, err)
	}

	return gitdata.SHA(out.SHA), nil
}

func requireSHA(
	errCtx string,
	sha string,
) (gitdata.SHA, error) {
	if sha == "" {
		return "", gitdata.WriteError(
			errCtx, gitdata.ErrMissingSHA,
		)
	}

	return gitdata.SHA(sha), nil
}

// logResponse logs the body of a failed response for
// debugging.
func logResponse(resp *gh.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		slog.Warn(
			"cannot read response body",
			"error", readErr,
		)

		return
	}

	slog.Warn(
		"github response",
		"status", resp.StatusCode,
		"body", string(rb),
	)
}
