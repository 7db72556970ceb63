package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/remote_commit/gitdata"
)

// DefaultBaseURL is the public GitHub API root.
const DefaultBaseURL = "https://api.github.com/"

// Config holds the settings needed to create a REST
// provider.
type Config struct {
	// BaseURL is the API root. Defaults to
	// DefaultBaseURL.
	BaseURL string
	// Account is the user or organisation owning the
	// repository.
	Account string
	// Repository is the repository name (without
	// account).
	Repository string
	// Token is sent as "Authorization: token <Token>".
	Token string
	// UserAgent is sent on every request.
	UserAgent string
	// HTTPClient is used for every call. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Provider drives the Git data API of one repository.
//
// Pattern: Strategy -- implements gitdata.Provider.
type Provider struct {
	client    *http.Client
	base      *url.URL
	account   string
	repo      string
	token     string
	userAgent string
}

var _ gitdata.Provider = (*Provider)(nil)

type commitRef struct {
	SHA string `json:"sha"`
}

type branchResponse struct {
	Commit *commitRef `json:"commit"`
}

type refResponse struct {
	Object *commitRef `json:"object"`
}

type shaResponse struct {
	SHA string `json:"sha"`
}

type blobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type treeRequest struct {
	BaseTree string      `json:"base_tree"`
	Tree     []treeEntry `json:"tree"`
}

type commitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type refUpdateRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type branchUpdateRequest struct {
	SHA string `json:"sha"`
}

// NewProvider validates cfg and returns a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating rest provider"

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

	if cfg.Token == "" {
		return nil, fmt.Errorf(
			"%s: token must be set", errCtx,
		)
	}

	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}

	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: base url: %w", errCtx, err,
		)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		client:    client,
		base:      base,
		account:   cfg.Account,
		repo:      cfg.Repository,
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
	}, nil
}

// BranchHead returns the commit at the tip of branch.
func (p *Provider) BranchHead(
	ctx context.Context,
	branch string,
) (gitdata.SHA, error) {
	const errCtx = "resolving branch head"

	var resp branchResponse

	if err := p.do(
		ctx,
		http.MethodGet,
		p.repoPath("branches", url.PathEscape(branch)),
		nil,
		&resp,
	); err != nil {
		return "", gitdata.LookupError(errCtx, err)
	}

	if resp.Commit == nil || resp.Commit.SHA == "" {
		return "", gitdata.LookupError(
			errCtx, gitdata.ErrMissingSHA,
		)
	}

	return gitdata.SHA(resp.Commit.SHA), nil
}

// RefHead returns the commit refs/heads/<branch>
// points at.
func (p *Provider) RefHead(
	ctx context.Context,
	branch string,
) (gitdata.SHA, error) {
	const errCtx = "resolving reference"

	var resp refResponse

	if err := p.do(
		ctx,
		http.MethodGet,
		p.repoPath("git", "ref", "heads", escapeRef(branch)),
		nil,
		&resp,
	); err != nil {
		return "", gitdata.LookupError(errCtx, err)
	}

	if resp.Object == nil || resp.Object.SHA == "" {
		return "", gitdata.LookupError(
			errCtx, gitdata.ErrMissingSHA,
		)
	}

	return gitdata.SHA(resp.Object.SHA), nil
}

// CreateBlob stores content as a UTF-8 blob.
func (p *Provider) CreateBlob(
	ctx context.Context,
	content string,
) (gitdata.SHA, error) {
	const errCtx = "creating blob"

	sha, err := p.create(
		ctx,
		p.repoPath("git", "blobs"),
		&blobRequest{Content: content, Encoding: "utf-8"},
	)
	if err != nil {
		return "", gitdata.WriteError(errCtx, err)
	}

	return sha, nil
}

// CreateTree overlays entries onto base.
func (p *Provider) CreateTree(
	ctx context.Context,
	base gitdata.SHA,
	entries []gitdata.TreeEntry,
) (gitdata.SHA, error) {
	const errCtx = "creating tree"

	req := treeRequest{
		BaseTree: base.String(),
		Tree:     make([]treeEntry, 0, len(entries)),
	}

	for _, en := range entries {
		req.Tree = append(req.Tree, treeEntry{
			Path: en.Path,
			Mode: en.Mode,
			Type: en.Type,
			SHA:  en.SHA.String(),
		})
	}

	sha, err := p.create(
		ctx, p.repoPath("git", "trees"), &req,
	)
	if err != nil {
		return "", gitdata.WriteError(errCtx, err)
	}

	return sha, nil
}

// CreateCommit creates a commit object.
func (p *Provider) CreateCommit(
	ctx context.Context,
	commit gitdata.Commit,
) (gitdata.SHA, error) {
	const errCtx = "creating commit"

	req := commitRequest{
		Message: commit.Message,
		Tree:    commit.Tree.String(),
		Parents: make([]string, 0, len(commit.Parents)),
	}

	for _, parent := range commit.Parents {
		req.Parents = append(req.Parents, parent.String())
	}

	sha, err := p.create(
		ctx, p.repoPath("git", "commits"), &req,
	)
	if err != nil {
		return "", gitdata.WriteError(errCtx, err)
	}

	return sha, nil
}

// UpdateRef points refs/heads/<branch> at sha. The
// update is not forced, so the service rejects it if
// it is not a fast-forward.
func (p *Provider) UpdateRef(
	ctx context.Context,
	branch string,
	sha gitdata.SHA,
) error {
	const errCtx = "updating reference"

	if err := p.do(
		ctx,
		http.MethodPatch,
		p.repoPath("git", "refs", "heads", escapeRef(branch)),
		&refUpdateRequest{SHA: sha.String()},
		nil,
	); err != nil {
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

	var resp shaResponse

	if err := p.do(
		ctx,
		http.MethodPatch,
		p.repoPath("branches", url.PathEscape(branch)),
		&branchUpdateRequest{SHA: sha.String()},
		&resp,
	); err != nil {
		return "", gitdata.WriteError(errCtx, err)
	}

	return gitdata.SHA(resp.SHA), nil
}

// create POSTs body to path and returns the "sha"
// field of the response.
func (p *Provider) create(
	ctx context.Context,
	path string,
	body any,
) (gitdata.SHA, error) {
	var resp shaResponse

	if err := p.do(
		ctx, http.MethodPost, path, body, &resp,
	); err != nil {
		return "", err
	}

	if resp.SHA == "" {
		return "", gitdata.ErrMissingSHA
	}

	return gitdata.SHA(resp.SHA), nil
}

// do sends one JSON request and decodes a 2xx response
// body into out when out is non-nil.
func (p *Provider) do(
	ctx context.Context,
	method string,
	path string,
	in any,
	out any,
) error {
	const errCtx = "calling api"

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf(
				"%s: marshal request: %w", errCtx, err,
			)
		}

		body = bytes.NewReader(payload)
	}

	target, err := p.base.Parse(path)
	if err != nil {
		return fmt.Errorf(
			"%s: build url: %w", errCtx, err,
		)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, target.String(), body,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: build request: %w", errCtx, err,
		)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "token "+p.token)

	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	if in != nil {
		req.Header.Set(
			"Content-Type",
			"application/json; charset=utf-8",
		)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf(
			"%s: send request: %w", errCtx, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf(
			"%s: read response: %w", errCtx, err,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn(
			"api response",
			"method", method,
			"url", target.String(),
			"status", resp.StatusCode,
			"body", string(rb),
		)

		return fmt.Errorf("%s: %w", errCtx, &gitdata.StatusError{
			Method:     method,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Body:       string(rb),
		})
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(rb, out); err != nil {
		return fmt.Errorf(
			"%s: parse response: %w", errCtx, err,
		)
	}

	return nil
}

// repoPath joins already-escaped segments under
// repos/<account>/<repo>.
func (p *Provider) repoPath(segments ...string) string {
	parts := append(
		[]string{
			"repos",
			url.PathEscape(p.account),
			url.PathEscape(p.repo),
		},
		segments...,
	)

	return strings.Join(parts, "/")
}

// escapeRef escapes each segment of a ref name while
// keeping the separating slashes.
func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return strings.Join(parts, "/")
}
