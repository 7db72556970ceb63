package committer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/byte4ever/remote_commit/config"
	"github.com/byte4ever/remote_commit/gitdata"
	"github.com/byte4ever/remote_commit/objectid"
)

// Config holds all settings for one pipeline run.
type Config struct {
	// Provider talks to the remote Git data API.
	Provider gitdata.Provider

	// Account and Repository are only used as
	// template variables.
	Account    string
	Repository string

	// Branch is the branch to advance.
	Branch string

	// FilePath is the repository path of the file
	// written by the commit.
	FilePath string

	// MessageTemplate renders the commit message.
	MessageTemplate string

	// ContentTemplate renders the marker placed in
	// the blob. It must contain a time placeholder
	// (see config.TimeMarkers). Empty means
	// config.DefaultContentTemplate.
	ContentTemplate string

	// BaseContent is prepended to the rendered marker
	// when non-empty.
	BaseContent string

	// Timeout bounds the whole run. Zero means no
	// deadline beyond ctx.
	Timeout time.Duration

	// ConfirmBranch re-issues the update against the
	// branch endpoint after the ref update.
	ConfirmBranch bool

	// GuardRef refuses to update the branch if it moved
	// away from the parent commit during the run.
	GuardRef bool

	// VerifyBlob checks the returned blob id against
	// the locally computed git object id.
	VerifyBlob bool

	// Now is the clock used for template variables.
	// Defaults to time.Now.
	Now func() time.Time
}

// Result holds every identifier produced by a run.
type Result struct {
	Parent    gitdata.SHA
	Blob      gitdata.SHA
	Tree      gitdata.SHA
	Commit    gitdata.SHA
	Confirmed gitdata.SHA
}

// Run executes the commit pipeline: branch lookup,
// blob, tree, commit, optional guard, ref update and
// optional branch confirmation.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	const errCtx = "creating remote commit"

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	if cfg.ContentTemplate == "" {
		cfg.ContentTemplate = config.DefaultContentTemplate
	}

	vars := templateVars(cfg, now())
	pv := cfg.Provider

	var res Result

	// Step 1: Resolve the parent commit.
	parent, err := pv.BranchHead(ctx, cfg.Branch)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: resolve branch head: %w", errCtx, err,
		)
	}

	res.Parent = parent

	slog.Info(
		"resolved branch head",
		"branch", cfg.Branch,
		"sha", parent,
	)

	// Step 2: Upload the blob.
	content := buildContent(
		cfg.BaseContent, render(cfg.ContentTemplate, vars),
	)

	blob, err := pv.CreateBlob(ctx, content)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: create blob: %w", errCtx, err,
		)
	}

	if cfg.VerifyBlob &&
		!objectid.VerifyBlob(blob.String(), []byte(content)) {
		return nil, fmt.Errorf(
			"%s: create blob: %w",
			errCtx,
			gitdata.WriteError(
				"verifying blob",
				fmt.Errorf(
					"%w: remote %s, local %s",
					gitdata.ErrBlobMismatch,
					blob,
					objectid.Blob([]byte(content)),
				),
			),
		)
	}

	res.Blob = blob

	slog.Info("created blob", "sha", blob, "bytes", len(content))

	// Step 3: Overlay the file on the parent's tree.
	tree, err := pv.CreateTree(
		ctx,
		parent,
		[]gitdata.TreeEntry{gitdata.FileEntry(cfg.FilePath, blob)},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: create tree: %w", errCtx, err,
		)
	}

	res.Tree = tree

	slog.Info("created tree", "sha", tree, "path", cfg.FilePath)

	// Step 4: Create the single-parent commit.
	commit, err := pv.CreateCommit(ctx, gitdata.Commit{
		Message: render(cfg.MessageTemplate, vars),
		Tree:    tree,
		Parents: []gitdata.SHA{parent},
	})
	if err != nil {
		return nil, fmt.Errorf(
			"%s: create commit: %w", errCtx, err,
		)
	}

	res.Commit = commit

	slog.Info("created commit", "sha", commit, "parent", parent)

	// Step 5: Refuse to clobber a concurrent update.
	if cfg.GuardRef {
		if err := guardRef(ctx, pv, cfg.Branch, parent); err != nil {
			return nil, fmt.Errorf(
				"%s: guard reference: %w", errCtx, err,
			)
		}
	}

	// Step 6: Move the branch.
	if err := pv.UpdateRef(ctx, cfg.Branch, commit); err != nil {
		return nil, fmt.Errorf(
			"%s: update reference: %w", errCtx, err,
		)
	}

	slog.Info(
		"updated reference",
		"ref", "refs/heads/"+cfg.Branch,
		"sha", commit,
	)

	if !cfg.ConfirmBranch {
		return &res, nil
	}

	// Step 7: Confirm through the branch endpoint.
	confirmed, err := pv.ConfirmBranch(ctx, cfg.Branch, commit)
	if err != nil {
		slog.Warn(
			"branch confirmation failed after reference update",
			"branch", cfg.Branch,
			"sha", commit,
		)

		return nil, fmt.Errorf(
			"%s: confirm branch: %w", errCtx, err,
		)
	}

	res.Confirmed = confirmed

	if confirmed != commit {
		slog.Warn(
			"branch reports a different sha",
			"branch", cfg.Branch,
			"want", commit,
			"got", confirmed,
		)
	} else {
		slog.Info(
			"confirmed branch",
			"branch", cfg.Branch,
			"sha", confirmed,
		)
	}

	return &res, nil
}

// guardRef fails with gitdata.ErrRefMoved when branch
// no longer points at parent.
func guardRef(
	ctx context.Context,
	pv gitdata.Provider,
	branch string,
	parent gitdata.SHA,
) error {
	const errCtx = "checking reference"

	head, err := pv.RefHead(ctx, branch)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if head != parent {
		return gitdata.WriteError(
			errCtx,
			fmt.Errorf(
				"%w: refs/heads/%s is at %s, expected %s",
				gitdata.ErrRefMoved, branch, head, parent,
			),
		)
	}

	return nil
}

func (c *Config) validate() error {
	const errCtx = "validating pipeline config"

	var problem string

	switch {
	case c.Provider == nil:
		problem = "provider must be set"
	case c.Branch == "":
		problem = "branch must be set"
	case c.FilePath == "":
		problem = "file path must be set"
	case c.MessageTemplate == "":
		problem = "message must be set"
	case c.ContentTemplate != "" &&
		!config.HasTimeMarker(c.ContentTemplate):
		problem = "content template must contain a time placeholder"
	default:
		return nil
	}

	return fmt.Errorf("%s: %w: %s", errCtx, config.ErrConfig, problem)
}
