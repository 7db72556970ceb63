package gitdata

import "context"

// Pattern: Strategy -- swap hosting API client without
// changing the commit pipeline.

// SHA is an opaque object identifier returned by the
// remote service. It is never parsed.
type SHA string

// String returns the identifier as a plain string.
func (s SHA) String() string {
	return string(s)
}

const (
	// ModeFile is the tree mode of a regular file.
	ModeFile = "100644"
	// TypeBlob is the tree entry type of a file.
	TypeBlob = "blob"
)

// TreeEntry places one blob at a path in a tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  SHA
}

// FileEntry returns a regular-file tree entry for path
// pointing at blob.
func FileEntry(path string, blob SHA) TreeEntry {
	return TreeEntry{
		Path: path,
		Mode: ModeFile,
		Type: TypeBlob,
		SHA:  blob,
	}
}

// Commit describes a commit object to create.
type Commit struct {
	Message string
	Tree    SHA
	Parents []SHA
}

// Provider creates Git objects and moves branch
// references on a remote repository.
type Provider interface {
	// BranchHead returns the commit at the tip of
	// branch.
	BranchHead(ctx context.Context, branch string) (SHA, error)

	// RefHead returns the commit the refs/heads/<branch>
	// reference currently points at.
	RefHead(ctx context.Context, branch string) (SHA, error)

	// CreateBlob stores content as a UTF-8 blob.
	CreateBlob(ctx context.Context, content string) (SHA, error)

	// CreateTree overlays entries onto base.
	CreateTree(
		ctx context.Context,
		base SHA,
		entries []TreeEntry,
	) (SHA, error)

	// CreateCommit creates a commit object.
	CreateCommit(ctx context.Context, commit Commit) (SHA, error)

	// UpdateRef points refs/heads/<branch> at sha
	// without forcing.
	UpdateRef(ctx context.Context, branch string, sha SHA) error

	// ConfirmBranch re-issues the update against the
	// branch endpoint and returns the SHA it reports.
	ConfirmBranch(
		ctx context.Context,
		branch string,
		sha SHA,
	) (SHA, error)
}
