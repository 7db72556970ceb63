package github_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/remote_commit/gitdata"
	"github.com/byte4ever/remote_commit/gitdata/gitdatatest"
	ghprov "github.com/byte4ever/remote_commit/gitdata/github"
)

const (
	account = "acme"
	repo    = "widgets"
	token   = "tok"
)

func newProvider(
	t *testing.T,
	srv *gitdatatest.Server,
) *ghprov.Provider {
	t.Helper()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Account:     account,
		Repository:  repo,
		AccessToken: token,
		BaseURL:     srv.URL,
		UserAgent:   "remote_commit/test",
	})
	require.NoError(t, err)

	return pv
}

func TestNewProvider_valid(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Account:     "org",
		Repository:  "repo",
		AccessToken: "tok",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_missing_account(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Repository:  "repo",
		AccessToken: "tok",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "account")
}

func TestNewProvider_missing_repository(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Account:     "org",
		AccessToken: "tok",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "repository must be set")
}

func TestNewProvider_missing_token(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Account:    "org",
		Repository: "repo",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "access token")
}

func TestNewProvider_enterprise(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Account:        "org",
		Repository:     "repo",
		AccessToken:    "tok",
		EnterpriseHost: "git.corp.example.com",
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_bad_base_url(t *testing.T) {
	t.Parallel()

	pv, err := ghprov.NewProvider(ghprov.Config{
		Account:     "org",
		Repository:  "repo",
		AccessToken: "tok",
		BaseURL:     "://nope",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "base url")
}

func TestProvider_BranchHead(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "abc123")

	pv := newProvider(t, srv)

	got, err := pv.BranchHead(context.Background(), "main")

	require.NoError(t, err)
	assert.Equal(t, gitdata.SHA("abc123"), got)

	call, ok := srv.Call(gitdatatest.StageBranch)
	require.True(t, ok)
	assert.Equal(t, "Bearer tok", call.Header.Get("Authorization"))
	assert.Equal(t, "remote_commit/test", call.Header.Get("User-Agent"))
}

func TestProvider_BranchHead_not_found(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	pv := newProvider(t, srv)

	got, err := pv.BranchHead(context.Background(), "missing")

	assert.Empty(t, got)
	assert.ErrorIs(t, err, gitdata.ErrRemoteLookup)
}

func TestProvider_RefHead(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "abc123")

	pv := newProvider(t, srv)

	got, err := pv.RefHead(context.Background(), "main")

	require.NoError(t, err)
	assert.Equal(t, gitdata.SHA("abc123"), got)
}

func TestProvider_RefHead_not_found(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	pv := newProvider(t, srv)

	_, err := pv.RefHead(context.Background(), "missing")

	assert.ErrorIs(t, err, gitdata.ErrRemoteLookup)
}

func TestProvider_object_chain(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "parent1")

	pv := newProvider(t, srv)
	ctx := context.Background()

	blob, err := pv.CreateBlob(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(
		t,
		gitdata.SHA("b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"),
		blob,
	)

	tree, err := pv.CreateTree(
		ctx,
		"parent1",
		[]gitdata.TreeEntry{gitdata.FileEntry("log.txt", blob)},
	)
	require.NoError(t, err)

	commit, err := pv.CreateCommit(ctx, gitdata.Commit{
		Message: "msg",
		Tree:    tree,
		Parents: []gitdata.SHA{"parent1"},
	})
	require.NoError(t, err)

	require.NoError(t, pv.UpdateRef(ctx, "main", commit))
	assert.Equal(t, commit.String(), srv.Head("main"))

	confirmed, err := pv.ConfirmBranch(ctx, "main", commit)
	require.NoError(t, err)
	assert.Equal(t, commit, confirmed)

	treeCall, ok := srv.Call(gitdatatest.StageTree)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"base_tree": "parent1",
		"tree": []any{
			map[string]any{
				"path": "log.txt",
				"mode": "100644",
				"type": "blob",
				"sha":  blob.String(),
			},
		},
	}, treeCall.JSON(t))

	commitCall, ok := srv.Call(gitdatatest.StageCommit)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"message": "msg",
		"tree":    tree.String(),
		"parents": []any{"parent1"},
	}, commitCall.JSON(t))

	refCall, ok := srv.Call(gitdatatest.StageUpdateRef)
	require.True(t, ok)
	assert.Equal(
		t, "/repos/acme/widgets/git/refs/heads/main", refCall.Path,
	)
	assert.Equal(t, map[string]any{
		"sha":   commit.String(),
		"force": false,
	}, refCall.JSON(t))
}

func TestProvider_CreateBlob_failure(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.FailStage(gitdatatest.StageBlob, http.StatusForbidden)

	pv := newProvider(t, srv)

	_, err := pv.CreateBlob(context.Background(), "hello")

	assert.ErrorIs(t, err, gitdata.ErrRemoteWrite)
}

func TestProvider_UpdateRef_not_fast_forward(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "elsewhere")

	pv := newProvider(t, srv)

	err := pv.UpdateRef(context.Background(), "main", "orphan")

	assert.ErrorIs(t, err, gitdata.ErrRemoteWrite)
	assert.Equal(t, "elsewhere", srv.Head("main"))
}

func TestProvider_ConfirmBranch_failure(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "c1")
	srv.FailStage(gitdatatest.StageConfirm, http.StatusBadGateway)

	pv := newProvider(t, srv)

	_, err := pv.ConfirmBranch(context.Background(), "main", "c1")

	assert.ErrorIs(t, err, gitdata.ErrRemoteWrite)
}
