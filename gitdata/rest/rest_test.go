package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/remote_commit/gitdata"
	"github.com/byte4ever/remote_commit/gitdata/gitdatatest"
	"github.com/byte4ever/remote_commit/gitdata/rest"
)

const (
	account = "acme"
	repo    = "widgets"
	token   = "tok"
)

func newProvider(
	t *testing.T,
	baseURL string,
) *rest.Provider {
	t.Helper()

	pv, err := rest.NewProvider(rest.Config{
		BaseURL:    baseURL,
		Account:    account,
		Repository: repo,
		Token:      token,
		UserAgent:  "remote_commit/test",
	})
	require.NoError(t, err)

	return pv
}

func TestNewProvider_valid(t *testing.T) {
	t.Parallel()

	pv, err := rest.NewProvider(rest.Config{
		Account:    account,
		Repository: repo,
		Token:      token,
	})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_missing_account(t *testing.T) {
	t.Parallel()

	pv, err := rest.NewProvider(rest.Config{
		Repository: repo,
		Token:      token,
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "account must be set")
}

func TestNewProvider_missing_repository(t *testing.T) {
	t.Parallel()

	pv, err := rest.NewProvider(rest.Config{
		Account: account,
		Token:   token,
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "repository must be set")
}

func TestNewProvider_missing_token(t *testing.T) {
	t.Parallel()

	pv, err := rest.NewProvider(rest.Config{
		Account:    account,
		Repository: repo,
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "token must be set")
}

func TestProvider_BranchHead(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "abc123")

	pv := newProvider(t, srv.URL)

	got, err := pv.BranchHead(context.Background(), "main")

	require.NoError(t, err)
	assert.Equal(t, gitdata.SHA("abc123"), got)

	call, ok := srv.Call(gitdatatest.StageBranch)
	require.True(t, ok)
	assert.Equal(t, "/repos/acme/widgets/branches/main", call.Path)
	assert.Equal(t, "token tok", call.Header.Get("Authorization"))
	assert.Equal(t, "remote_commit/test", call.Header.Get("User-Agent"))
}

func TestProvider_BranchHead_escapes_branch(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("feature/x", "abc123")

	pv := newProvider(t, srv.URL)

	got, err := pv.BranchHead(context.Background(), "feature/x")

	require.NoError(t, err)
	assert.Equal(t, gitdata.SHA("abc123"), got)

	call, ok := srv.Call(gitdatatest.StageBranch)
	require.True(t, ok)
	assert.Equal(
		t, "/repos/acme/widgets/branches/feature%2Fx", call.Path,
	)
}

func TestProvider_BranchHead_not_found(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	pv := newProvider(t, srv.URL)

	got, err := pv.BranchHead(context.Background(), "missing")

	assert.Empty(t, got)
	require.ErrorIs(t, err, gitdata.ErrRemoteLookup)

	var se *gitdata.StatusError

	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "Branch not found")
}

func TestProvider_BranchHead_missing_sha(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"name":"main","commit":{}}`))
			},
		),
	)
	defer ts.Close()

	pv := newProvider(t, ts.URL)

	_, err := pv.BranchHead(context.Background(), "main")

	require.ErrorIs(t, err, gitdata.ErrRemoteLookup)
	assert.ErrorIs(t, err, gitdata.ErrMissingSHA)
}

func TestProvider_BranchHead_malformed_body(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
		),
	)
	defer ts.Close()

	pv := newProvider(t, ts.URL)

	_, err := pv.BranchHead(context.Background(), "main")

	require.ErrorIs(t, err, gitdata.ErrRemoteLookup)
	assert.ErrorContains(t, err, "parse response")
}

func TestProvider_RefHead(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("feature/x", "abc123")

	pv := newProvider(t, srv.URL)

	got, err := pv.RefHead(context.Background(), "feature/x")

	require.NoError(t, err)
	assert.Equal(t, gitdata.SHA("abc123"), got)

	call, ok := srv.Call(gitdatatest.StageRef)
	require.True(t, ok)
	assert.Equal(
		t, "/repos/acme/widgets/git/ref/heads/feature/x", call.Path,
	)
}

func TestProvider_CreateBlob_body(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	pv := newProvider(t, srv.URL)

	got, err := pv.CreateBlob(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(
		t,
		gitdata.SHA("b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"),
		got,
	)

	call, ok := srv.Call(gitdatatest.StageBlob)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"content":  "hello",
		"encoding": "utf-8",
	}, call.JSON(t))
}

func TestProvider_CreateBlob_server_error(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.FailStage(gitdatatest.StageBlob, http.StatusInternalServerError)

	pv := newProvider(t, srv.URL)

	_, err := pv.CreateBlob(context.Background(), "hello")

	require.ErrorIs(t, err, gitdata.ErrRemoteWrite)
	assert.ErrorContains(t, err, "unexpected status 500")
}

func TestProvider_CreateBlob_bad_credentials(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, "other")
	pv := newProvider(t, srv.URL)

	_, err := pv.CreateBlob(context.Background(), "hello")

	require.ErrorIs(t, err, gitdata.ErrRemoteWrite)
	assert.ErrorContains(t, err, "unexpected status 401")
}

func TestProvider_CreateTree_body(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	pv := newProvider(t, srv.URL)

	got, err := pv.CreateTree(
		context.Background(),
		"parent1",
		[]gitdata.TreeEntry{
			gitdata.FileEntry("docs/log.txt", "blob1"),
		},
	)

	require.NoError(t, err)
	assert.NotEmpty(t, got)

	call, ok := srv.Call(gitdatatest.StageTree)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"base_tree": "parent1",
		"tree": []any{
			map[string]any{
				"path": "docs/log.txt",
				"mode": "100644",
				"type": "blob",
				"sha":  "blob1",
			},
		},
	}, call.JSON(t))
}

func TestProvider_CreateTree_quotes_identifiers(t *testing.T) {
	t.Parallel()

	var got map[string]any

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)

					return
				}

				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"sha":"t1"}`))
			},
		),
	)
	defer ts.Close()

	pv := newProvider(t, ts.URL)

	weird := gitdata.SHA(`a"b\c`)

	_, err := pv.CreateTree(
		context.Background(),
		weird,
		[]gitdata.TreeEntry{gitdata.FileEntry("f", weird)},
	)

	require.NoError(t, err)
	assert.Equal(t, `a"b\c`, got["base_tree"])
}

func TestProvider_CreateCommit_body(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	pv := newProvider(t, srv.URL)

	got, err := pv.CreateCommit(context.Background(), gitdata.Commit{
		Message: `say "hi"`,
		Tree:    "tree1",
		Parents: []gitdata.SHA{"parent1"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"parent1"}, srv.Parents(got.String()))

	call, ok := srv.Call(gitdatatest.StageCommit)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"message": `say "hi"`,
		"tree":    "tree1",
		"parents": []any{"parent1"},
	}, call.JSON(t))
}

func TestProvider_CreateCommit_missing_sha(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{}`))
			},
		),
	)
	defer ts.Close()

	pv := newProvider(t, ts.URL)

	_, err := pv.CreateCommit(context.Background(), gitdata.Commit{
		Message: "m",
		Tree:    "t",
		Parents: []gitdata.SHA{"p"},
	})

	require.ErrorIs(t, err, gitdata.ErrRemoteWrite)
	assert.ErrorIs(t, err, gitdata.ErrMissingSHA)
}

func TestProvider_UpdateRef_fast_forward(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "parent1")

	pv := newProvider(t, srv.URL)
	ctx := context.Background()

	sha, err := pv.CreateCommit(ctx, gitdata.Commit{
		Message: "m",
		Tree:    "tree1",
		Parents: []gitdata.SHA{"parent1"},
	})
	require.NoError(t, err)

	require.NoError(t, pv.UpdateRef(ctx, "main", sha))
	assert.Equal(t, sha.String(), srv.Head("main"))

	call, ok := srv.Call(gitdatatest.StageUpdateRef)
	require.True(t, ok)
	assert.Equal(t, http.MethodPatch, call.Method)
	assert.Equal(
		t, "/repos/acme/widgets/git/refs/heads/main", call.Path,
	)
	assert.Equal(t, map[string]any{
		"sha":   sha.String(),
		"force": false,
	}, call.JSON(t))
}

func TestProvider_UpdateRef_not_fast_forward(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "elsewhere")

	pv := newProvider(t, srv.URL)

	err := pv.UpdateRef(context.Background(), "main", "orphan")

	require.ErrorIs(t, err, gitdata.ErrRemoteWrite)
	assert.ErrorContains(t, err, "unexpected status 422")
	assert.Equal(t, "elsewhere", srv.Head("main"))
}

func TestProvider_ConfirmBranch(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "c1")

	pv := newProvider(t, srv.URL)

	got, err := pv.ConfirmBranch(context.Background(), "main", "c1")

	require.NoError(t, err)
	assert.Equal(t, gitdata.SHA("c1"), got)

	call, ok := srv.Call(gitdatatest.StageConfirm)
	require.True(t, ok)
	assert.Equal(t, "/repos/acme/widgets/branches/main", call.Path)
	assert.Equal(t, map[string]any{"sha": "c1"}, call.JSON(t))
}

func TestProvider_ConfirmBranch_failure(t *testing.T) {
	t.Parallel()

	srv := gitdatatest.NewServer(t, account, repo, token)
	srv.SetHead("main", "c1")
	srv.FailStage(gitdatatest.StageConfirm, http.StatusNotFound)

	pv := newProvider(t, srv.URL)

	_, err := pv.ConfirmBranch(context.Background(), "main", "c1")

	assert.ErrorIs(t, err, gitdata.ErrRemoteWrite)
}

func TestProvider_transport_error(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	pv := newProvider(t, url)

	_, err := pv.BranchHead(context.Background(), "main")

	require.ErrorIs(t, err, gitdata.ErrRemoteLookup)
	assert.ErrorContains(t, err, "send request")
}
