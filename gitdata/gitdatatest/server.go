package gitdatatest

import (
	"crypto/sha1" //nolint:gosec // fake object ids
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/remote_commit/objectid"
)

// Stage names one endpoint of the fake.
type Stage string

// Stages in pipeline order.
const (
	StageBranch    Stage = "branch"
	StageRef       Stage = "ref"
	StageBlob      Stage = "blob"
	StageTree      Stage = "tree"
	StageCommit    Stage = "commit"
	StageUpdateRef Stage = "update_ref"
	StageConfirm   Stage = "confirm"

	// StageOther records requests matching no endpoint,
	// such as the reachability check of the API root.
	StageOther Stage = "other"
)

// Call is one request received by the fake.
type Call struct {
	Stage  Stage
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// JSON decodes the call body into a generic map.
func (c Call) JSON(t testing.TB) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(c.Body, &out); err != nil {
		t.Fatalf("decoding %s body: %v", c.Stage, err)
	}

	return out
}

// Server is a fake Git data API for one repository.
type Server struct {
	*httptest.Server

	Account string
	Repo    string
	Token   string

	mu       sync.Mutex
	heads    map[string]string
	parents  map[string][]string
	calls    []Call
	failures map[Stage]int
	hooks    map[Stage]func()
}

// NewServer starts a fake serving account/repo and
// registers its shutdown with t.Cleanup. Requests must
// present token as "token <token>" or "Bearer <token>".
func NewServer(
	t testing.TB,
	account string,
	repo string,
	token string,
) *Server {
	t.Helper()

	srv := &Server{
		Account:  account,
		Repo:     repo,
		Token:    token,
		heads:    make(map[string]string),
		parents:  make(map[string][]string),
		failures: make(map[Stage]int),
		hooks:    make(map[Stage]func()),
	}

	prefix := "/repos/" + account + "/" + repo

	mux := http.NewServeMux()
	mux.HandleFunc(
		"GET "+prefix+"/branches/{branch...}",
		srv.wrap(StageBranch, srv.getBranch),
	)
	mux.HandleFunc(
		"GET "+prefix+"/git/ref/heads/{branch...}",
		srv.wrap(StageRef, srv.getRef),
	)
	mux.HandleFunc(
		"POST "+prefix+"/git/blobs",
		srv.wrap(StageBlob, srv.createBlob),
	)
	mux.HandleFunc(
		"POST "+prefix+"/git/trees",
		srv.wrap(StageTree, srv.createTree),
	)
	mux.HandleFunc(
		"POST "+prefix+"/git/commits",
		srv.wrap(StageCommit, srv.createCommit),
	)
	mux.HandleFunc(
		"PATCH "+prefix+"/git/refs/heads/{branch...}",
		srv.wrap(StageUpdateRef, srv.updateRef),
	)
	mux.HandleFunc(
		"PATCH "+prefix+"/branches/{branch...}",
		srv.wrap(StageConfirm, srv.confirmBranch),
	)

	mux.HandleFunc("/", srv.wrap(StageOther, srv.notFound))

	srv.Server = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

// SetHead points branch at sha.
func (s *Server) SetHead(branch string, sha string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heads[branch] = sha
}

// Head returns the commit branch points at.
func (s *Server) Head(branch string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.heads[branch]
}

// Parents returns the recorded parents of a commit
// created through the fake.
func (s *Server) Parents(sha string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.parents[sha]...)
}

// FailStage makes every request to stage answer with
// status.
func (s *Server) FailStage(stage Stage, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[stage] = status
}

// OnStage runs fn after a request to stage has been
// served successfully.
func (s *Server) OnStage(stage Stage, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks[stage] = fn
}

// Calls returns a copy of the recorded requests.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Call(nil), s.calls...)
}

// Stages returns the stage of every recorded request
// in order.
func (s *Server) Stages() []Stage {
	calls := s.Calls()

	out := make([]Stage, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Stage)
	}

	return out
}

// Call returns the first recorded request to stage.
func (s *Server) Call(stage Stage) (Call, bool) {
	for _, c := range s.Calls() {
		if c.Stage == stage {
			return c, true
		}
	}

	return Call{}, false
}

type handler func(
	w http.ResponseWriter,
	r *http.Request,
	body []byte,
) bool

// wrap records the call, applies auth and injected
// failures, and runs the stage hook on success.
func (s *Server) wrap(stage Stage, next handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read error")

			return
		}

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Stage:  stage,
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		status := s.failures[stage]
		s.mu.Unlock()

		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "Bad credentials")

			return
		}

		if status != 0 {
			writeError(w, status, "injected failure")

			return
		}

		if !next(w, r, body) {
			return
		}

		s.mu.Lock()
		hook := s.hooks[stage]
		s.mu.Unlock()

		if hook != nil {
			hook()
		}
	}
}

func (s *Server) notFound(
	w http.ResponseWriter,
	_ *http.Request,
	_ []byte,
) bool {
	writeError(w, http.StatusNotFound, "Not Found")

	return false
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Token == "" {
		return true
	}

	got := r.Header.Get("Authorization")

	return got == "token "+s.Token || got == "Bearer "+s.Token
}

func (s *Server) getBranch(
	w http.ResponseWriter,
	r *http.Request,
	_ []byte,
) bool {
	branch := r.PathValue("branch")

	head := s.Head(branch)
	if head == "" {
		writeError(w, http.StatusNotFound, "Branch not found")

		return false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":   branch,
		"commit": map[string]any{"sha": head},
	})

	return true
}

func (s *Server) getRef(
	w http.ResponseWriter,
	r *http.Request,
	_ []byte,
) bool {
	branch := r.PathValue("branch")

	head := s.Head(branch)
	if head == "" {
		writeError(w, http.StatusNotFound, "Not Found")

		return false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ref": "refs/heads/" + branch,
		"object": map[string]any{
			"type": "commit",
			"sha":  head,
		},
	})

	return true
}

func (s *Server) createBlob(
	w http.ResponseWriter,
	_ *http.Request,
	body []byte,
) bool {
	var req struct {
		Content  *string `json:"content"`
		Encoding string  `json:"encoding"`
	}

	if err := json.Unmarshal(body, &req); err != nil ||
		req.Content == nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request")

		return false
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"sha": objectid.Blob([]byte(*req.Content)),
	})

	return true
}

func (s *Server) createTree(
	w http.ResponseWriter,
	_ *http.Request,
	body []byte,
) bool {
	var req struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path string `json:"path"`
			Mode string `json:"mode"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
		} `json:"tree"`
	}

	if err := json.Unmarshal(body, &req); err != nil ||
		len(req.Tree) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "Invalid tree")

		return false
	}

	parts := []string{"tree", req.BaseTree}
	for _, en := range req.Tree {
		parts = append(parts, en.Path, en.Mode, en.Type, en.SHA)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"sha": fakeID(parts...),
	})

	return true
}

func (s *Server) createCommit(
	w http.ResponseWriter,
	_ *http.Request,
	body []byte,
) bool {
	var req struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}

	if err := json.Unmarshal(body, &req); err != nil ||
		req.Tree == "" {
		writeError(w, http.StatusUnprocessableEntity, "Invalid commit")

		return false
	}

	parts := append(
		[]string{"commit", req.Message, req.Tree},
		req.Parents...,
	)
	sha := fakeID(parts...)

	s.mu.Lock()
	s.parents[sha] = req.Parents
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"sha": sha,
	})

	return true
}

func (s *Server) updateRef(
	w http.ResponseWriter,
	r *http.Request,
	body []byte,
) bool {
	branch := r.PathValue("branch")

	var req struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}

	if err := json.Unmarshal(body, &req); err != nil ||
		req.SHA == "" {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request")

		return false
	}

	s.mu.Lock()

	head, ok := s.heads[branch]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, "Reference does not exist")

		return false
	}

	if !req.Force && !contains(s.parents[req.SHA], head) {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, "Update is not a fast forward")

		return false
	}

	s.heads[branch] = req.SHA
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ref": "refs/heads/" + branch,
		"object": map[string]any{
			"type": "commit",
			"sha":  req.SHA,
		},
	})

	return true
}

func (s *Server) confirmBranch(
	w http.ResponseWriter,
	r *http.Request,
	body []byte,
) bool {
	branch := r.PathValue("branch")

	var req struct {
		SHA string `json:"sha"`
	}

	if err := json.Unmarshal(body, &req); err != nil ||
		req.SHA == "" {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request")

		return false
	}

	head := s.Head(branch)
	if head == "" {
		writeError(w, http.StatusNotFound, "Branch not found")

		return false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name": branch,
		"sha":  head,
	})

	return true
}

func fakeID(parts ...string) string {
	ha := sha1.New() //nolint:gosec // fake object ids

	ha.Write([]byte(strings.Join(parts, "\x00")))

	return hex.EncodeToString(ha.Sum(nil))
}

func contains(list []string, val string) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}

	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}
