package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Version is the tool version reported in the default
// User-Agent.
const Version = "0.1.0"

const (
	// ProviderGitHub selects the go-github client.
	ProviderGitHub = "github"
	// ProviderREST selects the plain REST client.
	ProviderREST = "rest"

	// DefaultContentTemplate renders the blob body.
	DefaultContentTemplate = "Commit + {{timestamp}}"
	// DefaultTimeout bounds a whole run.
	DefaultTimeout = 60 * time.Second
	// DefaultUserAgent is sent when none is configured.
	DefaultUserAgent = "remote_commit/" + Version
)

// TimeMarkers are the placeholders that make each
// rendered blob unique. A content template must use at
// least one of them.
var TimeMarkers = []string{"{{timestamp}}", "{{unix_nano}}"}

// HasTimeMarker reports whether tpl contains one of
// TimeMarkers.
func HasTimeMarker(tpl string) bool {
	for _, m := range TimeMarkers {
		if strings.Contains(tpl, m) {
			return true
		}
	}

	return false
}

// ErrConfig marks an unreadable, malformed or
// incomplete configuration.
var ErrConfig = errors.New("invalid configuration")

// Config is the resolved, validated configuration. It
// is not modified after Load returns.
type Config struct {
	Token           string
	Account         string
	Repository      string
	Branch          string
	FilePath        string
	CommitMessage   string
	ContentTemplate string
	LocalFile       string
	Provider        string
	APIURL          string
	EnterpriseHost  string
	UserAgent       string
	Timeout         time.Duration
	ConfirmBranch   bool
	GuardRef        bool
	VerifyBlob      bool
	Preflight       bool
}

// fileConfig mirrors the on-disk layout. Pointers
// distinguish "absent" from "false" for switches that
// default to on.
type fileConfig struct {
	Token           string `json:"token"            yaml:"token"`
	Account         string `json:"account"          yaml:"account"`
	Repository      string `json:"repository"       yaml:"repository"`
	Branch          string `json:"branch"           yaml:"branch"`
	FilePath        string `json:"file_path"        yaml:"file_path"`
	CommitMessage   string `json:"commit_message"   yaml:"commit_message"`
	ContentTemplate string `json:"content_template" yaml:"content_template"`
	LocalFile       string `json:"local_file"       yaml:"local_file"`
	Provider        string `json:"provider"         yaml:"provider"`
	APIURL          string `json:"api_url"          yaml:"api_url"`
	EnterpriseHost  string `json:"enterprise_host"  yaml:"enterprise_host"`
	UserAgent       string `json:"user_agent"       yaml:"user_agent"`
	Timeout         string `json:"timeout"          yaml:"timeout"`
	ConfirmBranch   *bool  `json:"confirm_branch"   yaml:"confirm_branch"`
	GuardRef        *bool  `json:"guard_ref"        yaml:"guard_ref"`
	VerifyBlob      *bool  `json:"verify_blob"      yaml:"verify_blob"`
	Preflight       *bool  `json:"preflight"        yaml:"preflight"`

	// Legacy keys.
	GitHubToken         string `json:"github_token"          yaml:"github_token"`
	GitHubFilePath      string `json:"github_file_path"      yaml:"github_file_path"`
	GitHubRepoName      string `json:"github_repo_name"      yaml:"github_repo_name"`
	GitHubBranch        string `json:"github_branch"         yaml:"github_branch"`
	GitHubCommitMessage string `json:"github_commit_message" yaml:"github_commit_message"`
	LocalFilePath       string `json:"localfile_path"        yaml:"localfile_path"`
}

// Load reads, decodes and validates the file at path.
func Load(path string) (*Config, error) {
	const errCtx = "loading config"

	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w: %w", errCtx, ErrConfig, err,
		)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return cfg, nil
}

// Parse decodes data in the format named by ext
// (".json", ".yaml" or ".yml") and validates it.
func Parse(data []byte, ext string) (*Config, error) {
	const errCtx = "parsing config"

	var fc fileConfig

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf(
				"%s: %w: decode json: %w",
				errCtx, ErrConfig, err,
			)
		}

	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf(
				"%s: %w: decode yaml: %w",
				errCtx, ErrConfig, err,
			)
		}

	default:
		return nil, fmt.Errorf(
			"%s: %w: unsupported format %q",
			errCtx, ErrConfig, ext,
		)
	}

	cfg, err := fc.resolve()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg, nil
}

// resolve applies legacy keys and defaults, then
// validates.
func (fc *fileConfig) resolve() (*Config, error) {
	const errCtx = "resolving config"

	cfg := &Config{
		Token:           first(fc.Token, fc.GitHubToken),
		Account:         fc.Account,
		Repository:      first(fc.Repository, fc.GitHubRepoName),
		Branch:          first(fc.Branch, fc.GitHubBranch),
		FilePath:        first(fc.FilePath, fc.GitHubFilePath),
		CommitMessage:   first(fc.CommitMessage, fc.GitHubCommitMessage),
		ContentTemplate: first(fc.ContentTemplate, DefaultContentTemplate),
		LocalFile:       first(fc.LocalFile, fc.LocalFilePath),
		Provider:        strings.ToLower(first(fc.Provider, ProviderGitHub)),
		APIURL:          fc.APIURL,
		EnterpriseHost:  fc.EnterpriseHost,
		UserAgent:       first(fc.UserAgent, DefaultUserAgent),
		Timeout:         DefaultTimeout,
		ConfirmBranch:   boolOr(fc.ConfirmBranch, true),
		GuardRef:        boolOr(fc.GuardRef, false),
		VerifyBlob:      boolOr(fc.VerifyBlob, false),
		Preflight:       boolOr(fc.Preflight, true),
	}

	// The legacy layout only carried "owner/name".
	if owner, name, ok := strings.Cut(cfg.Repository, "/"); ok {
		if cfg.Account != "" {
			return nil, fmt.Errorf(
				"%s: %w: repository %q must not contain "+
					"an account when account is set",
				errCtx, ErrConfig, cfg.Repository,
			)
		}

		if owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf(
				"%s: %w: repository %q must have the form "+
					"owner/name",
				errCtx, ErrConfig, cfg.Repository,
			)
		}

		cfg.Account = owner
		cfg.Repository = name
	}

	if fc.Timeout != "" {
		dur, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w: timeout: %w",
				errCtx, ErrConfig, err,
			)
		}

		if dur <= 0 {
			return nil, fmt.Errorf(
				"%s: %w: timeout must be positive",
				errCtx, ErrConfig,
			)
		}

		cfg.Timeout = dur
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg, nil
}

// Validate checks that every required field is set, that
// the content template varies per run and that the
// provider is known.
func (c *Config) Validate() error {
	const errCtx = "validating config"

	required := []struct {
		name string
		val  string
	}{
		{"token", c.Token},
		{"account", c.Account},
		{"repository", c.Repository},
		{"branch", c.Branch},
		{"file_path", c.FilePath},
		{"commit_message", c.CommitMessage},
	}

	var missing []string

	for _, rq := range required {
		if strings.TrimSpace(rq.val) == "" {
			missing = append(missing, rq.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf(
			"%s: %w: missing required fields: %s",
			errCtx, ErrConfig, strings.Join(missing, ", "),
		)
	}

	if !HasTimeMarker(c.ContentTemplate) {
		return fmt.Errorf(
			"%s: %w: content_template %q must contain %s",
			errCtx, ErrConfig, c.ContentTemplate,
			strings.Join(TimeMarkers, " or "),
		)
	}

	switch c.Provider {
	case ProviderGitHub, ProviderREST:
	default:
		return fmt.Errorf(
			"%s: %w: unknown provider %q",
			errCtx, ErrConfig, c.Provider,
		)
	}

	return nil
}

// LogValue implements slog.LogValuer. The token is
// never logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account", c.Account),
		slog.String("repository", c.Repository),
		slog.String("branch", c.Branch),
		slog.String("file_path", c.FilePath),
		slog.String("provider", c.Provider),
		slog.String("api_url", c.APIURL),
		slog.Duration("timeout", c.Timeout),
		slog.Bool("confirm_branch", c.ConfirmBranch),
		slog.Bool("guard_ref", c.GuardRef),
		slog.Bool("verify_blob", c.VerifyBlob),
	)
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

func boolOr(val *bool, def bool) bool {
	if val == nil {
		return def
	}

	return *val
}
