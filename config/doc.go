// Package config loads the remote_commit configuration file.
//
// The file is a flat record in JSON (.json) or YAML (.yaml, .yml) holding the
// access token, repository coordinates, branch, target file path and commit
// message, plus optional tuning knobs. Load applies defaults and validates
// the result; every failure wraps ErrConfig. The legacy github_* key names
// (github_token, github_repo_name, ...) are still accepted.
package config
