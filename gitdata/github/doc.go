// Package github implements a gitdata.Provider on top of go-github. Configure
// it with a Config holding the account, repository and access token. Set
// EnterpriseHost for GitHub Enterprise installations, or BaseURL to point the
// client at any GitHub-compatible API root.
package github
