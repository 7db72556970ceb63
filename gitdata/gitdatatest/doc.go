// Package gitdatatest provides an in-memory fake of the Git data REST API
// for tests. The fake records every call, derives object ids from request
// content, enforces fast-forward reference updates and can be told to fail
// or mutate state at any stage.
package gitdatatest
