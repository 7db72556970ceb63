// Package gitdata defines the object model and the Provider strategy used to
// drive a hosting service's low-level Git data API.
//
// A Provider resolves a branch tip, creates blob, tree and commit objects and
// repoints a branch reference. Implementations live in sub-packages: github
// uses go-github, rest speaks the JSON wire directly. Errors returned by
// providers wrap ErrRemoteLookup or ErrRemoteWrite so callers can classify
// failures with errors.Is.
package gitdata
