// Package committer creates one commit on a remote repository through the
// Git data API. Run resolves the branch tip, uploads a freshly rendered blob,
// overlays it on the parent's tree, creates a single-parent commit and
// fast-forwards the branch to it, optionally confirming through the branch
// endpoint. Stages run strictly in order and the first failure aborts the
// run; objects already created are left unreferenced on the remote.
//
// The main entry point is Run, which accepts a Config struct. FromConfig and
// NewProvider build that Config from a loaded config file.
package committer
