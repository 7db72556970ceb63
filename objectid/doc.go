// Package objectid computes git object identifiers locally. The commit
// pipeline uses it to check that the blob id reported by the hosting service
// matches the content it uploaded.
package objectid
