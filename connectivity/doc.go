// Package connectivity checks that the hosting API is reachable before any
// object is created.
package connectivity
