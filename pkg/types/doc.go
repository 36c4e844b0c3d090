// Package types defines the Adapter and Statement interfaces, the stored
// entity shapes, the backend configuration, and the standard errors shared by
// every xanote storage backend.
//
// Callers obtain an Adapter (see pkg/store), call Initialize once, and then
// issue all reads and writes through Prepare. Both backends honour the same
// contract: Get returns a nil Row when nothing matches, All returns an empty
// slice, and Run reports the number of affected rows.
package types
