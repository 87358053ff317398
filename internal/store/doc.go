// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Review states are written with optimistic concurrency: every write names
// the version it expects to replace, and a mismatch is reported as
// ErrConflict rather than blocking on a lock.
package store
