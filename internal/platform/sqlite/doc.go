// Package sqlite provides a modernc.org/sqlite implementation of the
// store.ReviewStateStore interface and of the content gateway, so the whole
// engine can run against a single local database file.
//
// UUIDs are stored as lowercase canonical text, which sorts the same way as
// PostgreSQL's uuid type. Timestamps are stored as UTC Unix microseconds.
package sqlite
