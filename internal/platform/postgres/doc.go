// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package, plus a read-only
// gateway over the content system's flashcard and enrollment tables.
// It handles the details of query execution, error translation, and data
// mapping between domain entities and database records. Schema migrations
// are embedded and applied with goose.
package postgres
