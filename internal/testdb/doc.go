//go:build integration

// Package testdb provides utilities for PostgreSQL integration tests.
//
// Each test runs in its own transaction, which is automatically rolled back
// when the test completes, so tests can run in parallel without cleanup:
//
//	func TestMyFeature(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        reviewStore := postgres.NewPostgresReviewStateStore(tx, nil)
//	        // ...
//	    })
//	}
//
// The connection string is read from SCRY_TEST_DB_URL, falling back to
// DATABASE_URL. Tests are skipped when neither is set, and fail under CI.
package testdb
