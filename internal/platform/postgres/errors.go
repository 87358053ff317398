package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-srs/internal/store"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// foreignKeyViolationCode is the PostgreSQL error code for foreign key violations
	foreignKeyViolationCode = "23503"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"

	// datetimeFieldOverflowCode and numericValueOutOfRangeCode reject values
	// outside the column's range.
	datetimeFieldOverflowCode  = "22008"
	numericValueOutOfRangeCode = "22003"

	// serializationFailureCode and deadlockDetectedCode abort the statement
	// but succeed when retried.
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"

	// tooManyConnectionsCode is raised when the server refuses new sessions.
	tooManyConnectionsCode = "53300"

	// adminShutdownCode and cannotConnectNowCode are raised while the server restarts.
	adminShutdownCode    = "57P01"
	cannotConnectNowCode = "57P03"

	// connectionExceptionClass prefixes every "class 08" connection error.
	connectionExceptionClass = "08"
)

// MapError maps a database error to an appropriate store error.
// It wraps the original error to preserve context and provide better debugging information.
// This function should be used in all database operations to ensure consistent error handling.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	// Cancellation belongs to the caller and is never reported as an outage.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Handle common SQL errors
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	// Handle PostgreSQL-specific errors
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		case foreignKeyViolationCode:
			return fmt.Errorf(
				"%w: foreign key violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ColumnName,
				err,
			)
		case datetimeFieldOverflowCode, numericValueOutOfRangeCode:
			return fmt.Errorf(
				"%w: value out of range (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ColumnName,
				err,
			)
		case serializationFailureCode, deadlockDetectedCode, tooManyConnectionsCode,
			adminShutdownCode, cannotConnectNowCode:
			return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
		}
		if strings.HasPrefix(pgErr.Code, connectionExceptionClass) {
			return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
		}
		return err
	}

	if IsConnectionError(err) {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	// Return the original error for errors that don't have specific mappings
	return err
}

// IsConnectionError reports whether err indicates that the database could not
// be reached or dropped the connection mid-statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsSafeToRetry reports whether err guarantees that the statement never
// reached the server, so re-running a write cannot apply it twice.
func IsSafeToRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// MapWriteError maps an error returned by a write. A connection failure
// after the statement may have reached the server becomes
// store.ErrWriteOutcomeUnknown: the write may or may not have committed.
// Everything else is mapped by MapError.
func MapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) && IsConnectionError(err) && !IsSafeToRetry(err) {
		return fmt.Errorf("%w: %v", store.ErrWriteOutcomeUnknown, err)
	}
	return MapError(err)
}

// CheckVersionApplied examines the number of rows affected by a conditional
// write. If no rows were affected the precondition failed and it returns
// store.ErrConflict.
func CheckVersionApplied(result sql.Result, entityName string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckVersionApplied")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if entityName == "" {
			return store.ErrConflict
		}
		return fmt.Errorf("%w: %s version precondition failed", store.ErrConflict, entityName)
	}

	return nil
}
