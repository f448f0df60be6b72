package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docteurlibre/med-api/internal/platform/store"
)

// PostgreSQL SQLSTATE codes mapped onto the store error vocabulary.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// TranslateError maps pgx errors onto store errors. Unrecognized errors are
// returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if translated(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return &store.ConstraintError{Kind: store.Unique, Constraint: pgErr.ConstraintName, Err: err}
	case codeForeignKeyViolation:
		return &store.ConstraintError{Kind: store.ForeignKey, Constraint: pgErr.ConstraintName, Err: err}
	case codeCheckViolation:
		return &store.ConstraintError{Kind: store.Check, Constraint: pgErr.ConstraintName, Err: err}
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return store.Retryable(err)
	}
	return err
}

// translated reports errors that already speak the store vocabulary.
func translated(err error) bool {
	var ce *store.ConstraintError
	return errors.As(err, &ce) || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrRetryable)
}
