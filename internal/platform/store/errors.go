// Package store defines the error vocabulary shared by the Postgres (pgx) and
// MySQL (gorm) store adapters, so services and handlers never have to know
// which driver produced a failure.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is matched by a ConstraintError for a unique violation.
	ErrDuplicate = errors.New("duplicate record")

	// ErrReference is matched by a ConstraintError for a foreign-key violation,
	// on either side of the relation.
	ErrReference = errors.New("foreign key violation")

	// ErrCheck is matched by a ConstraintError for a CHECK/ENUM violation.
	ErrCheck = errors.New("check constraint violation")

	// ErrRetryable marks failures caused by concurrent transactions
	// (serialization failure, deadlock, lock timeout).
	ErrRetryable = errors.New("concurrent transaction conflict")
)

// ConstraintKind classifies a ConstraintError.
type ConstraintKind int

const (
	Unique ConstraintKind = iota + 1
	ForeignKey
	Check
)

func (k ConstraintKind) String() string {
	switch k {
	case Unique:
		return "unique"
	case ForeignKey:
		return "foreign key"
	case Check:
		return "check"
	default:
		return "unknown"
	}
}

// ConstraintError reports a violated store constraint by name.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%s constraint violated: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s constraint %q violated", e.Kind, e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDuplicate) and friends match on the kind.
func (e *ConstraintError) Is(target error) bool {
	switch target {
	case ErrDuplicate:
		return e.Kind == Unique
	case ErrReference:
		return e.Kind == ForeignKey
	case ErrCheck:
		return e.Kind == Check
	}
	return false
}

// ConstraintName returns the violated constraint name when err carries one.
func ConstraintName(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

// Retryable wraps err so that errors.Is(err, ErrRetryable) holds.
func Retryable(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}
