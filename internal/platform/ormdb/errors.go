package ormdb

import (
	"errors"
	"regexp"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/platform/store"
)

// MySQL server error numbers mapped onto store errors.
const (
	erDupEntry         = 1062
	erRowIsReferenced  = 1451
	erNoReferencedRow  = 1452
	erLockWaitTimeout  = 1205
	erLockDeadlock     = 1213
	erCheckConstraint  = 3819
	erRowIsReferenced2 = 1217
	erNoReferencedRow2 = 1216
)

var (
	// Duplicate entry 'a@b.fr' for key 'patients.idx_patients_email'
	dupKeyPattern = regexp.MustCompile("for key '(?:[^'.]+\\.)?([^']+)'")
	// ... a foreign key constraint fails (`db`.`bills`, CONSTRAINT `fk_bills_appointment` FOREIGN KEY ...
	fkPattern = regexp.MustCompile("CONSTRAINT `([^`]+)`")
	// Check constraint 'chk_bills_status' is violated.
	checkPattern = regexp.MustCompile("Check constraint '([^']+)'")
)

// TranslateError maps gorm and MySQL driver errors onto store errors.
// Unrecognized errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if translated(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}

	var myErr *gomysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case erDupEntry:
		return &store.ConstraintError{Kind: store.Unique, Constraint: match(dupKeyPattern, myErr.Message), Err: err}
	case erRowIsReferenced, erNoReferencedRow, erRowIsReferenced2, erNoReferencedRow2:
		return &store.ConstraintError{Kind: store.ForeignKey, Constraint: match(fkPattern, myErr.Message), Err: err}
	case erCheckConstraint:
		return &store.ConstraintError{Kind: store.Check, Constraint: match(checkPattern, myErr.Message), Err: err}
	case erLockDeadlock, erLockWaitTimeout:
		return store.Retryable(err)
	}
	return err
}

func match(re *regexp.Regexp, msg string) string {
	if m := re.FindStringSubmatch(msg); len(m) == 2 {
		return m[1]
	}
	return ""
}

// translated reports errors that already speak the store vocabulary.
func translated(err error) bool {
	var ce *store.ConstraintError
	return errors.As(err, &ce) || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrRetryable)
}
