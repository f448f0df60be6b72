package ormdb

import (
	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/validation"
)

const checkerKey = "med:checker"

// Checker validates an entity's field map before it is written.
type Checker interface {
	Check(in validation.Input) error
}

// WithChecker returns a reusable session carrying c, so model hooks run
// inside any statement or transaction started from it can reach it.
func WithChecker(db *gorm.DB, c Checker) *gorm.DB {
	return db.Set(checkerKey, c).Session(&gorm.Session{})
}

// RunChecker is called from BeforeSave hooks. Sessions without a checker
// accept every record.
func RunChecker(tx *gorm.DB, in validation.Input) error {
	v, ok := tx.Get(checkerKey)
	if !ok {
		return nil
	}
	c, ok := v.(Checker)
	if !ok {
		return nil
	}
	return c.Check(in)
}
