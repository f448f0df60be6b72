package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is a single failed field rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Rule    string `json:"-"`
}

// Error is returned when one or more field rules are violated. Violations are
// ordered by the schema's field order, unknown keys last.
type Error struct {
	Entity     string
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(parts, "; "))
}

// Fields returns the violated field paths in order.
func (e *Error) Fields() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Field
	}
	return out
}

// Fail builds an Error with a single violation. Services use it for rules that
// need store state, such as a bill referencing another patient's appointment.
func Fail(entity, field, message string) *Error {
	return &Error{Entity: entity, Violations: []Violation{{Field: field, Message: message, Rule: "custom"}}}
}

// AsError unwraps err into a validation Error.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
