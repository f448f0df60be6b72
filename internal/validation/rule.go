package validation

import (
	"time"
)

// Kind is the value type a field is coerced to before its tag chain runs.
type Kind int

const (
	String Kind = iota
	Integer
	Number
	Date
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Date:
		return "date"
	}
	return "unknown"
}

// Field is a declarative rule for one entity field.
//
// Tag is a go-playground/validator tag chain evaluated against the coerced
// value ("min=2,max=50", "email", "oneof=EUR USD GBP", plus the custom tags
// registered by NewSchemas). Only the first failing tag is reported.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	// Nullable fields accept null and "" and normalize both to "".
	Nullable bool
	// Tag evaluation stops at the first failing tag: a field yields at most
	// one violation, so an amount of 10000.001 reports lte and not decimals.
	Tag string
	// Default is applied when the field is absent. It receives the
	// validation clock so time defaults are consistent within one pass.
	Default func(now time.Time) any
	// Message replaces the generated message for every failure except a
	// missing required value.
	Message string
}

// Input is an untyped record as decoded from a request body.
type Input map[string]any

// Record is an accepted record: every present field coerced to its kind
// (string, int64, float64 or time.Time) and defaults applied.
type Record map[string]any

func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// OptString returns nil for absent or empty values.
func (r Record) OptString(name string) *string {
	s, ok := r[name].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func (r Record) Int(name string) int64 {
	n, _ := r[name].(int64)
	return n
}

func (r Record) Float(name string) float64 {
	f, _ := r[name].(float64)
	return f
}

func (r Record) Time(name string) time.Time {
	t, _ := r[name].(time.Time)
	return t
}

// Day returns the calendar day of a date field, read in the zone it was
// given in, as midnight UTC. DATE columns store that form unchanged.
func (r Record) Day(name string) time.Time {
	t, ok := r[name].(time.Time)
	if !ok {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
