package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Schema evaluates the field rules of one entity kind.
type Schema struct {
	entity string
	fields []Field
	known  map[string]bool
	v      *validator.Validate
	opts   *Options
}

func newSchema(entity string, v *validator.Validate, opts *Options, fields ...Field) *Schema {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}
	return &Schema{entity: entity, fields: fields, known: known, v: v, opts: opts}
}

// Entity returns the entity name used in error messages.
func (s *Schema) Entity() string { return s.entity }

// FieldNames returns the field names in evaluation order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Validate evaluates every field of in and returns either the normalized
// record or an *Error listing all violations. It never returns both.
func (s *Schema) Validate(in Input) (Record, error) {
	now := s.opts.now()
	out := make(Record, len(s.fields))
	var violations []Violation

	for _, f := range s.fields {
		raw, present := in[f.Name]
		if isEmpty(raw) {
			present = false
		}

		if !present {
			switch {
			case f.Nullable:
				out[f.Name] = ""
			case f.Default != nil:
				out[f.Name] = f.Default(now)
			case f.Required:
				violations = append(violations, Violation{Field: f.Name, Message: f.Label + " is required", Rule: "required"})
			}
			continue
		}

		val, ok := s.coerce(f.Kind, raw)
		if !ok {
			violations = append(violations, s.violation(f, "type", ""))
			continue
		}

		if f.Tag != "" {
			if err := s.v.Var(val, f.Tag); err != nil {
				var fieldErrs validator.ValidationErrors
				if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
					violations = append(violations, s.violation(f, fieldErrs[0].Tag(), fieldErrs[0].Param()))
					continue
				}
				return nil, fmt.Errorf("%s.%s: bad rule %q: %w", s.entity, f.Name, f.Tag, err)
			}
		}
		out[f.Name] = val
	}

	var unknown []string
	for k := range in {
		if !s.known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		violations = append(violations, Violation{Field: k, Message: fmt.Sprintf("%q is not allowed", k), Rule: "unknown"})
	}

	if len(violations) > 0 {
		return nil, &Error{Entity: s.entity, Violations: violations}
	}
	return out, nil
}

// Check validates an entity's field map at the store boundary.
func (s *Schema) Check(in Input) error {
	_, err := s.Validate(in)
	return err
}

// isEmpty reports values treated as missing: null and the empty string.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case *string:
		return t == nil || *t == ""
	case *time.Time:
		return t == nil
	}
	return false
}

func (s *Schema) coerce(kind Kind, raw any) (any, bool) {
	switch kind {
	case String:
		switch t := raw.(type) {
		case string:
			return t, true
		case *string:
			return *t, true
		}
		return nil, false
	case Integer:
		return toInteger(raw)
	case Number:
		return toNumber(raw)
	case Date:
		return toDate(raw, s.opts.location())
	}
	return nil, false
}

func toInteger(raw any) (any, bool) {
	switch t := raw.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return nil, false
		}
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		return floatToInteger(t.String())
	case float64:
		if t != math.Trunc(t) || !fitsInt64(t) {
			return nil, false
		}
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		return floatToInteger(s)
	}
	return nil, false
}

func floatToInteger(s string) (any, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || !fitsInt64(f) {
		return nil, false
	}
	return int64(f), true
}

// fitsInt64 reports whether f lies in [-2^63, 2^63). NaN and infinities do not.
func fitsInt64(f float64) bool {
	return f >= math.MinInt64 && f < -math.MinInt64
}

func toNumber(raw any) (any, bool) {
	var f float64
	switch t := raw.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		v, err := t.Float64()
		if err != nil {
			return nil, false
		}
		f = v
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, false
		}
		f = v
	default:
		return nil, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// Layouts accepted for date strings. Layouts without a zone are read in the
// configured location.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toDate(raw any, loc *time.Location) (any, bool) {
	switch t := raw.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		return *t, !t.IsZero()
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return nil, false
		}
		return time.UnixMilli(ms).In(loc), true
	case float64:
		if t != math.Trunc(t) || !fitsInt64(t) {
			return nil, false
		}
		return time.UnixMilli(int64(t)).In(loc), true
	case int64:
		return time.UnixMilli(t).In(loc), true
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		for _, layout := range dateLayouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts, true
			}
		}
	}
	return nil, false
}

// ParseTime reads a date value in any of the accepted input forms. Zone-less
// strings are read in loc.
func ParseTime(raw any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	v, ok := toDate(raw, loc)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// Location returns the zone used for zone-less date strings.
func (s *Schema) Location() *time.Location { return s.opts.location() }
