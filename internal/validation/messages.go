package validation

import (
	"fmt"
	"strings"
)

func (s *Schema) violation(f Field, tag, param string) Violation {
	msg := f.Message
	if msg == "" {
		msg = s.message(f, tag, param)
	}
	return Violation{Field: f.Name, Message: msg, Rule: tag}
}

func (s *Schema) message(f Field, tag, param string) string {
	l := f.Label
	switch tag {
	case "type":
		switch f.Kind {
		case Integer:
			return l + " must be an integer"
		case Number:
			return l + " must be a number"
		case Date:
			return l + " must be a valid date"
		}
		return l + " must be a string"
	case "min":
		if f.Kind == String {
			return fmt.Sprintf("%s must be at least %s characters", l, param)
		}
		return fmt.Sprintf("%s must be at least %s", l, param)
	case "max":
		if f.Kind == String {
			return fmt.Sprintf("%s must not exceed %s characters", l, param)
		}
		return fmt.Sprintf("%s must not exceed %s", l, param)
	case "gt":
		if param == "0" {
			return l + " must be a positive number"
		}
		return fmt.Sprintf("%s must be greater than %s", l, param)
	case "lte":
		return fmt.Sprintf("%s must not exceed %s", l, param)
	case "email":
		return l + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", l, strings.Join(strings.Fields(param), ", "))
	case "alphanum":
		return l + " must contain only letters and digits"
	case tagPhone:
		return l + " must be a French phone number (e.g. 01.23.45.67.89 or 01 23 45 67 89)"
	case tagDecimals:
		return fmt.Sprintf("%s must have at most %s decimal places", l, param)
	case tagNotFuture:
		return l + " cannot be in the future"
	case tagNotPast:
		return l + " must be in the future"
	case tagBusinessHours:
		h := s.opts.hours()
		return fmt.Sprintf("%s must fall between %02d:00 and %02d:00", l, h.Open, h.Close)
	}
	return fmt.Sprintf("%s is invalid (%s)", l, tag)
}
