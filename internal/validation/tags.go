package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	tagPhone         = "frphone"
	tagDecimals      = "decimals"
	tagNotFuture     = "notfuture"
	tagNotPast       = "notpast"
	tagBusinessHours = "businesshours"
)

// French numbers: 0 or +33, then a non-zero digit and four pairs, each pair
// optionally preceded by a space or a dot.
var frPhone = regexp.MustCompile(`^(\+33[\s.]?|0)[1-9]([\s.]?\d{2}){4}$`)

func registerTags(v *validator.Validate, opts *Options) {
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("validation: register " + tag + ": " + err.Error())
		}
	}

	must(tagPhone, func(fl validator.FieldLevel) bool {
		return frPhone.MatchString(fl.Field().String())
	})

	must(tagDecimals, func(fl validator.FieldLevel) bool {
		places, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return decimalPlaces(fl.Field().Float()) <= places
	})

	must(tagNotFuture, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.After(opts.now())
	})

	must(tagNotPast, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.Before(opts.now())
	})

	must(tagBusinessHours, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		if opts.BusinessHours == nil {
			return true
		}
		return opts.BusinessHours.Contains(t.In(opts.location()))
	})
}

// decimalPlaces counts digits after the point in the shortest representation
// of f, so 9999.99 has 2 and 10.5 has 1.
func decimalPlaces(f float64) int {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return math.MaxInt
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
