// Package validation holds the single field rule set for every entity. The
// request handlers validate untyped input with it and both store adapters
// re-check entity field maps with it before writing.
package validation

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Bill statuses.
const (
	BillPending   = "pending"
	BillPaid      = "paid"
	BillCancelled = "cancelled"
)

// Specialties lists the accepted practitioner specialties.
var Specialties = []string{"cardiologue", "dermatologue", "generaliste", "pediatre", "psychiatre", "ophtalmologue"}

// Currencies lists the accepted bill currencies.
var Currencies = []string{"EUR", "USD", "GBP"}

// HourRange is a half-open range of wall-clock hours, [Open, Close).
type HourRange struct {
	Open  int
	Close int
}

// Contains reports whether t's hour lies in the range.
func (h HourRange) Contains(t time.Time) bool {
	return t.Hour() >= h.Open && t.Hour() < h.Close
}

// Options tune the time-dependent rules.
type Options struct {
	// Now is the validation clock. Defaults to time.Now.
	Now func() time.Time
	// Location is used for zone-less date strings and the business-hours
	// rule. Defaults to time.Local.
	Location *time.Location
	// BusinessHours restricts appointment times. Nil disables the rule.
	BusinessHours *HourRange
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o *Options) hours() HourRange {
	if o.BusinessHours == nil {
		return HourRange{Open: 0, Close: 24}
	}
	return *o.BusinessHours
}

// Schemas bundles the four entity schemas built over one validator instance.
type Schemas struct {
	Patient      *Schema
	Practitioner *Schema
	Appointment  *Schema
	Bill         *Schema
}

// NewSchemas builds the entity schemas.
func NewSchemas(opts Options) *Schemas {
	o := &opts
	v := validator.New(validator.WithRequiredStructEnabled())
	registerTags(v, o)

	name := func(field, label string) Field {
		return Field{Name: field, Label: label, Kind: String, Required: true, Tag: "min=2,max=50"}
	}
	email := Field{Name: "email", Label: "email", Kind: String, Required: true, Tag: "email"}
	phone := Field{Name: "phone", Label: "phone", Kind: String, Required: true, Tag: tagPhone}
	id := func(field, label string) Field {
		return Field{Name: field, Label: label, Kind: Integer, Required: true, Tag: "gt=0",
			Message: label + " must be a positive integer"}
	}
	now := func(t time.Time) any { return t }
	constant := func(s string) func(time.Time) any { return func(time.Time) any { return s } }

	appointmentDate := Field{Name: "date", Label: "date", Kind: Date, Required: true, Tag: tagNotPast}
	if o.BusinessHours != nil {
		appointmentDate.Tag += "," + tagBusinessHours
	}

	return &Schemas{
		Patient: newSchema("patient", v, o,
			name("firstName", "first name"),
			name("lastName", "last name"),
			email,
			phone,
			Field{Name: "dateOfBirth", Label: "date of birth", Kind: Date, Required: true, Tag: tagNotFuture},
			Field{Name: "address", Label: "address", Kind: String, Required: true, Tag: "min=5,max=255"},
			Field{Name: "medicalHistory", Label: "medical history", Kind: String, Nullable: true, Tag: "max=1000"},
		),
		Practitioner: newSchema("practitioner", v, o,
			name("firstName", "first name"),
			name("lastName", "last name"),
			email,
			phone,
			Field{Name: "specialty", Label: "specialty", Kind: String, Required: true, Tag: oneOf(Specialties)},
			Field{Name: "licenseNumber", Label: "license number", Kind: String, Required: true, Tag: "alphanum,min=8,max=20",
				Message: "license number must be 8 to 20 alphanumeric characters"},
			Field{Name: "experience", Label: "experience", Kind: Integer, Required: true, Tag: "min=0,max=50"},
		),
		Appointment: newSchema("appointment", v, o,
			id("patientId", "patient id"),
			id("practitionerId", "practitioner id"),
			appointmentDate,
			Field{Name: "motif", Label: "motif", Kind: String, Required: true, Tag: "min=5,max=255"},
			Field{Name: "status", Label: "status", Kind: String, Default: constant(StatusScheduled),
				Tag: oneOf([]string{StatusScheduled, StatusCompleted, StatusCancelled})},
			Field{Name: "notes", Label: "notes", Kind: String, Nullable: true, Tag: "max=500"},
		),
		Bill: newSchema("bill", v, o,
			id("patientId", "patient id"),
			id("appointmentId", "appointment id"),
			Field{Name: "amount", Label: "amount", Kind: Number, Required: true, Tag: "gt=0,lte=9999.99," + tagDecimals + "=2"},
			Field{Name: "currency", Label: "currency", Kind: String, Default: constant("EUR"), Tag: oneOf(Currencies)},
			Field{Name: "date", Label: "date", Kind: Date, Default: now, Tag: tagNotFuture},
			Field{Name: "status", Label: "status", Kind: String, Default: constant(BillPending),
				Tag: oneOf([]string{BillPending, BillPaid, BillCancelled})},
			Field{Name: "description", Label: "description", Kind: String, Required: true, Tag: "min=5,max=1000"},
		),
	}
}

func oneOf(values []string) string {
	tag := "oneof="
	for i, v := range values {
		if i > 0 {
			tag += " "
		}
		tag += v
	}
	return tag
}
