package scheduling

import (
	"time"

	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/validation"
)

// Appointment books one patient with one practitioner at a point in time.
type Appointment struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PatientID      int64     `gorm:"not null;index:idx_appointments_patient" json:"patientId"`
	PractitionerID int64     `gorm:"not null;index:idx_appointments_practitioner_date,priority:1" json:"practitionerId"`
	Date           time.Time `gorm:"not null;index:idx_appointments_practitioner_date,priority:2" json:"date"`
	Motif          string    `gorm:"size:255;not null" json:"motif"`
	Status         string    `gorm:"size:20;not null;default:scheduled;check:chk_appointments_status,status IN ('scheduled','completed','cancelled')" json:"status"`
	Notes          *string   `gorm:"size:500" json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Patient      *PatientRef      `gorm:"-" json:"patient,omitempty"`
	Practitioner *PractitionerRef `gorm:"-" json:"practitioner,omitempty"`
}

func (Appointment) TableName() string { return "appointments" }

// PatientRef is the patient summary embedded in appointment responses.
type PatientRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PractitionerRef is the practitioner summary embedded in appointment responses.
type PractitionerRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Specialty string `json:"specialty"`
}

// Active reports whether the appointment occupies its practitioner's time.
func (a *Appointment) Active() bool {
	return a.Status != validation.StatusCancelled
}

// Fields returns the appointment as a validation input, keyed like the
// request body.
func (a *Appointment) Fields() validation.Input {
	return validation.Input{
		"patientId":      a.PatientID,
		"practitionerId": a.PractitionerID,
		"date":           a.Date,
		"motif":          a.Motif,
		"status":         a.Status,
		"notes":          a.Notes,
	}
}

// BeforeSave re-checks the field rules when the session carries a checker.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	return ormdb.RunChecker(tx, a.Fields())
}

func fromRecord(r validation.Record) *Appointment {
	return &Appointment{
		PatientID:      r.Int("patientId"),
		PractitionerID: r.Int("practitionerId"),
		Date:           r.Time("date").UTC(),
		Motif:          r.String("motif"),
		Status:         r.String("status"),
		Notes:          r.OptString("notes"),
	}
}

// GormSchema describes the appointments table for AutoMigrate.
func GormSchema() ormdb.Schema {
	return ormdb.Schema{
		Models: []any{&Appointment{}},
		ForeignKeys: []ormdb.ForeignKey{
			{Name: "fk_appointments_patient", Table: "appointments", Column: "patient_id", RefTable: "patients", RefColumn: "id"},
			{Name: "fk_appointments_practitioner", Table: "appointments", Column: "practitioner_id", RefTable: "practitioners", RefColumn: "id"},
		},
	}
}
