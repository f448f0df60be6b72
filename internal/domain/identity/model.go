package identity

import (
	"time"

	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/validation"
)

// =========== Patient ===========

type Patient struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName      string    `gorm:"size:50;not null" json:"firstName"`
	LastName       string    `gorm:"size:50;not null" json:"lastName"`
	Email          string    `gorm:"size:255;not null;uniqueIndex:idx_patients_email" json:"email"`
	Phone          string    `gorm:"size:20;not null" json:"phone"`
	DateOfBirth    time.Time `gorm:"type:date;not null" json:"dateOfBirth"`
	Address        string    `gorm:"size:255;not null" json:"address"`
	MedicalHistory *string   `gorm:"size:1000" json:"medicalHistory"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	Appointments []AppointmentSummary `gorm:"-" json:"appointments"`
}

func (Patient) TableName() string { return "patients" }

// AppointmentSummary is the appointment view embedded in patient responses.
type AppointmentSummary struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"-"`
	Date      time.Time `json:"date"`
	Motif     string    `json:"motif"`
	Status    string    `json:"status"`
}

func (p *Patient) Fields() validation.Input {
	return validation.Input{
		"firstName":      p.FirstName,
		"lastName":       p.LastName,
		"email":          p.Email,
		"phone":          p.Phone,
		"dateOfBirth":    dayField(p.DateOfBirth),
		"address":        p.Address,
		"medicalHistory": p.MedicalHistory,
	}
}

// dayField renders a stored calendar day as YYYY-MM-DD so the schema reads it
// back as that day in its own zone.
func dayField(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.DateOnly)
}

func (p *Patient) BeforeSave(tx *gorm.DB) error {
	return ormdb.RunChecker(tx, p.Fields())
}

func patientFromRecord(r validation.Record) *Patient {
	return &Patient{
		FirstName:      r.String("firstName"),
		LastName:       r.String("lastName"),
		Email:          r.String("email"),
		Phone:          r.String("phone"),
		DateOfBirth:    r.Day("dateOfBirth"),
		Address:        r.String("address"),
		MedicalHistory: r.OptString("medicalHistory"),
	}
}

// =========== Practitioner ===========

type Practitioner struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName     string    `gorm:"size:50;not null" json:"firstName"`
	LastName      string    `gorm:"size:50;not null" json:"lastName"`
	Email         string    `gorm:"size:255;not null;uniqueIndex:idx_practitioners_email" json:"email"`
	Phone         string    `gorm:"size:20;not null" json:"phone"`
	Specialty     string    `gorm:"size:30;not null;check:chk_practitioners_specialty,specialty IN ('cardiologue','dermatologue','generaliste','pediatre','psychiatre','ophtalmologue')" json:"specialty"`
	LicenseNumber string    `gorm:"size:20;not null;uniqueIndex:idx_practitioners_license_number" json:"licenseNumber"`
	Experience    int       `gorm:"not null;check:chk_practitioners_experience,experience BETWEEN 0 AND 50" json:"experience"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Practitioner) TableName() string { return "practitioners" }

func (p *Practitioner) Fields() validation.Input {
	return validation.Input{
		"firstName":     p.FirstName,
		"lastName":      p.LastName,
		"email":         p.Email,
		"phone":         p.Phone,
		"specialty":     p.Specialty,
		"licenseNumber": p.LicenseNumber,
		"experience":    p.Experience,
	}
}

func (p *Practitioner) BeforeSave(tx *gorm.DB) error {
	return ormdb.RunChecker(tx, p.Fields())
}

func practitionerFromRecord(r validation.Record) *Practitioner {
	return &Practitioner{
		FirstName:     r.String("firstName"),
		LastName:      r.String("lastName"),
		Email:         r.String("email"),
		Phone:         r.String("phone"),
		Specialty:     r.String("specialty"),
		LicenseNumber: r.String("licenseNumber"),
		Experience:    int(r.Int("experience")),
	}
}

// GormSchema describes the patients and practitioners tables for AutoMigrate.
func GormSchema() ormdb.Schema {
	return ormdb.Schema{Models: []any{&Patient{}, &Practitioner{}}}
}
