package billing

import (
	"time"

	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/validation"
)

// Bill invoices exactly one appointment.
type Bill struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PatientID     int64     `gorm:"not null;index:idx_bills_patient" json:"patientId"`
	AppointmentID int64     `gorm:"not null;uniqueIndex:idx_bills_appointment" json:"appointmentId"`
	Amount        float64   `gorm:"type:decimal(10,2);not null;check:chk_bills_amount,amount > 0 AND amount <= 9999.99" json:"amount"`
	Currency      string    `gorm:"size:3;not null;default:EUR;check:chk_bills_currency,currency IN ('EUR','USD','GBP')" json:"currency"`
	Date          time.Time `gorm:"not null" json:"date"`
	Status        string    `gorm:"size:20;not null;default:pending;check:chk_bills_status,status IN ('pending','paid','cancelled')" json:"status"`
	Description   string    `gorm:"size:1000;not null" json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Patient     *PatientRef     `gorm:"-" json:"patient,omitempty"`
	Appointment *AppointmentRef `gorm:"-" json:"appointment,omitempty"`
}

func (Bill) TableName() string { return "bills" }

type PatientRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type AppointmentRef struct {
	ID    int64     `json:"id"`
	Date  time.Time `json:"date"`
	Motif string    `json:"motif"`
}

func (b *Bill) Fields() validation.Input {
	return validation.Input{
		"patientId":     b.PatientID,
		"appointmentId": b.AppointmentID,
		"amount":        b.Amount,
		"currency":      b.Currency,
		"date":          b.Date,
		"status":        b.Status,
		"description":   b.Description,
	}
}

func (b *Bill) BeforeSave(tx *gorm.DB) error {
	return ormdb.RunChecker(tx, b.Fields())
}

func fromRecord(r validation.Record) *Bill {
	return &Bill{
		PatientID:     r.Int("patientId"),
		AppointmentID: r.Int("appointmentId"),
		Amount:        r.Float("amount"),
		Currency:      r.String("currency"),
		Date:          r.Time("date").UTC(),
		Status:        r.String("status"),
		Description:   r.String("description"),
	}
}

// GormSchema describes the bills table for AutoMigrate.
func GormSchema() ormdb.Schema {
	return ormdb.Schema{
		Models: []any{&Bill{}},
		ForeignKeys: []ormdb.ForeignKey{
			{Name: "fk_bills_patient", Table: "bills", Column: "patient_id", RefTable: "patients", RefColumn: "id"},
			{Name: "fk_bills_appointment", Table: "bills", Column: "appointment_id", RefTable: "appointments", RefColumn: "id"},
		},
	}
}
