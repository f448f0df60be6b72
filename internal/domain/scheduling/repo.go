package scheduling

import (
	"context"
	"time"
)

// Guard runs inside a write transaction, after the practitioner row is
// locked and before the appointment is written. q reads through the same
// transaction. A non-nil error aborts the write.
type Guard func(ctx context.Context, q WindowQuerier) error

// Filter narrows List. Zero fields match everything; date bounds are inclusive.
type Filter struct {
	Status string
	From   *time.Time
	To     *time.Time
}

// AppointmentRepository is implemented by the pgx and gorm stores. Reads
// attach the patient and practitioner summaries.
type AppointmentRepository interface {
	WindowQuerier
	Create(ctx context.Context, a *Appointment, guard Guard) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment, guard Guard) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	// ListByPatient and ListByPractitioner return store.ErrNotFound when
	// the owner does not exist.
	ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error)
	ListByPractitioner(ctx context.Context, practitionerID int64) ([]*Appointment, error)
}
