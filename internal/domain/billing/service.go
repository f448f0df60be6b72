package billing

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/docteurlibre/med-api/internal/domain/scheduling"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

// AppointmentLookup is satisfied by *scheduling.Service.
type AppointmentLookup interface {
	GetAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
}

type Service struct {
	bills        BillRepository
	appointments AppointmentLookup
	schema       *validation.Schema
	log          zerolog.Logger
}

func NewService(bills BillRepository, appointments AppointmentLookup, schema *validation.Schema, logger zerolog.Logger) *Service {
	return &Service{
		bills:        bills,
		appointments: appointments,
		schema:       schema,
		log:          logger.With().Str("component", "billing").Logger(),
	}
}

func (s *Service) CreateBill(ctx context.Context, in validation.Input) (*Bill, error) {
	rec, err := s.schema.Validate(in)
	if err != nil {
		return nil, err
	}
	b := fromRecord(rec)
	if err := s.checkAppointment(ctx, b); err != nil {
		return nil, err
	}
	if err := s.bills.Create(ctx, b); err != nil {
		return nil, err
	}
	return s.reload(ctx, b)
}

func (s *Service) GetBill(ctx context.Context, id int64) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) UpdateBill(ctx context.Context, id int64, in validation.Input) (*Bill, error) {
	rec, err := s.schema.Validate(in)
	if err != nil {
		return nil, err
	}
	b := fromRecord(rec)
	b.ID = id
	if _, err := s.bills.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.checkAppointment(ctx, b); err != nil {
		return nil, err
	}
	if err := s.bills.Update(ctx, b); err != nil {
		return nil, err
	}
	return s.reload(ctx, b)
}

func (s *Service) DeleteBill(ctx context.Context, id int64) error {
	return s.bills.Delete(ctx, id)
}

func (s *Service) ListBills(ctx context.Context) ([]*Bill, error) {
	return s.bills.List(ctx)
}

// checkAppointment requires the billed appointment to exist and to belong to
// the billed patient.
func (s *Service) checkAppointment(ctx context.Context, b *Bill) error {
	appt, err := s.appointments.GetAppointment(ctx, b.AppointmentID)
	if errors.Is(err, store.ErrNotFound) {
		return validation.Fail("bill", "appointmentId", "Appointment not found")
	}
	if err != nil {
		return err
	}
	if appt.PatientID != b.PatientID {
		return validation.Fail("bill", "patientId", "patient id must match the appointment's patient")
	}
	return nil
}

// reload returns the stored bill with its summaries, or the written value when
// the read fails.
func (s *Service) reload(ctx context.Context, b *Bill) (*Bill, error) {
	stored, err := s.bills.GetByID(ctx, b.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("bill_id", b.ID).Msg("reload bill after write")
		return b, nil
	}
	return stored, nil
}
