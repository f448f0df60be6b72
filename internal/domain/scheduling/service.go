package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

type Service struct {
	repo    AppointmentRepository
	schema  *validation.Schema
	checker *ConflictChecker
	log     zerolog.Logger
}

func NewService(repo AppointmentRepository, schema *validation.Schema, checker *ConflictChecker, logger zerolog.Logger) *Service {
	if checker == nil {
		checker = NewConflictChecker(DefaultWindow)
	}
	return &Service{
		repo:    repo,
		schema:  schema,
		checker: checker,
		log:     logger.With().Str("component", "scheduling").Logger(),
	}
}

// Location is the zone used to read zone-less dates.
func (s *Service) Location() *time.Location { return s.schema.Location() }

func (s *Service) CreateAppointment(ctx context.Context, in validation.Input) (*Appointment, error) {
	rec, err := s.schema.Validate(in)
	if err != nil {
		return nil, err
	}
	a := fromRecord(rec)

	var guard Guard
	if a.Active() {
		if err := s.checker.Check(ctx, s.repo, a.PractitionerID, a.Date, 0); err != nil {
			s.logConflict(a, err)
			return nil, err
		}
		guard = s.guard(a)
	}
	if err := s.repo.Create(ctx, a, guard); err != nil {
		return nil, s.writeError(a, err)
	}
	return s.reload(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAppointment replaces the appointment with the validated input. The
// conflict window is checked only when the booking moves: a new date, a new
// practitioner or a cancelled appointment becoming active again.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, in validation.Input) (*Appointment, error) {
	rec, err := s.schema.Validate(in)
	if err != nil {
		return nil, err
	}
	a := fromRecord(rec)
	a.ID = id

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var guard Guard
	if a.Active() && movesBooking(cur, a) {
		if err := s.checker.Check(ctx, s.repo, a.PractitionerID, a.Date, id); err != nil {
			s.logConflict(a, err)
			return nil, err
		}
		guard = s.guard(a)
	}
	if err := s.repo.Update(ctx, a, guard); err != nil {
		return nil, s.writeError(a, err)
	}
	return s.reload(ctx, a)
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]*Appointment, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByPractitioner(ctx context.Context, practitionerID int64) ([]*Appointment, error) {
	return s.repo.ListByPractitioner(ctx, practitionerID)
}

func movesBooking(cur, next *Appointment) bool {
	return !cur.Date.Equal(next.Date) || cur.PractitionerID != next.PractitionerID || !cur.Active()
}

// guard re-runs the window check inside the write transaction. A conflict
// that only shows up there was committed after the pre-check.
func (s *Service) guard(a *Appointment) Guard {
	return func(ctx context.Context, q WindowQuerier) error {
		err := s.checker.Check(ctx, q, a.PractitionerID, a.Date, a.ID)
		var ce *ConflictError
		if errors.As(err, &ce) {
			return &RaceLostError{ConflictingAppointmentID: ce.AppointmentID}
		}
		return err
	}
}

func (s *Service) writeError(a *Appointment, err error) error {
	var lost *RaceLostError
	if !errors.As(err, &lost) && errors.Is(err, store.ErrRetryable) {
		lost = &RaceLostError{Err: err}
		err = lost
	}
	if lost != nil {
		s.log.Warn().
			Int64("practitioner_id", a.PractitionerID).
			Time("date", a.Date).
			Int64("conflicting_appointment_id", lost.ConflictingAppointmentID).
			Msg("appointment booking lost a concurrent race")
	}
	return err
}

func (s *Service) logConflict(a *Appointment, err error) {
	var ce *ConflictError
	if !errors.As(err, &ce) {
		return
	}
	s.log.Warn().
		Int64("practitioner_id", a.PractitionerID).
		Time("date", a.Date).
		Int64("conflicting_appointment_id", ce.AppointmentID).
		Msg("appointment rejected: time conflict")
}

// reload returns the stored appointment with its summaries. The write already
// succeeded, so a failed read falls back to the written value.
func (s *Service) reload(ctx context.Context, a *Appointment) (*Appointment, error) {
	stored, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		s.log.Error().Err(err).Int64("appointment_id", a.ID).Msg("reload appointment after write")
		return a, nil
	}
	return stored, nil
}
