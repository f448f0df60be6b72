package identity

import (
	"context"

	"github.com/docteurlibre/med-api/internal/validation"
)

type Service struct {
	patients      PatientRepository
	practitioners PractitionerRepository
	schemas       *validation.Schemas
}

func NewService(patients PatientRepository, practitioners PractitionerRepository, schemas *validation.Schemas) *Service {
	return &Service{patients: patients, practitioners: practitioners, schemas: schemas}
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, in validation.Input) (*Patient, error) {
	rec, err := s.schemas.Patient.Validate(in)
	if err != nil {
		return nil, err
	}
	p := patientFromRecord(rec)
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, in validation.Input) (*Patient, error) {
	rec, err := s.schemas.Patient.Validate(in)
	if err != nil {
		return nil, err
	}
	p := patientFromRecord(rec)
	p.ID = id
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]*Patient, error) {
	return s.patients.List(ctx)
}

// -- Practitioner --

func (s *Service) CreatePractitioner(ctx context.Context, in validation.Input) (*Practitioner, error) {
	rec, err := s.schemas.Practitioner.Validate(in)
	if err != nil {
		return nil, err
	}
	p := practitionerFromRecord(rec)
	if err := s.practitioners.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPractitioner(ctx context.Context, id int64) (*Practitioner, error) {
	return s.practitioners.GetByID(ctx, id)
}

func (s *Service) UpdatePractitioner(ctx context.Context, id int64, in validation.Input) (*Practitioner, error) {
	rec, err := s.schemas.Practitioner.Validate(in)
	if err != nil {
		return nil, err
	}
	p := practitionerFromRecord(rec)
	p.ID = id
	if err := s.practitioners.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePractitioner(ctx context.Context, id int64) error {
	return s.practitioners.Delete(ctx, id)
}

func (s *Service) ListPractitioners(ctx context.Context, f PractitionerFilter) ([]*Practitioner, error) {
	return s.practitioners.List(ctx, f)
}
