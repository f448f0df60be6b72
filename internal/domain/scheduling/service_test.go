package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

var fixedNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

func newTestSchemas() *validation.Schemas {
	return validation.NewSchemas(validation.Options{
		Now:           func() time.Time { return fixedNow },
		Location:      time.UTC,
		BusinessHours: &validation.HourRange{Open: 8, Close: 18},
	})
}

// -- Mock Repository --

type mockAppointmentRepo struct {
	mu            sync.Mutex
	store         map[int64]*Appointment
	nextID        int64
	patients      map[int64]bool
	practitioners map[int64]bool

	// beforeGuard runs inside the write, before the guard, to simulate a
	// booking committed by a concurrent request.
	beforeGuard func(r *mockAppointmentRepo)
	writeErr    error
	deleteErr   error
	guardCalls  int
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{
		store:         make(map[int64]*Appointment),
		patients:      map[int64]bool{1: true, 2: true},
		practitioners: map[int64]bool{7: true, 8: true},
	}
}

func (m *mockAppointmentRepo) seed(a Appointment) *Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.store[a.ID] = &a
	return &a
}

func (m *mockAppointmentRepo) snapshot() sliceWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(sliceWindow, 0, len(m.store))
	for _, a := range m.store {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

func (m *mockAppointmentRepo) FindActiveInWindow(ctx context.Context, practitionerID int64, from, to time.Time, excludeID int64) (*Appointment, error) {
	return m.snapshot().FindActiveInWindow(ctx, practitionerID, from, to, excludeID)
}

func (m *mockAppointmentRepo) write(ctx context.Context, a *Appointment, guard Guard) error {
	if !m.practitioners[a.PractitionerID] {
		return &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_appointments_practitioner"}
	}
	if !m.patients[a.PatientID] {
		return &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_appointments_patient"}
	}
	if m.beforeGuard != nil {
		m.beforeGuard(m)
	}
	if guard != nil {
		m.guardCalls++
		if err := guard(ctx, m); err != nil {
			return err
		}
	}
	return m.writeErr
}

func (m *mockAppointmentRepo) Create(ctx context.Context, a *Appointment, guard Guard) error {
	if err := m.write(ctx, a, guard); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = fixedNow
	a.UpdatedAt = fixedNow
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.withRefs(a), nil
}

func (m *mockAppointmentRepo) withRefs(a *Appointment) *Appointment {
	cp := *a
	cp.Patient = &PatientRef{ID: a.PatientID, FirstName: "Marie", LastName: "Curie"}
	cp.Practitioner = &PractitionerRef{ID: a.PractitionerID, FirstName: "Louis", LastName: "Pasteur", Specialty: "generaliste"}
	return &cp
}

func (m *mockAppointmentRepo) Update(ctx context.Context, a *Appointment, guard Guard) error {
	m.mu.Lock()
	_, ok := m.store[a.ID]
	m.mu.Unlock()
	if !ok {
		return store.ErrNotFound
	}
	if err := m.write(ctx, a, guard); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockAppointmentRepo) filter(keep func(*Appointment) bool) []*Appointment {
	items := []*Appointment{}
	for _, a := range m.snapshot() {
		if keep(a) {
			items = append(items, m.withRefs(a))
		}
	}
	sortByDate(items)
	return items
}

func sortByDate(items []*Appointment) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Date.Before(items[j-1].Date); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func (m *mockAppointmentRepo) List(_ context.Context, f Filter) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		if f.From != nil && a.Date.Before(*f.From) {
			return false
		}
		if f.To != nil && a.Date.After(*f.To) {
			return false
		}
		return true
	}), nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID int64) ([]*Appointment, error) {
	if !m.patients[patientID] {
		return nil, store.ErrNotFound
	}
	return m.filter(func(a *Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *mockAppointmentRepo) ListByPractitioner(_ context.Context, practitionerID int64) ([]*Appointment, error) {
	if !m.practitioners[practitionerID] {
		return nil, store.ErrNotFound
	}
	return m.filter(func(a *Appointment) bool { return a.PractitionerID == practitionerID }), nil
}

// -- Helpers --

func newTestService(repo *mockAppointmentRepo) *Service {
	return NewService(repo, newTestSchemas().Appointment, NewConflictChecker(DefaultWindow), zerolog.Nop())
}

func apptInput(practitionerID int64, hhmm string) validation.Input {
	return validation.Input{
		"patientId":      1,
		"practitionerId": practitionerID,
		"date":           "2025-06-01T" + hhmm + ":00Z",
		"motif":          "Consultation de suivi",
	}
}

// -- Tests --

func TestService_CreateAppointment(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := newTestService(repo)

	a, err := svc.CreateAppointment(context.Background(), apptInput(7, "10:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if a.Status != validation.StatusScheduled {
		t.Errorf("expected default status scheduled, got %q", a.Status)
	}
	if a.Notes != nil {
		t.Errorf("expected nil notes, got %q", *a.Notes)
	}
	if a.Practitioner == nil || a.Practitioner.ID != 7 {
		t.Errorf("expected practitioner summary, got %+v", a.Practitioner)
	}
	if repo.guardCalls != 1 {
		t.Errorf("expected the guard to run once, ran %d times", repo.guardCalls)
	}
}

func TestService_CreateAppointment_ZonelessDateInConfiguredZone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	schemas := validation.NewSchemas(validation.Options{
		Now:           func() time.Time { return fixedNow },
		Location:      paris,
		BusinessHours: &validation.HourRange{Open: 8, Close: 18},
	})
	repo := newMockAppointmentRepo()
	svc := NewService(repo, schemas.Appointment, NewConflictChecker(DefaultWindow), zerolog.Nop())

	in := apptInput(7, "10:30")
	in["date"] = "2025-06-01T10:30:00"
	a, err := svc.CreateAppointment(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	if !a.Date.Equal(want) {
		t.Errorf("expected %v, got %v", want, a.Date)
	}
	if a.Date.Location() != time.UTC {
		t.Errorf("expected the stored date in UTC, got %v", a.Date.Location())
	}

	// 18:30 Paris is 16:30 UTC: outside business hours in the practice's zone.
	in["date"] = "2025-06-01T18:30:00"
	_, err = svc.CreateAppointment(context.Background(), in)
	if ve, ok := validation.AsError(err); !ok || ve.Fields()[0] != "date" {
		t.Errorf("expected a date violation, got %v", err)
	}
}

func TestService_CreateAppointment_ConflictWindow(t *testing.T) {
	repo := newMockAppointmentRepo()
	existing := repo.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("10:00"), Motif: "Bilan sanguin", Status: validation.StatusScheduled})
	svc := newTestService(repo)

	_, err := svc.CreateAppointment(context.Background(), apptInput(7, "10:25"))
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError at 10:25, got %v", err)
	}
	if ce.AppointmentID != existing.ID {
		t.Errorf("expected blocking appointment %d, got %d", existing.ID, ce.AppointmentID)
	}

	if _, err := svc.CreateAppointment(context.Background(), apptInput(7, "10:35")); err != nil {
		t.Fatalf("expected 10:35 to be accepted, got %v", err)
	}
	if _, err := svc.CreateAppointment(context.Background(), apptInput(8, "10:00")); err != nil {
		t.Fatalf("expected another practitioner to be free, got %v", err)
	}
}

func TestService_CreateAppointment_CancelledDoesNotBlock(t *testing.T) {
	repo := newMockAppointmentRepo()
	repo.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("10:00"), Motif: "Bilan sanguin", Status: validation.StatusCancelled})
	svc := newTestService(repo)

	if _, err := svc.CreateAppointment(context.Background(), apptInput(7, "10:10")); err != nil {
		t.Fatalf("expected cancelled appointment not to block, got %v", err)
	}
}

func TestService_CreateAppointment_CancelledSkipsCheck(t *testing.T) {
	repo := newMockAppointmentRepo()
	repo.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("10:00"), Motif: "Bilan sanguin", Status: validation.StatusScheduled})
	svc := newTestService(repo)

	in := apptInput(7, "10:00")
	in["status"] = validation.StatusCancelled
	if _, err := svc.CreateAppointment(context.Background(), in); err != nil {
		t.Fatalf("expected a cancelled booking never to conflict, got %v", err)
	}
	if repo.guardCalls != 0 {
		t.Errorf("expected no guard for a cancelled booking, ran %d times", repo.guardCalls)
	}
}

func TestService_CreateAppointment_ValidationFailure(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := newTestService(repo)

	_, err := svc.CreateAppointment(context.Background(), validation.Input{
		"patientId": 0,
		"date":      "2025-06-01T19:00:00Z",
		"motif":     "abc",
	})
	ve, ok := validation.AsError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"patientId", "practitionerId", "date", "motif"}
	got := ve.Fields()
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if len(repo.store) != 0 {
		t.Error("expected nothing to be written")
	}
}

func TestService_CreateAppointment_RaceLost(t *testing.T) {
	repo := newMockAppointmentRepo()
	var winner *Appointment
	repo.beforeGuard = func(r *mockAppointmentRepo) {
		winner = r.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("10:15"), Motif: "Urgence", Status: validation.StatusScheduled})
	}
	svc := newTestService(repo)

	_, err := svc.CreateAppointment(context.Background(), apptInput(7, "10:00"))
	var lost *RaceLostError
	if !errors.As(err, &lost) {
		t.Fatalf("expected RaceLostError, got %v", err)
	}
	if lost.ConflictingAppointmentID != winner.ID {
		t.Errorf("expected winner %d, got %d", winner.ID, lost.ConflictingAppointmentID)
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		t.Error("a lost race must not be reported as a plain conflict")
	}
	if len(repo.store) != 1 {
		t.Errorf("expected only the winning appointment, got %d", len(repo.store))
	}
}

func TestService_CreateAppointment_RetryableStoreError(t *testing.T) {
	repo := newMockAppointmentRepo()
	repo.writeErr = store.Retryable(errors.New("deadlock detected"))
	svc := newTestService(repo)

	_, err := svc.CreateAppointment(context.Background(), apptInput(7, "10:00"))
	if !errors.Is(err, ErrRaceLost) {
		t.Fatalf("expected ErrRaceLost, got %v", err)
	}
	if !errors.Is(err, store.ErrRetryable) {
		t.Error("expected the store cause to be kept")
	}
}

func TestService_UpdateAppointment_SameTimeDoesNotConflictWithItself(t *testing.T) {
	repo := newMockAppointmentRepo()
	cur := repo.seed(Appointment{PatientID: 1, PractitionerID: 7, Date: at("10:00"), Motif: "Consultation de suivi", Status: validation.StatusScheduled})
	svc := newTestService(repo)

	in := apptInput(7, "10:00")
	in["motif"] = "Consultation de contrôle"
	a, err := svc.UpdateAppointment(context.Background(), cur.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Motif != "Consultation de contrôle" {
		t.Errorf("expected motif updated, got %q", a.Motif)
	}
	if repo.guardCalls != 0 {
		t.Errorf("expected no window check for an unmoved booking, ran %d", repo.guardCalls)
	}
}

func TestService_UpdateAppointment_MoveChecksWindowExcludingSelf(t *testing.T) {
	repo := newMockAppointmentRepo()
	cur := repo.seed(Appointment{PatientID: 1, PractitionerID: 7, Date: at("10:00"), Motif: "Consultation de suivi", Status: validation.StatusScheduled})
	other := repo.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("11:00"), Motif: "Bilan sanguin", Status: validation.StatusScheduled})
	svc := newTestService(repo)

	// 10:20 is within 30 minutes of its own old slot only.
	if _, err := svc.UpdateAppointment(context.Background(), cur.ID, apptInput(7, "10:20")); err != nil {
		t.Fatalf("expected own slot to be ignored, got %v", err)
	}

	_, err := svc.UpdateAppointment(context.Background(), cur.ID, apptInput(7, "10:45"))
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.AppointmentID != other.ID {
		t.Fatalf("expected conflict with %d, got %v", other.ID, err)
	}
}

func TestService_UpdateAppointment_CancelNeverConflicts(t *testing.T) {
	repo := newMockAppointmentRepo()
	cur := repo.seed(Appointment{PatientID: 1, PractitionerID: 7, Date: at("10:00"), Motif: "Consultation de suivi", Status: validation.StatusScheduled})
	repo.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("10:40"), Motif: "Bilan sanguin", Status: validation.StatusScheduled})
	svc := newTestService(repo)

	in := apptInput(7, "10:30")
	in["status"] = validation.StatusCancelled
	if _, err := svc.UpdateAppointment(context.Background(), cur.ID, in); err != nil {
		t.Fatalf("expected cancellation to succeed, got %v", err)
	}
}

func TestService_UpdateAppointment_ReactivationIsChecked(t *testing.T) {
	repo := newMockAppointmentRepo()
	cur := repo.seed(Appointment{PatientID: 1, PractitionerID: 7, Date: at("10:00"), Motif: "Consultation de suivi", Status: validation.StatusCancelled})
	repo.seed(Appointment{PatientID: 2, PractitionerID: 7, Date: at("10:10"), Motif: "Bilan sanguin", Status: validation.StatusScheduled})
	svc := newTestService(repo)

	_, err := svc.UpdateAppointment(context.Background(), cur.ID, apptInput(7, "10:00"))
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected reactivation to be checked, got %v", err)
	}
}

func TestService_UpdateAppointment_NotFound(t *testing.T) {
	svc := newTestService(newMockAppointmentRepo())
	_, err := svc.UpdateAppointment(context.Background(), 42, apptInput(7, "10:00"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_UpdateAppointment_ValidatesBeforeLookup(t *testing.T) {
	svc := newTestService(newMockAppointmentRepo())
	_, err := svc.UpdateAppointment(context.Background(), 42, validation.Input{})
	if _, ok := validation.AsError(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_ListByOwner_NotFound(t *testing.T) {
	svc := newTestService(newMockAppointmentRepo())
	if _, err := svc.ListByPatient(context.Background(), 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown patient, got %v", err)
	}
	if _, err := svc.ListByPractitioner(context.Background(), 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown practitioner, got %v", err)
	}
}

func TestMovesBooking(t *testing.T) {
	base := &Appointment{PractitionerID: 7, Date: at("10:00"), Status: validation.StatusScheduled}
	tests := []struct {
		name string
		next Appointment
		want bool
	}{
		{"unchanged", Appointment{PractitionerID: 7, Date: at("10:00")}, false},
		{"same instant other zone", Appointment{PractitionerID: 7, Date: at("10:00").In(time.FixedZone("CEST", 7200))}, false},
		{"new date", Appointment{PractitionerID: 7, Date: at("11:00")}, true},
		{"new practitioner", Appointment{PractitionerID: 8, Date: at("10:00")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := movesBooking(base, &tt.next); got != tt.want {
				t.Errorf("movesBooking() = %v, want %v", got, tt.want)
			}
		})
	}

	cancelled := &Appointment{PractitionerID: 7, Date: at("10:00"), Status: validation.StatusCancelled}
	if !movesBooking(cancelled, base) {
		t.Error("expected reactivation to count as a move")
	}
}
