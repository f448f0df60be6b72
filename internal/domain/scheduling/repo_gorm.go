package scheduling

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

type appointmentRepoGorm struct{ db *gorm.DB }

// NewAppointmentRepoGorm returns the gorm store. A non-nil schema is run by
// the model's BeforeSave hook.
func NewAppointmentRepoGorm(db *gorm.DB, schema *validation.Schema) AppointmentRepository {
	if schema != nil {
		db = ormdb.WithChecker(db, schema)
	}
	return &appointmentRepoGorm{db: db}
}

type gormWindow struct{ tx *gorm.DB }

func windowQuery(tx *gorm.DB, practitionerID int64, from, to time.Time, excludeID int64) *gorm.DB {
	q := tx.Model(&Appointment{}).
		Where("practitioner_id = ? AND date BETWEEN ? AND ? AND status <> ?",
			practitionerID, from, to, validation.StatusCancelled)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	return q.Order("date").Limit(1)
}

func (w gormWindow) FindActiveInWindow(ctx context.Context, practitionerID int64, from, to time.Time, excludeID int64) (*Appointment, error) {
	var found []Appointment
	if err := windowQuery(w.tx.WithContext(ctx), practitionerID, from, to, excludeID).Find(&found).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *appointmentRepoGorm) FindActiveInWindow(ctx context.Context, practitionerID int64, from, to time.Time, excludeID int64) (*Appointment, error) {
	return gormWindow{tx: r.db}.FindActiveInWindow(ctx, practitionerID, from, to, excludeID)
}

func practitionerLock(tx *gorm.DB, practitionerID int64, ids *[]int64) *gorm.DB {
	return tx.Table("practitioners").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", practitionerID).
		Pluck("id", ids)
}

func lockPractitionerGorm(tx *gorm.DB, practitionerID int64) error {
	var ids []int64
	if err := practitionerLock(tx, practitionerID, &ids).Error; err != nil {
		return ormdb.TranslateError(err)
	}
	if len(ids) == 0 {
		return &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_appointments_practitioner"}
	}
	return nil
}

func (r *appointmentRepoGorm) guarded(ctx context.Context, a *Appointment, guard Guard, write func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPractitionerGorm(tx, a.PractitionerID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, gormWindow{tx: tx}); err != nil {
				return err
			}
		}
		return write(tx)
	})
	return ormdb.TranslateError(err)
}

func (r *appointmentRepoGorm) Create(ctx context.Context, a *Appointment, guard Guard) error {
	return r.guarded(ctx, a, guard, func(tx *gorm.DB) error {
		return ormdb.TranslateError(tx.Create(a).Error)
	})
}

func (r *appointmentRepoGorm) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	var a Appointment
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	items := []*Appointment{&a}
	if err := r.attach(ctx, items); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoGorm) Update(ctx context.Context, a *Appointment, guard Guard) error {
	return r.guarded(ctx, a, guard, func(tx *gorm.DB) error {
		res := tx.Select("*").Omit("created_at").Updates(a)
		if res.Error != nil {
			return ormdb.TranslateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (r *appointmentRepoGorm) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Appointment{}, id)
	if res.Error != nil {
		return ormdb.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoGorm) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	q := r.db.WithContext(ctx).Model(&Appointment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	return r.find(ctx, q)
}

func (r *appointmentRepoGorm) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	if err := r.exists(ctx, "patients", patientID); err != nil {
		return nil, err
	}
	return r.find(ctx, r.db.WithContext(ctx).Where("patient_id = ?", patientID))
}

func (r *appointmentRepoGorm) ListByPractitioner(ctx context.Context, practitionerID int64) ([]*Appointment, error) {
	if err := r.exists(ctx, "practitioners", practitionerID); err != nil {
		return nil, err
	}
	return r.find(ctx, r.db.WithContext(ctx).Where("practitioner_id = ?", practitionerID))
}

func (r *appointmentRepoGorm) exists(ctx context.Context, table string, id int64) error {
	var n int64
	if err := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return ormdb.TranslateError(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoGorm) find(ctx context.Context, q *gorm.DB) ([]*Appointment, error) {
	items := []*Appointment{}
	if err := q.Order("date").Order("id").Find(&items).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	if err := r.attach(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// attach loads the patient and practitioner summaries of items in two queries.
func (r *appointmentRepoGorm) attach(ctx context.Context, items []*Appointment) error {
	if len(items) == 0 {
		return nil
	}
	patientIDs := make([]int64, 0, len(items))
	practitionerIDs := make([]int64, 0, len(items))
	for _, a := range items {
		patientIDs = append(patientIDs, a.PatientID)
		practitionerIDs = append(practitionerIDs, a.PractitionerID)
	}

	var patients []PatientRef
	if err := r.db.WithContext(ctx).Table("patients").
		Select("id, first_name, last_name").
		Where("id IN ?", patientIDs).
		Find(&patients).Error; err != nil {
		return ormdb.TranslateError(err)
	}
	var practitioners []PractitionerRef
	if err := r.db.WithContext(ctx).Table("practitioners").
		Select("id, first_name, last_name, specialty").
		Where("id IN ?", practitionerIDs).
		Find(&practitioners).Error; err != nil {
		return ormdb.TranslateError(err)
	}

	pats := make(map[int64]*PatientRef, len(patients))
	for i := range patients {
		pats[patients[i].ID] = &patients[i]
	}
	pracs := make(map[int64]*PractitionerRef, len(practitioners))
	for i := range practitioners {
		pracs[practitioners[i].ID] = &practitioners[i]
	}
	for _, a := range items {
		a.Patient = pats[a.PatientID]
		a.Practitioner = pracs[a.PractitionerID]
	}
	return nil
}

