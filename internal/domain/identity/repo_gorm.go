package identity

import (
	"context"

	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

func checked(db *gorm.DB, schema *validation.Schema) *gorm.DB {
	if schema == nil {
		return db
	}
	return ormdb.WithChecker(db, schema)
}

// deleteByID removes one row of model's table, reporting a missing row as
// store.ErrNotFound.
func deleteByID(ctx context.Context, db *gorm.DB, model any, id int64) error {
	res := db.WithContext(ctx).Delete(model, id)
	if res.Error != nil {
		return ormdb.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func updateAll(ctx context.Context, db *gorm.DB, model any) error {
	res := db.WithContext(ctx).Select("*").Omit("created_at").Updates(model)
	if res.Error != nil {
		return ormdb.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// =========== Patient Repository ===========

type patientRepoGorm struct{ db *gorm.DB }

func NewPatientRepoGorm(db *gorm.DB, schema *validation.Schema) PatientRepository {
	return &patientRepoGorm{db: checked(db, schema)}
}

func (r *patientRepoGorm) Create(ctx context.Context, p *Patient) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return ormdb.TranslateError(err)
	}
	p.Appointments = []AppointmentSummary{}
	return nil
}

func (r *patientRepoGorm) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	if err := r.attach(ctx, []*Patient{&p}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoGorm) Update(ctx context.Context, p *Patient) error {
	if err := updateAll(ctx, r.db, p); err != nil {
		return err
	}
	return r.reload(ctx, p)
}

// reload refreshes the timestamps and summaries after an update.
func (r *patientRepoGorm) reload(ctx context.Context, p *Patient) error {
	stored, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r *patientRepoGorm) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, &Patient{}, id)
}

func (r *patientRepoGorm) List(ctx context.Context) ([]*Patient, error) {
	items := []*Patient{}
	if err := r.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	if err := r.attach(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *patientRepoGorm) attach(ctx context.Context, patients []*Patient) error {
	if len(patients) == 0 {
		return nil
	}
	byID := make(map[int64]*Patient, len(patients))
	ids := make([]int64, 0, len(patients))
	for _, p := range patients {
		p.Appointments = []AppointmentSummary{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	var summaries []AppointmentSummary
	if err := summaryQuery(r.db.WithContext(ctx), ids).Find(&summaries).Error; err != nil {
		return ormdb.TranslateError(err)
	}
	for _, s := range summaries {
		if p := byID[s.PatientID]; p != nil {
			p.Appointments = append(p.Appointments, s)
		}
	}
	return nil
}

func summaryQuery(tx *gorm.DB, patientIDs []int64) *gorm.DB {
	return tx.Table("appointments").
		Select("id, patient_id, date, motif, status").
		Where("patient_id IN ?", patientIDs).
		Order("date").Order("id")
}

// =========== Practitioner Repository ===========

type practitionerRepoGorm struct{ db *gorm.DB }

func NewPractitionerRepoGorm(db *gorm.DB, schema *validation.Schema) PractitionerRepository {
	return &practitionerRepoGorm{db: checked(db, schema)}
}

func (r *practitionerRepoGorm) Create(ctx context.Context, p *Practitioner) error {
	return ormdb.TranslateError(r.db.WithContext(ctx).Create(p).Error)
}

func (r *practitionerRepoGorm) GetByID(ctx context.Context, id int64) (*Practitioner, error) {
	var p Practitioner
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	return &p, nil
}

func (r *practitionerRepoGorm) Update(ctx context.Context, p *Practitioner) error {
	if err := updateAll(ctx, r.db, p); err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r *practitionerRepoGorm) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, &Practitioner{}, id)
}

func (r *practitionerRepoGorm) List(ctx context.Context, f PractitionerFilter) ([]*Practitioner, error) {
	items := []*Practitioner{}
	if err := practitionerQuery(r.db.WithContext(ctx), f).Find(&items).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	return items, nil
}

func practitionerQuery(tx *gorm.DB, f PractitionerFilter) *gorm.DB {
	q := tx.Model(&Practitioner{})
	if f.Specialty != "" {
		q = q.Where("specialty = ?", f.Specialty)
	}
	return q.Order(practitionerOrder(f.SortBy))
}
