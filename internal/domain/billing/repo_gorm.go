package billing

import (
	"context"

	"gorm.io/gorm"

	"github.com/docteurlibre/med-api/internal/platform/ormdb"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

type billRepoGorm struct{ db *gorm.DB }

func NewBillRepoGorm(db *gorm.DB, schema *validation.Schema) BillRepository {
	if schema != nil {
		db = ormdb.WithChecker(db, schema)
	}
	return &billRepoGorm{db: db}
}

func (r *billRepoGorm) Create(ctx context.Context, b *Bill) error {
	return ormdb.TranslateError(r.db.WithContext(ctx).Create(b).Error)
}

func (r *billRepoGorm) GetByID(ctx context.Context, id int64) (*Bill, error) {
	var b Bill
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	if err := r.attach(ctx, []*Bill{&b}); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *billRepoGorm) Update(ctx context.Context, b *Bill) error {
	res := r.db.WithContext(ctx).Select("*").Omit("created_at").Updates(b)
	if res.Error != nil {
		return ormdb.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *billRepoGorm) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&Bill{}, id)
	if res.Error != nil {
		return ormdb.TranslateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *billRepoGorm) List(ctx context.Context) ([]*Bill, error) {
	items := []*Bill{}
	if err := r.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, ormdb.TranslateError(err)
	}
	if err := r.attach(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *billRepoGorm) attach(ctx context.Context, bills []*Bill) error {
	if len(bills) == 0 {
		return nil
	}
	patientIDs := make([]int64, 0, len(bills))
	appointmentIDs := make([]int64, 0, len(bills))
	for _, b := range bills {
		patientIDs = append(patientIDs, b.PatientID)
		appointmentIDs = append(appointmentIDs, b.AppointmentID)
	}

	var patients []PatientRef
	if err := r.db.WithContext(ctx).Table("patients").
		Select("id, first_name, last_name").
		Where("id IN ?", patientIDs).
		Find(&patients).Error; err != nil {
		return ormdb.TranslateError(err)
	}
	var appointments []AppointmentRef
	if err := r.db.WithContext(ctx).Table("appointments").
		Select("id, date, motif").
		Where("id IN ?", appointmentIDs).
		Find(&appointments).Error; err != nil {
		return ormdb.TranslateError(err)
	}

	pats := make(map[int64]*PatientRef, len(patients))
	for i := range patients {
		pats[patients[i].ID] = &patients[i]
	}
	appts := make(map[int64]*AppointmentRef, len(appointments))
	for i := range appointments {
		appts[appointments[i].ID] = &appointments[i]
	}
	for _, b := range bills {
		b.Patient = pats[b.PatientID]
		b.Appointment = appts[b.AppointmentID]
	}
	return nil
}
