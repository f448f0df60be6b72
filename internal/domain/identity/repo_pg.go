package identity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docteurlibre/med-api/internal/platform/db"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

// =========== Patient Repository ===========

type patientRepoPG struct {
	pool   *pgxpool.Pool
	schema *validation.Schema
}

func NewPatientRepoPG(pool *pgxpool.Pool, schema *validation.Schema) PatientRepository {
	return &patientRepoPG{pool: pool, schema: schema}
}

const patientCols = `id, first_name, last_name, email, phone, date_of_birth, address,
	medical_history, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DateOfBirth, &p.Address,
		&p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Appointments = []AppointmentSummary{}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if r.schema != nil {
		if err := r.schema.Check(p.Fields()); err != nil {
			return err
		}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, email, phone, date_of_birth, address, medical_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Address, p.MedicalHistory).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.TranslateError(err)
	}
	p.Appointments = []AppointmentSummary{}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err)
	}
	if err := r.attach(ctx, []*Patient{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	if r.schema != nil {
		if err := r.schema.Check(p.Fields()); err != nil {
			return err
		}
	}
	err := r.pool.QueryRow(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, email = $4, phone = $5,
			date_of_birth = $6, address = $7, medical_history = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.DateOfBirth, p.Address, p.MedicalHistory).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.TranslateError(err)
	}
	return r.attach(ctx, []*Patient{p})
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY id`)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	items := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, db.TranslateError(err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.TranslateError(err)
	}
	if err := r.attach(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// attach loads the appointment summaries of patients in one query.
func (r *patientRepoPG) attach(ctx context.Context, patients []*Patient) error {
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

	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, date, motif, status FROM appointments
		WHERE patient_id = ANY($1) ORDER BY date, id`, ids)
	if err != nil {
		return db.TranslateError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var s AppointmentSummary
		if err := rows.Scan(&s.ID, &s.PatientID, &s.Date, &s.Motif, &s.Status); err != nil {
			return db.TranslateError(err)
		}
		if p := byID[s.PatientID]; p != nil {
			p.Appointments = append(p.Appointments, s)
		}
	}
	return db.TranslateError(rows.Err())
}

// =========== Practitioner Repository ===========

type practitionerRepoPG struct {
	pool   *pgxpool.Pool
	schema *validation.Schema
}

func NewPractitionerRepoPG(pool *pgxpool.Pool, schema *validation.Schema) PractitionerRepository {
	return &practitionerRepoPG{pool: pool, schema: schema}
}

const practCols = `id, first_name, last_name, email, phone, specialty, license_number, experience,
	created_at, updated_at`

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Specialty, &p.LicenseNumber,
		&p.Experience, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *practitionerRepoPG) Create(ctx context.Context, p *Practitioner) error {
	if r.schema != nil {
		if err := r.schema.Check(p.Fields()); err != nil {
			return err
		}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO practitioners (first_name, last_name, email, phone, specialty, license_number, experience)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.Email, p.Phone, p.Specialty, p.LicenseNumber, p.Experience).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err)
}

func (r *practitionerRepoPG) GetByID(ctx context.Context, id int64) (*Practitioner, error) {
	p, err := scanPractitioner(r.pool.QueryRow(ctx, `SELECT `+practCols+` FROM practitioners WHERE id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return p, nil
}

func (r *practitionerRepoPG) Update(ctx context.Context, p *Practitioner) error {
	if r.schema != nil {
		if err := r.schema.Check(p.Fields()); err != nil {
			return err
		}
	}
	err := r.pool.QueryRow(ctx, `
		UPDATE practitioners SET first_name = $2, last_name = $3, email = $4, phone = $5,
			specialty = $6, license_number = $7, experience = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Specialty, p.LicenseNumber, p.Experience).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err)
}

func (r *practitionerRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practitioners WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *practitionerRepoPG) List(ctx context.Context, f PractitionerFilter) ([]*Practitioner, error) {
	query := `SELECT ` + practCols + ` FROM practitioners`
	var args []any
	if f.Specialty != "" {
		query += ` WHERE specialty = $1`
		args = append(args, f.Specialty)
	}
	query += ` ORDER BY ` + practitionerOrder(f.SortBy)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	items := []*Practitioner{}
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, db.TranslateError(err)
		}
		items = append(items, p)
	}
	return items, db.TranslateError(rows.Err())
}
