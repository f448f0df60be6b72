package billing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docteurlibre/med-api/internal/platform/db"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

type billRepoPG struct {
	pool   *pgxpool.Pool
	schema *validation.Schema
}

func NewBillRepoPG(pool *pgxpool.Pool, schema *validation.Schema) BillRepository {
	return &billRepoPG{pool: pool, schema: schema}
}

const billCols = `b.id, b.patient_id, b.appointment_id, b.amount, b.currency, b.date, b.status,
	b.description, b.created_at, b.updated_at,
	p.first_name, p.last_name, a.date, a.motif`

const billFrom = ` FROM bills b
	JOIN patients p ON p.id = b.patient_id
	JOIN appointments a ON a.id = b.appointment_id`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	pat := &PatientRef{}
	appt := &AppointmentRef{}
	err := row.Scan(&b.ID, &b.PatientID, &b.AppointmentID, &b.Amount, &b.Currency, &b.Date, &b.Status,
		&b.Description, &b.CreatedAt, &b.UpdatedAt,
		&pat.FirstName, &pat.LastName, &appt.Date, &appt.Motif)
	if err != nil {
		return nil, err
	}
	pat.ID = b.PatientID
	appt.ID = b.AppointmentID
	b.Patient = pat
	b.Appointment = appt
	return &b, nil
}

func (r *billRepoPG) check(b *Bill) error {
	if r.schema == nil {
		return nil
	}
	return r.schema.Check(b.Fields())
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	if err := r.check(b); err != nil {
		return err
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bills (patient_id, appointment_id, amount, currency, date, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		b.PatientID, b.AppointmentID, b.Amount, b.Currency, b.Date, b.Status, b.Description).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return db.TranslateError(err)
}

func (r *billRepoPG) GetByID(ctx context.Context, id int64) (*Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billCols+billFrom+` WHERE b.id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return b, nil
}

func (r *billRepoPG) Update(ctx context.Context, b *Bill) error {
	if err := r.check(b); err != nil {
		return err
	}
	err := r.pool.QueryRow(ctx, `
		UPDATE bills SET patient_id = $2, appointment_id = $3, amount = $4, currency = $5,
			date = $6, status = $7, description = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		b.ID, b.PatientID, b.AppointmentID, b.Amount, b.Currency, b.Date, b.Status, b.Description).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	return db.TranslateError(err)
}

func (r *billRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *billRepoPG) List(ctx context.Context) ([]*Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billCols+billFrom+` ORDER BY b.id`)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	items := []*Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, db.TranslateError(err)
		}
		items = append(items, b)
	}
	return items, db.TranslateError(rows.Err())
}
