package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docteurlibre/med-api/internal/platform/db"
	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

type appointmentRepoPG struct {
	pool   *pgxpool.Pool
	schema *validation.Schema
}

// NewAppointmentRepoPG returns the Postgres store. A non-nil schema re-checks
// every appointment before it is written.
func NewAppointmentRepoPG(pool *pgxpool.Pool, schema *validation.Schema) AppointmentRepository {
	return &appointmentRepoPG{pool: pool, schema: schema}
}

const apptCols = `a.id, a.patient_id, a.practitioner_id, a.date, a.motif, a.status, a.notes,
	a.created_at, a.updated_at,
	p.first_name, p.last_name, pr.first_name, pr.last_name, pr.specialty`

const apptFrom = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN practitioners pr ON pr.id = a.practitioner_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	pat := &PatientRef{}
	prac := &PractitionerRef{}
	err := row.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.Date, &a.Motif, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
		&pat.FirstName, &pat.LastName, &prac.FirstName, &prac.LastName, &prac.Specialty)
	if err != nil {
		return nil, err
	}
	pat.ID = a.PatientID
	prac.ID = a.PractitionerID
	a.Patient = pat
	a.Practitioner = prac
	return &a, nil
}

func (r *appointmentRepoPG) check(a *Appointment) error {
	if r.schema == nil {
		return nil
	}
	return r.schema.Check(a.Fields())
}

// pgWindow answers window queries through q, which may be a transaction.
type pgWindow struct{ q db.Querier }

func (w pgWindow) FindActiveInWindow(ctx context.Context, practitionerID int64, from, to time.Time, excludeID int64) (*Appointment, error) {
	var a Appointment
	err := w.q.QueryRow(ctx, `
		SELECT id, patient_id, practitioner_id, date, motif, status, notes, created_at, updated_at
		FROM appointments
		WHERE practitioner_id = $1 AND date BETWEEN $2 AND $3
			AND status <> 'cancelled' AND ($4 = 0 OR id <> $4)
		ORDER BY date LIMIT 1`,
		practitionerID, from, to, excludeID).Scan(
		&a.ID, &a.PatientID, &a.PractitionerID, &a.Date, &a.Motif, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) FindActiveInWindow(ctx context.Context, practitionerID int64, from, to time.Time, excludeID int64) (*Appointment, error) {
	return pgWindow{q: r.pool}.FindActiveInWindow(ctx, practitionerID, from, to, excludeID)
}

// lockPractitioner serializes bookings of one practitioner until the
// transaction ends.
func lockPractitioner(ctx context.Context, tx pgx.Tx, practitionerID int64) error {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM practitioners WHERE id = $1 FOR UPDATE`, practitionerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_appointments_practitioner"}
	}
	return db.TranslateError(err)
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment, guard Guard) error {
	if err := r.check(a); err != nil {
		return err
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPractitioner(ctx, tx, a.PractitionerID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, pgWindow{q: tx}); err != nil {
				return err
			}
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO appointments (patient_id, practitioner_id, date, motif, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`,
			a.PatientID, a.PractitionerID, a.Date, a.Motif, a.Status, a.Notes).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		return db.TranslateError(err)
	})
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, db.TranslateError(err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment, guard Guard) error {
	if err := r.check(a); err != nil {
		return err
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPractitioner(ctx, tx, a.PractitionerID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, pgWindow{q: tx}); err != nil {
				return err
			}
		}
		err := tx.QueryRow(ctx, `
			UPDATE appointments SET patient_id = $2, practitioner_id = $3, date = $4, motif = $5,
				status = $6, notes = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at`,
			a.ID, a.PatientID, a.PractitionerID, a.Date, a.Motif, a.Status, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
		return db.TranslateError(err)
	})
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + apptFrom
	var where []string
	var args []any
	idx := 1
	if f.Status != "" {
		where = append(where, fmt.Sprintf("a.status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("a.date >= $%d", idx))
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("a.date <= $%d", idx))
		args = append(args, *f.To)
		idx++
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.date, a.id"
	return r.list(ctx, query, args...)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	if err := r.exists(ctx, "patients", patientID); err != nil {
		return nil, err
	}
	return r.list(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.patient_id = $1 ORDER BY a.date, a.id`, patientID)
}

func (r *appointmentRepoPG) ListByPractitioner(ctx context.Context, practitionerID int64) ([]*Appointment, error) {
	if err := r.exists(ctx, "practitioners", practitionerID); err != nil {
		return nil, err
	}
	return r.list(ctx, `SELECT `+apptCols+apptFrom+` WHERE a.practitioner_id = $1 ORDER BY a.date, a.id`, practitionerID)
}

// exists takes a table name from a fixed set, never from input.
func (r *appointmentRepoPG) exists(ctx context.Context, table string, id int64) error {
	var ok bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok); err != nil {
		return db.TranslateError(err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.TranslateError(err)
	}
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, db.TranslateError(err)
		}
		items = append(items, a)
	}
	return items, db.TranslateError(rows.Err())
}
