package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Helpers

const appointmentColumns = `appointment_id, patient_id, doctor_id, start_time, end_time, status, reason, cancel_reason, created_at, updated_at`

const availabilityColumns = `availability_id, doctor_id, available_date, start_time, end_time`

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Specialty,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, storeErr("get doctor", err)
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, storeErr("get patient", err)
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Reason,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, storeErr("scan appointment", err)
	}

	return &a, nil
}

func scanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var (
		s          AvailabilitySlot
		date       pgtype.Date
		start, end pgtype.Time
	)

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&date,
		&start,
		&end,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, storeErr("scan availability slot", err)
	}

	s.AvailableDate = date.Time
	s.StartTime = fromPgTime(start)
	s.EndTime = fromPgTime(end)
	return &s, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate appointments", err)
	}

	return result, nil
}

func toPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: StartOfDay(t), Valid: true}
}

func toPgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Second/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Second/time.Microsecond))
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT doctor_id, first_name, last_name, specialty, created_at
		FROM doctors
		WHERE doctor_id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT patient_id, first_name, last_name, email, created_at
		FROM patients
		WHERE patient_id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error) {
	return findOverlapping(ctx, r.pool, doctorID, start, end, exclude)
}

func findOverlapping(ctx context.Context, q querier, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status <> $4
		  AND $2 < end_time
		  AND $3 > start_time
		ORDER BY start_time ASC
	`, doctorID, start, end, exclude)
	if err != nil {
		return nil, storeErr("find overlapping appointments", err)
	}
	return collectAppointments(rows)
}

// WithDoctorBooking takes a transaction-scoped advisory lock keyed by the
// doctor id, so the overlap scan and the insert of concurrent bookings for
// one doctor run one after another. The appointments_no_overlap exclusion
// constraint backs this up for writers that bypass the lock.
func (r *PgRepository) WithDoctorBooking(ctx context.Context, doctorID int64, fn func(ctx context.Context, tx BookingTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin booking tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, doctorID); err != nil {
		return storeErr("lock doctor", err)
	}

	if err := fn(ctx, &pgBookingTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if pgErrCode(err) == pgExclusionViolation {
			return ErrDoctorUnavailable
		}
		return storeErr("commit booking tx", err)
	}

	return nil
}

type pgBookingTx struct {
	tx pgx.Tx
}

func (t *pgBookingTx) FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, exclude Status) ([]Appointment, error) {
	return findOverlapping(ctx, t.tx, doctorID, start, end, exclude)
}

func (t *pgBookingTx) InsertAppointment(ctx context.Context, a NewAppointment) (int64, error) {
	var id int64

	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, start_time, end_time, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING appointment_id
	`, a.PatientID, a.DoctorID, a.StartTime, a.EndTime, StatusBooked, a.Reason).Scan(&id)
	if err != nil {
		switch pgErrCode(err) {
		case pgExclusionViolation:
			return 0, ErrDoctorUnavailable
		case pgCheckViolation:
			return 0, ErrInvalidTimeRange
		}
		return 0, storeErr("insert appointment", err)
	}

	return id, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, change StatusChange) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancel_reason = CASE WHEN $4 THEN $3 ELSE cancel_reason END,
		    updated_at = now()
		WHERE appointment_id = $1
	`, id, change.Status, change.CancelReason, change.SetCancelReason)
	if err != nil {
		if pgErrCode(err) == pgExclusionViolation {
			return 0, ErrOverlapsActive
		}
		return 0, storeErr("update appointment status", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListAppointmentsInRange(ctx context.Context, doctorID int64, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time BETWEEN $2 AND $3
		ORDER BY start_time ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, storeErr("list appointments in range", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetAvailabilitySlot(ctx context.Context, id int64) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+availabilityColumns+`
		FROM doctor_availability
		WHERE availability_id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) InsertAvailabilitySlot(ctx context.Context, slot AvailabilitySlot) (int64, error) {
	var id int64

	err := r.pool.QueryRow(ctx, `
		INSERT INTO doctor_availability (doctor_id, available_date, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING availability_id
	`, slot.DoctorID, toPgDate(slot.AvailableDate), toPgTime(slot.StartTime), toPgTime(slot.EndTime)).Scan(&id)
	if err != nil {
		return 0, mapSlotWriteErr("insert availability slot", err)
	}

	return id, nil
}

func (r *PgRepository) UpdateAvailabilitySlot(ctx context.Context, slot AvailabilitySlot) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctor_availability
		SET doctor_id = $2,
		    available_date = $3,
		    start_time = $4,
		    end_time = $5
		WHERE availability_id = $1
	`, slot.ID, slot.DoctorID, toPgDate(slot.AvailableDate), toPgTime(slot.StartTime), toPgTime(slot.EndTime))
	if err != nil {
		return 0, mapSlotWriteErr("update availability slot", err)
	}

	return tag.RowsAffected(), nil
}

func mapSlotWriteErr(op string, err error) error {
	switch pgErrCode(err) {
	case pgForeignKeyViolation:
		return ErrInvalidDoctor
	case pgCheckViolation:
		return ErrInvalidTimeRange
	}
	return storeErr(op, err)
}

func (r *PgRepository) DeleteAvailabilitySlot(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctor_availability WHERE availability_id = $1`, id)
	if err != nil {
		return 0, storeErr("delete availability slot", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ListAvailability(ctx context.Context, doctorID int64, filter AvailabilityFilter) ([]AvailabilitySlot, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if filter.Date != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+availabilityColumns+`
			FROM doctor_availability
			WHERE doctor_id = $1
			  AND available_date = $2
			ORDER BY available_date ASC, start_time ASC
		`, doctorID, toPgDate(*filter.Date))
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+availabilityColumns+`
			FROM doctor_availability
			WHERE doctor_id = $1
			  AND available_date >= $2
			  AND available_date <= $3
			ORDER BY available_date ASC, start_time ASC
		`, doctorID, toPgDate(filter.From), toPgDate(filter.To))
	}
	if err != nil {
		return nil, storeErr("list availability", err)
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate availability", err)
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, availability_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.AvailabilityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return storeErr("insert event log", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
