package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string
	var dayStart, dayEnd *string

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&specialty,
		&d.WorkDays,
		&dayStart,
		&dayEnd,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	d.DayStart = dayStart
	d.DayEnd = dayEnd
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var notes *string
	var originalDate *time.Time

	err := row.Scan(
		&a.ID,
		&a.DoctorUserID,
		&a.PatientID,
		&a.Date,
		&a.Reason,
		&notes,
		&a.Status,
		&a.IsRescheduled,
		&originalDate,
		&a.RescheduleCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Notes = notes
	a.OriginalDate = originalDate
	return &a, nil
}

const appointmentColumns = `id, doctor_user_id, patient_id, date, reason, notes, status,
	is_rescheduled, original_date, reschedule_count, created_at, updated_at`

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
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
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByRef(ctx context.Context, ref uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, specialty, work_days, day_start, day_end, created_at, updated_at
		FROM doctors
		WHERE id = $1 OR user_id = $1
	`, ref)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctorUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM doctors ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	doctor, err := r.GetDoctorByRef(ctx, appt.DoctorUserID)
	if err != nil && !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}
	detail.Doctor = doctor

	patient, err := r.GetPatientByID(ctx, appt.PatientID)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}
	detail.Patient = patient

	return detail, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR doctor_user_id = $2)
		ORDER BY date DESC
		LIMIT $3 OFFSET $4
	`

	var patientID, doctorUserID *uuid.UUID
	if filter.PatientID != uuid.Nil {
		patientID = &filter.PatientID
	}
	if filter.DoctorUserID != uuid.Nil {
		doctorUserID = &filter.DoctorUserID
	}

	rows, err := r.pool.Query(ctx, query, patientID, doctorUserID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}

	details := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		d, err := r.GetAppointmentDetail(ctx, a.ID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			return nil, err
		}
		details = append(details, *d)
	}

	return details, nil
}

func (r *PgRepository) ActiveAppointmentAt(ctx context.Context, doctorUserID uuid.UUID, at time.Time, exclude *uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_user_id = $1
		  AND date = $2
		  AND status <> 'cancelled'
		  AND ($3::uuid IS NULL OR id <> $3)
		LIMIT 1
	`, doctorUserID, at, exclude)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveByDoctor(ctx context.Context, doctorUserID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_user_id = $1
		  AND status = ANY($2)
		ORDER BY date ASC
	`, doctorUserID, statusStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListOccupyingOnDay(ctx context.Context, doctorUserID uuid.UUID, day time.Time) ([]Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_user_id = $1
		  AND date >= $2 AND date < $3
		  AND status <> 'cancelled'
		ORDER BY date ASC
	`, doctorUserID, start, end)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = ANY($1)
		  AND status = ANY($2)
		ORDER BY array_position($1, id)
	`, ids, statusStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_user_id, patient_id, date, reason, notes, status,
			is_rescheduled, original_date, reschedule_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, NULL, 0, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.DoctorUserID, a.PatientID, a.Date, a.Reason, a.Notes, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_user_id = $2,
		    date = $3,
		    reason = $4,
		    notes = $5,
		    status = $6,
		    is_rescheduled = $7,
		    original_date = $8,
		    reschedule_count = $9,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, a.ID, a.DoctorUserID, a.Date, a.Reason, a.Notes, a.Status,
		a.IsRescheduled, a.OriginalDate, a.RescheduleCount)

	updated, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) RescheduleBatch(ctx context.Context, changes []SwapChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ch := range changes {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET date = $2,
			    updated_at = now()
			WHERE id = $1
		`, ch.AppointmentID, ch.NewDate)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotTaken
			}
			return fmt.Errorf("reschedule appointment %s: %w", ch.AppointmentID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAppointmentNotFound
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ReplaceAvailability(ctx context.Context, doctorUserID uuid.UUID, slots []AvailabilitySlot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin availability tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM doctor_availability_slots WHERE doctor_user_id = $1
	`, doctorUserID); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}

	for _, s := range slots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO doctor_availability_slots (doctor_user_id, day, start_time, end_time, appointment_id)
			VALUES ($1, $2, $3, $4, $5)
		`, doctorUserID, s.Day, s.StartTime, s.EndTime, s.AppointmentID); err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
