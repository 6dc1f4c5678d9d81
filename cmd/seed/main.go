package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichq/clinic-scheduling/internal/db"
	"github.com/clinichq/clinic-scheduling/internal/schedule"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id uuid PRIMARY KEY,
		name text NOT NULL,
		email text,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL UNIQUE,
		name text NOT NULL,
		specialty text,
		work_days text[] NOT NULL DEFAULT '{}',
		day_start text,
		day_end text,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id uuid PRIMARY KEY,
		doctor_user_id uuid NOT NULL,
		patient_id uuid NOT NULL,
		date timestamptz NOT NULL,
		reason text NOT NULL,
		notes text,
		status text NOT NULL,
		is_rescheduled boolean NOT NULL DEFAULT false,
		original_date timestamptz,
		reschedule_count int NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	// One active appointment per doctor-instant, enforced by the store so
	// racing writers cannot both commit.
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_doctor_date_active
		ON appointments (doctor_user_id, date)
		WHERE status <> 'cancelled'`,
	`CREATE TABLE IF NOT EXISTS doctor_availability_slots (
		doctor_user_id uuid NOT NULL,
		day date NOT NULL,
		start_time text NOT NULL,
		end_time text NOT NULL,
		appointment_id uuid NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS doctor_availability_slots_doctor
		ON doctor_availability_slots (doctor_user_id)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id bigserial PRIMARY KEY,
		event_type text NOT NULL,
		appointment_id uuid,
		payload jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := createSchema(context.Background(), pool); err != nil {
		log.Fatalf("create schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorUserIDs, err := seedDoctors(context.Background(), pool, 40)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	patientIDs, err := seedPatients(context.Background(), pool, 2000)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, doctorUserIDs, patientIDs); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	log.Println("schema ready")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}
	workDays := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	userIDs := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		userID := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, user_id, name, specialty, work_days, day_start, day_end, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, '09:00', '17:00', now(), now())
		`, id, userID, name, spec, workDays)
		if err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return userIDs, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedAppointments books each doctor a random half of tomorrow's grid so
// the availability and swap endpoints have something to chew on.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, doctorUserIDs, patientIDs []uuid.UUID) error {
	log.Printf("seeding appointments for %d doctors", len(doctorUserIDs))

	labels, err := schedule.Generate("09:00", "17:00", 30)
	if err != nil {
		return err
	}
	tomorrow := time.Now().AddDate(0, 0, 1)

	reasons := []string{"follow-up", "annual check", "consultation", "lab review", "vaccination"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorUserID := range doctorUserIDs {
		for _, label := range labels {
			if gofakeit.Bool() {
				continue
			}

			at, err := schedule.At(tomorrow, label)
			if err != nil {
				return err
			}

			patientID := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]
			reason := reasons[gofakeit.Number(0, len(reasons)-1)]

			_, err = tx.Exec(ctx, `
				INSERT INTO appointments (id, doctor_user_id, patient_id, date, reason, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, 'scheduled', now(), now())
			`, uuid.New(), doctorUserID, patientID, at, reason)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
