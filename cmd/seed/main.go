package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
)

const (
	doctorCount  = 50
	patientCount = 5000
	// availability is published for this many days ahead of today
	availabilityDays = 30
)

var specialties = []string{
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConn}, log)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(ctx, pool, log, doctorCount)
	if err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(ctx, pool, log, patientCount); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}
	if err := seedAvailability(ctx, pool, log, doctorIDs, time.Now().UTC()); err != nil {
		log.Fatal("seed availability", zap.Error(err))
	}

	log.Info("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, count int) ([]int64, error) {
	log.Info("seeding doctors", zap.Int("count", count))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (first_name, last_name, specialty, phone, email)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING doctor_id
		`, gofakeit.FirstName(), gofakeit.LastName(), specialties[gofakeit.Number(0, len(specialties)-1)],
			gofakeit.Phone(), gofakeit.Email()).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, count int) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			batch.Queue(`
				INSERT INTO patients (first_name, last_name, email, phone, date_of_birth)
				VALUES ($1, $2, $3, $4, $5)
			`, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.Phone(),
				gofakeit.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-1, 0, 0)))
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}

// seedAvailability publishes a morning and an afternoon window on weekdays.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, doctorIDs []int64, from time.Time) error {
	batch := &pgx.Batch{}
	today := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	for _, doctorID := range doctorIDs {
		for d := 0; d < availabilityDays; d++ {
			day := today.AddDate(0, 0, d)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			batch.Queue(`
				INSERT INTO doctor_availability (doctor_id, available_date, start_time, end_time)
				VALUES ($1, $2, '09:00', '12:00'), ($1, $2, '13:00', '17:00')
			`, doctorID, day.Format(time.DateOnly))
		}
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	log.Info("availability seeded", zap.Int("doctors", len(doctorIDs)), zap.Int("days", availabilityDays))
	return nil
}
