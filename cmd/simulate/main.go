package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/db"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	StatusRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientLimit int
	// bookings land on this many days from tomorrow, on a 15-minute grid, so
	// workers collide often
	Days int
}

type DataPool struct {
	Doctors  []int64
	Patients []int64

	mu           sync.RWMutex
	appointments []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking  OperationMetrics
	Cancel   OperationMetrics
	Status   OperationMetrics
	Schedule OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
	start   time.Time
}

var statuses = []string{"CONFIRMED", "COMPLETED", "NO_SHOW", "BOOKED"}

func main() {
	base, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(base.LogLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		log.Fatal("SIM_WORKERS and SIM_DURATION must be > 0")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, base.PostgresDSN, db.PoolOptions{MaxConns: 4}, log)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("loaded data pool", zap.Int("doctors", len(dataPool.Doctors)), zap.Int("patients", len(dataPool.Patients)))

	tomorrow := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		start:  tomorrow,
	}

	if err := sim.Run(context.Background()); err != nil {
		log.Fatal("simulation failed", zap.Error(err))
	}
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		log.Fatal("overlap check", zap.Error(err))
	}
	if overlaps > 0 {
		log.Fatal("active appointments overlap", zap.Int("pairs", overlaps))
	}
	log.Info("no overlapping active appointments")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.15),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.15),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 5),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 1000),
		Days:         getInt("SIM_DAYS", 2),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}
	if cfg.Days <= 0 {
		cfg.Days = 1
	}

	return cfg
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]int64, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	doctors, err := loadIDs(ctx, pool, `SELECT doctor_id FROM doctors ORDER BY doctor_id LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	patients, err := loadIDs(ctx, pool, `SELECT patient_id FROM patients ORDER BY patient_id LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if len(doctors) == 0 || len(patients) == 0 {
		return nil, fmt.Errorf("no doctors or patients loaded; run cmd/seed first")
	}
	return &DataPool{Doctors: doctors, Patients: patients}, nil
}

func (s *Simulator) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(gctx, workerID)
			return nil
		})
	}

	err := g.Wait()
	s.log.Info("simulation complete")
	return err
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		default:
			s.doSchedule(ctx, rng)
		}
	}
}

// send returns the status code and the decoded body when out is non-nil.
func (s *Simulator) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	// 09:00-17:00 on a 15-minute grid, 15 to 45 minutes long
	slot := rng.Intn(32)
	start := s.start.AddDate(0, 0, rng.Intn(s.config.Days)).Add(9*time.Hour + time.Duration(slot)*15*time.Minute)
	end := start.Add(time.Duration(1+rng.Intn(3)) * 15 * time.Minute)

	var out struct {
		AppointmentID int64 `json:"appointment_id"`
	}
	began := time.Now()
	status, err := s.send(ctx, http.MethodPost, "/appointments", map[string]any{
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	}, &out)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(began), status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(out.AppointmentID)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	status, err := s.send(ctx, http.MethodPut, "/appointments/"+strconv.FormatInt(id, 10)+"/cancel",
		map[string]any{"cancel_reason": "simulated"}, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(began), status, err)
}

// doStatus may reinstate a cancelled appointment, which the server rejects
// with 409 when the slot has since been taken.
func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	status, err := s.send(ctx, http.MethodPut, "/appointments/"+strconv.FormatInt(id, 10)+"/status",
		map[string]any{"status": statuses[rng.Intn(len(statuses))]}, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Status.Record(time.Since(began), status, err)
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	from := s.start.Format(time.DateOnly)
	to := s.start.AddDate(0, 0, s.config.Days-1).Format(time.DateOnly)

	began := time.Now()
	status, err := s.send(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%d/schedule?from=%s&to=%s", doctorID, from, to), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Schedule.Record(time.Since(began), status, err)
}

// countOverlaps counts pairs of active appointments of one doctor whose
// half-open ranges intersect. It must be zero after any run.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.appointment_id < b.appointment_id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
		WHERE a.status <> 'CANCELLED'
		  AND b.status <> 'CANCELLED'
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Doctors: %d  Days: %d\n", len(s.pool.Doctors), s.config.Days)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Status update", &s.metrics.Status)
	printOperationReport("Doctor schedule", &s.metrics.Schedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, pct(errCount))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
