package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

var fixedNow = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memRepository) {
	t.Helper()
	return newTestServiceWithLocker(t, nil)
}

func newTestServiceWithLocker(t *testing.T, locker redisclient.Locker) (*Service, *memRepository) {
	t.Helper()
	repo := newMemRepository()
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := NewService(repo, locker, config.Config{ScheduleWindow: 30 * 24 * time.Hour}, zaptest.NewLogger(t), m)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

type funcLocker func(ctx context.Context, doctorID int64, fn func(ctx context.Context) error) error

func (f funcLocker) WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context) error) error {
	return f(ctx, doctorID, fn)
}
