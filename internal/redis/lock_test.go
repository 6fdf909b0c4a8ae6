package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
)

// Nothing listens on port 1, so every Redis call fails fast with a dial error.
func unreachableLocker(t *testing.T) (Locker, *metrics.Collector) {
	t.Helper()
	rdb := newClient("127.0.0.1:1", "", "")
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewRedisDoctorLocker(rdb, time.Second, 100*time.Millisecond, m, zaptest.NewLogger(t)), m
}

func TestWithDoctorLockDegradesWhenRedisDown(t *testing.T) {
	locker, m := unreachableLocker(t)

	calls := 0
	for i := 0; i < 5; i++ {
		err := locker.WithDoctorLock(context.Background(), 42, func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 5, calls)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockDegraded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockAcquired)))
}

func TestWithDoctorLockPropagatesCallbackError(t *testing.T) {
	locker, _ := unreachableLocker(t)
	boom := errors.New("boom")

	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWithDoctorLockHonoursCancelledContext(t *testing.T) {
	locker, _ := unreachableLocker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := locker.WithDoctorLock(ctx, 7, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func miniLocker(t *testing.T, ttl, wait time.Duration) (*miniredis.Miniredis, Locker, *metrics.Collector) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := newClient(mr.Addr(), "", "")
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.NewCollector("test", prometheus.NewRegistry())
	return mr, NewRedisDoctorLocker(rdb, ttl, wait, m, zaptest.NewLogger(t)), m
}

func TestWithDoctorLockHoldsAndReleasesKey(t *testing.T) {
	mr, locker, m := miniLocker(t, 5*time.Second, 100*time.Millisecond)

	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error {
		require.True(t, mr.Exists("lock:doctor:7"))
		assert.Equal(t, 5*time.Second, mr.TTL("lock:doctor:7"))
		return nil
	})
	require.NoError(t, err)

	assert.False(t, mr.Exists("lock:doctor:7"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockAcquired)))
}

func TestWithDoctorLockBusyWhenHeldElsewhere(t *testing.T) {
	mr, locker, m := miniLocker(t, time.Second, 100*time.Millisecond)
	require.NoError(t, mr.Set("lock:doctor:7", "someone-else"))

	called := false
	start := time.Now()
	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockBusy)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockDegraded)))

	got, err := mr.Get("lock:doctor:7")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithDoctorLockRetriesUntilReleased(t *testing.T) {
	mr, locker, m := miniLocker(t, time.Second, time.Second)
	require.NoError(t, mr.Set("lock:doctor:7", "someone-else"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Del("lock:doctor:7")
	}()

	called := false
	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)

	assert.True(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockAcquired)))
}

func TestWithDoctorLockKeepsKeyTakenOverByAnotherHolder(t *testing.T) {
	mr, locker, _ := miniLocker(t, time.Second, 100*time.Millisecond)

	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error {
		// our key expired and another instance now owns it
		return mr.Set("lock:doctor:7", "next-holder")
	})
	require.NoError(t, err)

	got, err := mr.Get("lock:doctor:7")
	require.NoError(t, err)
	assert.Equal(t, "next-holder", got)
}

func TestWithDoctorLockCancelledCallersDoNotOpenBreaker(t *testing.T) {
	mr, locker, m := miniLocker(t, time.Second, 100*time.Millisecond)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		err := locker.WithDoctorLock(cancelled, 7, func(ctx context.Context) error {
			t.Fatal("callback must not run for a cancelled caller")
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
	}

	require.NoError(t, mr.Set("lock:doctor:7", "someone-else"))

	called := false
	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockBusy)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockDegraded)))
}

func TestWithDoctorLockCallerDeadlineDoesNotOpenBreaker(t *testing.T) {
	mr, locker, m := miniLocker(t, time.Second, time.Second)
	require.NoError(t, mr.Set("lock:doctor:7", "someone-else"))

	// each caller gives up mid-wait while the key is held
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		err := locker.WithDoctorLock(ctx, 7, func(ctx context.Context) error { return nil })
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	mr.Del("lock:doctor:7")
	err := locker.WithDoctorLock(context.Background(), 7, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockAcquired)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LockAcquisitions.WithLabelValues(metrics.LockDegraded)))
}
