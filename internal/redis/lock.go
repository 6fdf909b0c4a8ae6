package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
)

var (
	ErrLockNotAcquired = errors.New("doctor lock not acquired")
)

const lockRetryInterval = 25 * time.Millisecond

// Locker is used by the booking engine to serialize bookings per doctor
// across API replicas before the store-level guard is reached.
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context) error) error
}

type redisDoctorLocker struct {
	client  *redis.Client
	ttl     time.Duration
	wait    time.Duration
	breaker *gobreaker.CircuitBreaker[bool]
	metrics *metrics.Collector
	log     *zap.Logger
}

// NewRedisDoctorLocker creates a locker that uses a per doctor Redis key.
// A booking waits up to wait for the key. When Redis itself fails, the
// breaker opens and fn runs without the Redis lock; the store still
// rejects overlapping bookings on its own.
func NewRedisDoctorLocker(client *redis.Client, ttl, wait time.Duration, m *metrics.Collector, log *zap.Logger) Locker {
	l := &redisDoctorLocker{
		client:  client,
		ttl:     ttl,
		wait:    wait,
		metrics: m,
		log:     log,
	}
	l.breaker = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "redis-doctor-lock",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// A caller giving up says nothing about Redis health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("lock breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return l
}

func (l *redisDoctorLocker) WithDoctorLock(ctx context.Context, doctorID int64, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:doctor:%d", doctorID)
	token := uuid.NewString()

	err := l.acquire(ctx, key, token)
	switch {
	case err == nil:
		l.metrics.ObserveLock(metrics.LockAcquired)
	case errors.Is(err, ErrLockNotAcquired):
		l.metrics.ObserveLock(metrics.LockBusy)
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		l.metrics.ObserveLock(metrics.LockDegraded)
		l.log.Warn("doctor lock unavailable, relying on store guard",
			zap.Int64("doctor_id", doctorID),
			zap.Error(err),
		)
		return fn(ctx)
	}

	defer func() {
		// release on a fresh context so a cancelled request still frees the key
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.release(relCtx, key, token); err != nil {
			l.log.Warn("release doctor lock", zap.Int64("doctor_id", doctorID), zap.Error(err))
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// acquire polls SETNX until the key is ours or the wait deadline passes.
func (l *redisDoctorLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := l.breaker.Execute(func() (bool, error) {
			return l.client.SetNX(ctx, key, token, l.ttl).Result()
		})
		if err != nil {
			return fmt.Errorf("acquire doctor lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDoctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}
