package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReadiness(t *testing.T) {
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		code     int
		status   string
		redisDep string
	}{
		{"all up", up, up, http.StatusOK, "ok", "ok"},
		{"redis down", up, down, http.StatusOK, "degraded", "down"},
		{"redis disabled", up, nil, http.StatusOK, "ok", "disabled"},
		{"postgres down", down, up, http.StatusServiceUnavailable, "error", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{
				Service:  &fakeService{},
				Postgres: tt.postgres,
				Redis:    tt.redis,
				Logger:   zaptest.NewLogger(t),
				Version:  "v1.2.3",
			})

			rec := do(t, h, http.MethodGet, "/health/ready", "")
			require.Equal(t, tt.code, rec.Code)
			resp := decode[ReadinessResponse](t, rec)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.redisDep, resp.Dependencies["redis"])
			assert.Equal(t, "v1.2.3", resp.Version)
		})
	}
}

func TestReadinessDegradedWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewRouter(RouterConfig{
		Service:  &fakeService{},
		Postgres: pingerFunc(func(context.Context) error { return nil }),
		Redis:    RedisPinger(rdb),
		Logger:   zaptest.NewLogger(t),
	})

	rec := do(t, h, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["redis"])
}

func TestLiveness(t *testing.T) {
	h, _ := newTestRouter(t, &fakeService{})

	rec := do(t, h, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[LivenessResponse](t, rec).Status)
}
