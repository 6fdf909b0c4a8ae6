package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func newClient(addr, username, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})
}

// NewRedisClient always returns a client the caller must close. A non-nil
// error only reports that the startup ping failed; the client keeps
// reconnecting, so the lock breaker and readiness can recover once Redis is
// back.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := newClient(addr, username, password)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return rdb, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
