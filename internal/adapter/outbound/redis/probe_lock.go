package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sokoni/server/internal/port/outbound"
)

const probeLockKeyPrefix = "payment:probe:"

// releaseScript deletes the lock only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// probeLock implements outbound.ProbeLockPort.
type probeLock struct {
	client redis.UniversalClient
}

// NewProbeLock creates a probe lock backed by SET NX.
func NewProbeLock(client redis.UniversalClient) outbound.ProbeLockPort {
	return &probeLock{client: client}
}

func (l *probeLock) key(correlationID string) string {
	return probeLockKeyPrefix + correlationID
}

func (l *probeLock) Acquire(ctx context.Context, correlationID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(correlationID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire probe lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release is a no-op once the lock has expired and been taken by another holder.
func (l *probeLock) Release(ctx context.Context, correlationID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(correlationID)}, token).Err(); err != nil {
		return fmt.Errorf("release probe lock: %w", err)
	}
	return nil
}

// Compile-time check
var _ outbound.ProbeLockPort = (*probeLock)(nil)
