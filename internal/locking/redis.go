package locking

import (
	"context"
	"fmt"
	"time"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix      = "lock:"
	defaultLockTTL     = 10 * time.Second
	defaultRetryPeriod = 25 * time.Millisecond
	releaseTimeout     = 2 * time.Second
)

// releaseScript deletes the key only if it still holds our token, so an expired lock
// taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ interfaces.SessionLocker = (*RedisLocker)(nil)

// RedisLocker is a SessionLocker shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can block others.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  defaultRetryPeriod,
		logger: logger.Named("RedisLocker"),
	}
}

// Lock retries SET NX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (interfaces.UnlockFunc, error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", models.ErrSessionLocked, key)
			}
			l.logger.Error("Failed to acquire lock", zap.String("key", key), zap.Error(err))
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(redisKey, token), nil
		}
		select {
		case <-ctx.Done():
			l.logger.Debug("Gave up waiting for lock", zap.String("key", key))
			return nil, fmt.Errorf("%w: %s", models.ErrSessionLocked, key)
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlocker(redisKey, token string) interfaces.UnlockFunc {
	return func() {
		// The caller's ctx may already be cancelled; release with a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}
