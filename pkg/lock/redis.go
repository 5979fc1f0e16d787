package lock

import (
	"context"
	"fmt"
	"time"

	"golang-stock-trader/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client redis.UniversalClient
	opts   Options
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisLocker returns a Locker backed by SET NX with an expiry. ttl must
// exceed the longest expected critical section; the owner token guarantees
// that a lock taken over after expiry is never released by the old owner.
func NewRedisLocker(client redis.UniversalClient, opts Options, ttl time.Duration, log *logger.Logger) Locker {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &redisLocker{client: client, opts: opts, ttl: ttl, logger: log}
}

func (l *redisLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := "lock:" + name
	token := uuid.NewString()

	err := acquire(ctx, name, l.opts, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, key, token, l.ttl).Result()
	})
	if err != nil {
		return err
	}
	l.logger.Debug("Lock acquired", logger.StringField("lock", name))

	defer release(ctx, l.logger, name, func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("lock %q expired before release", name)
		}
		return nil
	})

	return fn(ctx)
}
