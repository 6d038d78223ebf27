package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLease = 30 * time.Second
	retryEvery   = 25 * time.Millisecond
)

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// the lease is extended only while the holder's token is still there
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker is a per-key lock shared by every process talking to the same Redis.
// The lease is renewed every third of its length while the lock is held, so a
// slow checkout keeps it. A holder that dies loses the lock once the lease
// expires.
type Locker struct {
	client *redis.Client
	lease  time.Duration
	logger *zap.Logger
}

func NewLocker(client *redis.Client, lease time.Duration, logger *zap.Logger) *Locker {
	if lease <= 0 {
		lease = defaultLease
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{client: client, lease: lease, logger: logger.Named("redis_lock")}
}

// Lock polls until the key is acquired or ctx is done
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.New().String()

	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, k, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(k, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// the caller's ctx may already be cancelled
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{k}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lease until stop is closed or the token is gone
func (l *Locker) keepAlive(k, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	every := l.lease / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, l.client, []string{k}, token, l.lease.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			l.logger.Warn("failed to extend lock", zap.String("key", k), zap.Error(err))
		case n == 0:
			l.logger.Warn("lock lost before release", zap.String("key", k))
			return
		}
	}
}

func lockKey(key string) string {
	return fmt.Sprintf("checkout:lock:%s", key)
}
