// Package lock provides a mutex shared by every instance of the service,
// backed by Redis. It is only meant for rare, process-wide tasks such as
// running migrations at startup; balance mutations are serialized by the
// database row locks instead.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// retries ran out.
var ErrNotAcquired = errors.New("lock not acquired")

// Config is the required properties to reach Redis.
type Config struct {
	Host     string
	Password string
	DB       int
}

// Open connects to Redis and checks the connection.
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Locker hands out named distributed mutexes.
type Locker struct {
	log    *slog.Logger
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

// New constructs a Locker. Locks expire after expiry if the holder dies
// without releasing them.
func New(log *slog.Logger, client *redis.Client, expiry time.Duration) *Locker {
	return &Locker{
		log:    log,
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		tries:  64,
	}
}

// Do runs fn while holding the named lock. The lock is extended while fn
// runs and released when it returns.
func (l *Locker) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	m := l.rs.NewMutex(name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(250*time.Millisecond),
	)

	if err := m.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotAcquired, name, err)
	}
	l.log.InfoContext(ctx, "lock", "status", "acquired", "name", name)

	done := make(chan struct{})
	go l.keepAlive(ctx, m, done)

	defer func() {
		close(done)
		if _, err := m.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.log.ErrorContext(ctx, "lock", "status", "release failed", "name", name, "ERROR", err)
			return
		}
		l.log.InfoContext(ctx, "lock", "status", "released", "name", name)
	}()

	return fn(ctx)
}

func (l *Locker) keepAlive(ctx context.Context, m *redsync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(l.expiry / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := m.ExtendContext(ctx); !ok || err != nil {
				l.log.ErrorContext(ctx, "lock", "status", "extend failed", "name", m.Name(), "ERROR", err)
			}
		}
	}
}
