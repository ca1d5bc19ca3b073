package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clinic-app-server/internal/logger"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

// SlotLocker serialises the check-then-write for one (doctor, time) slot.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, doctorID string, at time.Time, fn func(ctx context.Context) error) error
}

func slotKey(doctorID string, at time.Time) string {
	return fmt.Sprintf("lock:slot:%s:%d", doctorID, at.Unix())
}

type redisSlotLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	log    *logger.Logger
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key. A caller
// that finds the key held polls until ttl elapses before giving up.
func NewRedisSlotLocker(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) SlotLocker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		log:    log,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, doctorID string, at time.Time, fn func(ctx context.Context) error) error {
	key := slotKey(doctorID, at)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			// The key stays held until its TTL runs out.
			l.log.WithComponent(ctx, "slot_lock").
				WithError(err).
				WithField("key", key).
				Warn("failed to release slot lock")
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.ttl)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().Add(l.retry).After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ErrLockNotAcquired
		case <-time.After(l.retry):
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

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// LocalSlotLocker is the single-process locker used when no Redis is configured.
// Waiters block until the holder finishes or their context ends.
type LocalSlotLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalSlotLocker) WithSlotLock(ctx context.Context, doctorID string, at time.Time, fn func(ctx context.Context) error) error {
	key := slotKey(doctorID, at)

	var released chan struct{}
	for {
		l.mu.Lock()
		held, busy := l.slots[key]
		if !busy {
			released = make(chan struct{})
			l.slots[key] = released
			l.mu.Unlock()
			break
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return ErrLockNotAcquired
		}
	}

	defer func() {
		l.mu.Lock()
		delete(l.slots, key)
		l.mu.Unlock()
		close(released)
	}()

	return fn(ctx)
}
