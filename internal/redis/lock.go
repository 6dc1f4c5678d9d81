package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
)

// Locker guards the conflict-check/write critical sections of the booking
// and bulk-reschedule flows. Keys scope the lock: a single booking locks
// one doctor-instant, a bulk swap locks a whole doctor-day.
type Locker interface {
	WithScheduleLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// InstantKey is the lock key for one doctor at one instant.
func InstantKey(doctorUserID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s:%d", doctorUserID, at.UTC().Unix())
}

// DayKey is the lock key for one doctor's whole calendar day.
func DayKey(doctorUserID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s:day:%s", doctorUserID, day.UTC().Format("2006-01-02"))
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScheduleLocker creates a locker that uses a per schedule-key Redis entry.
func NewRedisScheduleLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisScheduleLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisScheduleLocker) WithScheduleLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := fmt.Sprintf("lock:schedule:%s", key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire schedule lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, lockKey, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}
