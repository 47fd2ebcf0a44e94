package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired indicates another booking for the same clinician is in
// flight; callers should ask the client to retry.
var ErrLockNotAcquired = errors.New("appointments: clinician lock not acquired")

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lock taken over by another request is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// SlotLocker serializes the conflict-check-and-insert critical section per
// clinician.
type SlotLocker interface {
	WithClinicianLock(ctx context.Context, clinicianID int64, fn func(ctx context.Context) error) error
}

// RedisSlotLocker implements SlotLocker on a shared Redis instance.
type RedisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) *RedisSlotLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisSlotLocker{client: client, ttl: ttl}
}

// WithClinicianLock runs fn while holding the clinician's booking lock.
// Returns ErrLockNotAcquired without running fn when the lock is held
// elsewhere.
func (l *RedisSlotLocker) WithClinicianLock(ctx context.Context, clinicianID int64, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("booking:lock:clinician:%d", clinicianID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("appointments: acquire lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}()

	return fn(ctx)
}

// NoopSlotLocker runs the critical section without coordination. Used when
// Redis is not configured; the DB exclusion constraint still prevents
// double-booking.
type NoopSlotLocker struct{}

func (NoopSlotLocker) WithClinicianLock(ctx context.Context, _ int64, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
