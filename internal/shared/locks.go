package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PeriodLockKey builds redis keys for finance critical sections.
func PeriodLockKey(periodID int64) string {
	return fmt.Sprintf("finance:period:%d:lock", periodID)
}

// ErrLockHeld indicates another process holds the lock.
var ErrLockHeld = errors.New("shared: lock already held")

// PeriodLocker serialises period closure across processes. The database
// row lock already serialises within one transaction scope; this guards
// the surrounding orchestration (audit write, job enqueue) as well.
type PeriodLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodLocker constructs the locker.
func NewPeriodLocker(client *redis.Client, ttl time.Duration) *PeriodLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PeriodLocker{client: client, ttl: ttl}
}

// Acquire takes the period lock or fails with ErrLockHeld.
func (l *PeriodLocker) Acquire(ctx context.Context, periodID int64) error {
	if l == nil || l.client == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, PeriodLockKey(periodID), 1, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the period lock.
func (l *PeriodLocker) Release(ctx context.Context, periodID int64) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, PeriodLockKey(periodID)).Err()
}
