// Package locks serializes work per shopper and per order across API replicas.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultTTL   = 15 * time.Second
	defaultWait  = 5 * time.Second
	defaultRetry = 25 * time.Millisecond
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func(ctx context.Context) error

// Locker grants exclusive ownership of a key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// ShopperKey guards a shopper's cart and order creation.
func ShopperKey(shopperID uuid.UUID) string {
	return "shopper:" + shopperID.String()
}

// OrderKey guards the payment steps of one order.
func OrderKey(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// With runs fn while holding key.
func With(ctx context.Context, locker Locker, key string, fn func(ctx context.Context) error) error {
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}

func busyError(key string) error {
	return pkgerrors.NewReason(pkgerrors.CodeConflict, pkgerrors.ReasonLockBusy, "another request is already working on this checkout").
		WithDetails(map[string]any{"lock": key})
}

// IsBusy reports whether err came from a lock wait timing out.
func IsBusy(err error) bool {
	return pkgerrors.IsReason(err, pkgerrors.ReasonLockBusy)
}

type leaseStore interface {
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, owner string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker holds SET NX leases with an owner token. Leases expire on their
// own, so a crashed holder blocks others for at most TTL.
type RedisLocker struct {
	store leaseStore
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewRedisLocker builds a lease locker. Zero durations fall back to defaults.
func NewRedisLocker(store leaseStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis store required for locker")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if wait <= 0 {
		wait = defaultWait
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait, retry: defaultRetry}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.store.LockKey(key, "")
	owner := uuid.NewString()
	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()

	for {
		ok, err := l.store.AcquireLease(ctx, redisKey, owner, l.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire lock")
		}
		if ok {
			var once sync.Once
			return func(ctx context.Context) error {
				var releaseErr error
				once.Do(func() {
					if _, err := l.store.ReleaseLease(ctx, redisKey, owner); err != nil {
						releaseErr = fmt.Errorf("release lock %s: %w", redisKey, err)
					}
				})
				return releaseErr
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, busyError(key)
		case <-time.After(l.retry):
		}
	}
}

// LocalLocker is an in-process keyed mutex for single-replica runs and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker builds an in-process locker; wait <= 0 uses the default.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = defaultWait
	}
	return &LocalLocker{slots: make(map[string]*slot), wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	s := l.acquireSlot(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.dropSlot(key, s)
		return nil, ctx.Err()
	case <-timer.C:
		l.dropSlot(key, s)
		return nil, busyError(key)
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.dropSlot(key, s)
		})
		return nil
	}, nil
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) dropSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
