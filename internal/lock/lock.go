// Package lock serializes mutations per document or aggregate key.
//
// A Lease is the token a caller threads through nested lock-protected calls:
// acquiring a key the lease already holds only bumps its depth, and the
// underlying lock is released when the outermost holder releases.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAcquireTimeout is returned when a key stays locked past the acquire timeout.
var ErrAcquireTimeout = errors.New("lock acquire timed out")

// ErrNotHeld is returned when releasing a lease that is no longer held.
var ErrNotHeld = errors.New("lease not held")

// Lease is an exclusive hold on a single key.
type Lease struct {
	Key        string
	Token      string
	AcquiredAt time.Time

	mu     sync.Mutex
	depth  int
	unlock func(context.Context) error
}

// Depth reports how many nested acquisitions are outstanding.
func (l *Lease) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

// Manager hands out leases on keys.
type Manager interface {
	Acquire(ctx context.Context, key string, held *Lease) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}

// backend takes the underlying exclusive lock. unlock is called exactly once.
type backend interface {
	lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
	name() string
}

var _ Manager = (*Locker)(nil)

// Locker implements Manager with depth-tracked leases over a backend.
type Locker struct {
	backend        backend
	acquireTimeout time.Duration
}

// Acquire locks key. When held already covers key it is returned with its
// depth incremented and nothing else is locked.
func (l *Locker) Acquire(ctx context.Context, key string, held *Lease) (*Lease, error) {
	if held != nil && held.Key == key {
		held.mu.Lock()
		if held.depth > 0 {
			held.depth++
			held.mu.Unlock()
			return held, nil
		}
		held.mu.Unlock()
	}

	lockCtx := ctx
	if l.acquireTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.acquireTimeout)
		defer cancel()
	}

	unlock, err := l.backend.lock(lockCtx, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s lock %q: %w", l.backend.name(), key, ErrAcquireTimeout)
		}
		return nil, fmt.Errorf("%s lock %q: %w", l.backend.name(), key, err)
	}

	return &Lease{
		Key:        key,
		Token:      uuid.NewString(),
		AcquiredAt: time.Now(),
		depth:      1,
		unlock:     unlock,
	}, nil
}

// Release decrements the lease depth, unlocking the key at zero.
// Unlocking is not bound to ctx cancellation so a cancelled request still
// frees its key.
func (l *Locker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	lease.mu.Lock()
	if lease.depth == 0 {
		lease.mu.Unlock()
		return fmt.Errorf("release %q: %w", lease.Key, ErrNotHeld)
	}
	lease.depth--
	if lease.depth > 0 {
		lease.mu.Unlock()
		return nil
	}
	unlock := lease.unlock
	lease.unlock = nil
	lease.mu.Unlock()

	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("%s unlock %q: %w", l.backend.name(), lease.Key, err)
	}
	return nil
}

// Run executes fn while holding key. The lease is released even when fn
// panics. onRelease, when set, receives the time spent between acquiring and
// releasing.
func Run(ctx context.Context, m Manager, key string, held *Lease, fn func(ctx context.Context, lease *Lease) error, onRelease func(time.Duration)) (err error) {
	lease, err := m.Acquire(ctx, key, held)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		if relErr := m.Release(ctx, lease); relErr != nil {
			slog.Error("[Lock] Release failed", "key", key, "error", relErr)
			if err == nil {
				err = relErr
			}
		}
		if onRelease != nil {
			onRelease(time.Since(start))
		}
	}()

	return fn(ctx, lease)
}
