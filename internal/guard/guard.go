package guard

import (
	"context"
	"errors"
	"time"
)

var ErrTimeout = errors.New("timed out waiting for lock")

// Guard is a mutual-exclusion lock with bounded acquisition.
type Guard struct {
	ch chan struct{}
}

// New creates an unlocked guard.
func New() *Guard {
	return &Guard{ch: make(chan struct{}, 1)}
}

// Acquire takes the lock, waiting at most timeout. A non-positive timeout
// only succeeds if the lock is free right now. If ctx is done first its error
// is returned.
func (g *Guard) Acquire(ctx context.Context, timeout time.Duration) error {
	if g.TryAcquire() {
		return nil
	}
	if timeout <= 0 {
		return ErrTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case g.ch <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the lock only if it is free.
func (g *Guard) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release unlocks the guard. Releasing an unlocked guard panics.
func (g *Guard) Release() {
	select {
	case <-g.ch:
	default:
		panic("guard: release of unlocked guard")
	}
}
