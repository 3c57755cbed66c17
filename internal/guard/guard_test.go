package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	g := New()
	if err := g.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if g.TryAcquire() {
		t.Fatal("TryAcquire should fail while held")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("TryAcquire should succeed after release")
	}
	g.Release()
}

func TestAcquireTimeout(t *testing.T) {
	g := New()
	g.Acquire(context.Background(), time.Second)
	defer g.Release()

	start := time.Now()
	err := g.Acquire(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned too early: %v", elapsed)
	}
}

func TestAcquireZeroTimeout(t *testing.T) {
	g := New()
	if err := g.Acquire(context.Background(), 0); err != nil {
		t.Fatalf("free guard should be acquired: %v", err)
	}
	if err := g.Acquire(context.Background(), 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	g.Release()
}

func TestAcquireContextCancel(t *testing.T) {
	g := New()
	g.Acquire(context.Background(), time.Second)
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Acquire(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWaiterGetsLockAfterRelease(t *testing.T) {
	g := New()
	g.Acquire(context.Background(), time.Second)

	done := make(chan error, 1)
	go func() {
		done <- g.Acquire(context.Background(), time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	g.Release()

	if err := <-done; err != nil {
		t.Fatalf("waiter should acquire after release: %v", err)
	}
	g.Release()
}

func TestMutualExclusion(t *testing.T) {
	g := New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background(), 5*time.Second); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			g.Release()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("guard admitted %d holders at once", maxSeen)
	}
}

func TestReleaseUnlockedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New().Release()
}
