package locking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWithLockSerializesPerWallet(t *testing.T) {
	m := NewManager(time.Second)
	ctx := context.Background()

	var counter int
	var wg sync.WaitGroup
	const workers = 20

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, []string{"wallet-a"}, func(context.Context) error {
				// Unsynchronized read-modify-write: only safe if the
				// manager actually serializes.
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("expected counter %d, got %d", workers, counter)
	}
}

func TestWithLockTimesOut(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	ctx := context.Background()

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = m.WithLock(ctx, []string{"wallet-a"}, func(context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	err := m.WithLock(ctx, []string{"wallet-a"}, func(context.Context) error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	close(done)
}

func TestWithLockOpposingTransfersDoNotDeadlock(t *testing.T) {
	m := NewManager(2 * time.Second)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		pair := []string{"wallet-a", "wallet-b"}
		if i%2 == 1 {
			pair = []string{"wallet-b", "wallet-a"}
		}
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			if err := m.WithLock(ctx, ids, func(context.Context) error {
				time.Sleep(time.Millisecond)
				return nil
			}); err != nil {
				t.Errorf("with lock %v: %v", ids, err)
			}
		}(pair)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	m := NewManager(time.Second)
	ctx := context.Background()

	func() {
		defer func() { _ = recover() }()
		_ = m.WithLock(ctx, []string{"wallet-a"}, func(context.Context) error {
			panic("handler blew up")
		})
	}()

	if err := m.WithLock(ctx, []string{"wallet-a"}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("lock not released after panic: %v", err)
	}
}

func TestWithLockCancelledContext(t *testing.T) {
	m := NewManager(time.Minute)

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = m.WithLock(context.Background(), []string{"wallet-a"}, func(context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := m.WithLock(ctx, []string{"wallet-a"}, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
