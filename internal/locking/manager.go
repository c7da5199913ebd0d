package locking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrLockTimeout indicates a wallet lock could not be acquired within the
// bounded wait. The operation is safe for the caller to retry.
var ErrLockTimeout = errors.New("timed out acquiring wallet lock")

// Manager serializes mutating operations per wallet. Locks for multiple
// wallets are always taken in ascending walletId order so two transfers
// targeting each other's wallets cannot deadlock.
type Manager struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	timeout time.Duration
}

// NewManager builds a lock manager with the given acquisition timeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{locks: make(map[string]chan struct{}), timeout: timeout}
}

func (m *Manager) lockFor(walletID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[walletID]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[walletID] = ch
	}
	return ch
}

// WithLock acquires every listed wallet's lock in canonical order, runs fn,
// and releases on every exit path including panics. The bounded wait covers
// the whole acquisition; on timeout nothing stays held.
func (m *Manager) WithLock(ctx context.Context, walletIDs []string, fn func(ctx context.Context) error) error {
	ordered := canonical(walletIDs)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, walletID := range ordered {
		ch := m.lockFor(walletID)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return ErrLockTimeout
		case <-ctx.Done():
			release()
			return ctx.Err()
		}
	}

	defer release()
	return fn(ctx)
}

func canonical(walletIDs []string) []string {
	seen := make(map[string]struct{}, len(walletIDs))
	ordered := make([]string, 0, len(walletIDs))
	for _, id := range walletIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	return ordered
}
