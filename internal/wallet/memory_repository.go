package wallet

import (
    "context"
    "errors"
    "sync"
)

type memoryRepository struct {
    mu      sync.RWMutex
    storage map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
    return &memoryRepository{storage: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.storage[account.ID]; exists {
        return errors.New("wallet exists")
    }
    r.storage[account.ID] = account
    return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Account, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    account, ok := r.storage[id]
    if !ok {
        return Account{}, ErrNotFound
    }
    return account, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id string, status Status) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    account, ok := r.storage[id]
    if !ok {
        return ErrNotFound
    }
    account.Status = status
    r.storage[id] = account
    return nil
}
