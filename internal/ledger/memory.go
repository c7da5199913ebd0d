package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ismail-platform/wallet/internal/money"
)

type memoryAccount struct {
	currency money.Currency
	balance  int64
	version  int64
}

type memoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*memoryAccount
	entries   map[string]*Entry
	byWallet  map[string][]*Entry
	committed map[string]struct{} // walletID+"\x00"+idempotencyKey
}

// NewMemoryStore creates a concurrency-safe in-memory store useful for unit
// tests. It honours the same atomicity and versioning contract as the
// Postgres store.
func NewMemoryStore() Store {
	return &memoryStore{
		accounts:  make(map[string]*memoryAccount),
		entries:   make(map[string]*Entry),
		byWallet:  make(map[string][]*Entry),
		committed: make(map[string]struct{}),
	}
}

func (s *memoryStore) EnsureWallet(_ context.Context, walletID string, currency money.Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[walletID]; !exists {
		s.accounts[walletID] = &memoryAccount{currency: currency}
	}
	return nil
}

func (s *memoryStore) AppendCommitted(_ context.Context, entries []Entry, checks []VersionCheck) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, check := range checks {
		acct, ok := s.accounts[check.WalletID]
		if !ok {
			return CommitResult{}, ErrNotFound
		}
		if acct.version != check.Version {
			return CommitResult{}, ErrConflict
		}
	}

	// Dry run: validate every entry before mutating anything.
	pending := make(map[string]int64)
	for _, e := range entries {
		acct, ok := s.accounts[e.WalletID]
		if !ok {
			return CommitResult{}, ErrNotFound
		}
		if e.IdempotencyKey != "" {
			if _, dup := s.committed[dedupeKey(e.WalletID, e.IdempotencyKey)]; dup {
				return CommitResult{}, ErrDuplicateCommitted
			}
		}
		balance, staged := pending[e.WalletID]
		if !staged {
			balance = acct.balance
		}
		next, err := money.New(balance, acct.currency).Add(money.New(e.Delta, acct.currency))
		if err != nil {
			return CommitResult{}, err
		}
		if next.IsNegative() {
			return CommitResult{}, ErrNegativeBalance
		}
		pending[e.WalletID] = next.Amount
	}

	result := CommitResult{
		EntryIDs: make([]string, 0, len(entries)),
		Balances: make(map[string]int64, len(pending)),
		Versions: make(map[string]int64, len(pending)),
	}

	running := make(map[string]int64)
	for i := range entries {
		e := entries[i]
		acct := s.accounts[e.WalletID]
		balance, staged := running[e.WalletID]
		if !staged {
			balance = acct.balance
		}
		balance += e.Delta
		running[e.WalletID] = balance

		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		e.Status = StatusCommitted
		e.ResultingBalance = balance
		e.Currency = acct.currency

		stored := e
		s.entries[stored.ID] = &stored
		s.byWallet[stored.WalletID] = append(s.byWallet[stored.WalletID], &stored)
		if stored.IdempotencyKey != "" {
			s.committed[dedupeKey(stored.WalletID, stored.IdempotencyKey)] = struct{}{}
		}
		result.EntryIDs = append(result.EntryIDs, stored.ID)
	}

	for walletID, balance := range running {
		acct := s.accounts[walletID]
		acct.balance = balance
		acct.version++
		result.Balances[walletID] = balance
		result.Versions[walletID] = acct.version
	}

	return result, nil
}

func (s *memoryStore) ReadBalance(_ context.Context, walletID string) (money.Money, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[walletID]
	if !ok {
		return money.Money{}, 0, ErrNotFound
	}
	return money.New(acct.balance, acct.currency), acct.version, nil
}

func (s *memoryStore) ReadHistory(_ context.Context, walletID string, page Page) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[walletID]; !ok {
		return nil, ErrNotFound
	}
	all := s.byWallet[walletID]
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Number < 0 {
		page.Number = 0
	}

	// Stored in append order; history is served newest first.
	start := len(all) - page.Number*page.Size
	if start <= 0 {
		return []Entry{}, nil
	}
	end := start - page.Size
	if end < 0 {
		end = 0
	}
	out := make([]Entry, 0, start-end)
	for i := start - 1; i >= end; i-- {
		out = append(out, *all[i])
	}
	return out, nil
}

func (s *memoryStore) OutgoingTotalSince(_ context.Context, walletID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[walletID]; !ok {
		return 0, ErrNotFound
	}
	var total int64
	for _, e := range s.byWallet[walletID] {
		if e.Status != StatusCommitted || !e.Kind.Outgoing() || e.CreatedAt.Before(since) {
			continue
		}
		total += -e.Delta
	}
	return total, nil
}

func (s *memoryStore) Reverse(_ context.Context, entryID, reason string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.entries[entryID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	if original.Status == StatusReversed {
		return Entry{}, ErrDuplicateCommitted
	}
	acct, ok := s.accounts[original.WalletID]
	if !ok {
		return Entry{}, ErrNotFound
	}

	compensation := compensatingEntry(*original, reason)
	next, err := money.New(acct.balance, acct.currency).Add(money.New(compensation.Delta, acct.currency))
	if err != nil {
		return Entry{}, err
	}
	if next.IsNegative() {
		return Entry{}, ErrNegativeBalance
	}

	original.Status = StatusReversed
	compensation.ResultingBalance = next.Amount
	compensation.Currency = acct.currency

	stored := compensation
	s.entries[stored.ID] = &stored
	s.byWallet[stored.WalletID] = append(s.byWallet[stored.WalletID], &stored)
	s.committed[dedupeKey(stored.WalletID, stored.IdempotencyKey)] = struct{}{}
	acct.balance = next.Amount
	acct.version++

	return stored, nil
}

func dedupeKey(walletID, idempotencyKey string) string {
	return walletID + "\x00" + idempotencyKey
}

// compensatingEntry builds the offsetting record for a reversal. The
// original keeps its row; only its status changes.
func compensatingEntry(original Entry, reason string) Entry {
	kind := KindCredit
	if original.Delta > 0 {
		kind = KindDebit
	}
	return Entry{
		ID:                   uuid.NewString(),
		WalletID:             original.WalletID,
		Delta:                -original.Delta,
		Kind:                 kind,
		CounterpartyWalletID: original.CounterpartyWalletID,
		IdempotencyKey:       original.IdempotencyKey + ":reversal",
		ExternalReference:    reason,
		Status:               StatusCommitted,
		ReversalOf:           original.ID,
		CreatedAt:            time.Now().UTC(),
	}
}
