package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ismail-platform/wallet/internal/money"
)

var (
	// ErrNotFound occurs when a wallet is unknown to the ledger.
	ErrNotFound = errors.New("wallet not found")

	// ErrConflict indicates a concurrent writer advanced the wallet version
	// past the value the caller observed. The operation is safe to retry
	// from validation.
	ErrConflict = errors.New("wallet version conflict")

	// ErrDuplicateCommitted indicates an entry with the same wallet and
	// idempotency key is already committed. Committing it again would
	// corrupt the ledger.
	ErrDuplicateCommitted = errors.New("idempotency key already committed for wallet")

	// ErrNegativeBalance indicates the commit would drive a wallet balance
	// below zero.
	ErrNegativeBalance = errors.New("entry would overdraw wallet")

	// ErrEntryNotFound occurs when a referenced ledger entry does not exist.
	ErrEntryNotFound = errors.New("ledger entry not found")
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindCredit      Kind = "CREDIT"
	KindDebit       Kind = "DEBIT"
	KindTransferOut Kind = "TRANSFER_OUT"
	KindTransferIn  Kind = "TRANSFER_IN"
	KindWithdrawal  Kind = "WITHDRAWAL"
	KindFee         Kind = "FEE"
)

// Outgoing reports whether the kind counts against spending limits.
func (k Kind) Outgoing() bool {
	switch k {
	case KindDebit, KindTransferOut, KindWithdrawal:
		return true
	default:
		return false
	}
}

// Status tracks the lifecycle of a committed entry. Entries are never
// deleted; a reversed entry is offset by a compensating entry referencing it.
type Status string

const (
	StatusCommitted Status = "COMMITTED"
	StatusReversed  Status = "REVERSED"
)

// Entry is one immutable balance-affecting record. Delta is signed: positive
// for credits, negative for debits. ResultingBalance is a write-once audit
// snapshot assigned by the store at commit time.
type Entry struct {
	ID                   string         `json:"id"`
	WalletID             string         `json:"wallet_id"`
	Delta                int64          `json:"delta"`
	ResultingBalance     int64          `json:"resulting_balance"`
	Currency             money.Currency `json:"currency"`
	Kind                 Kind           `json:"kind"`
	CounterpartyWalletID string         `json:"counterparty_wallet_id,omitempty"`
	TransferID           string         `json:"transfer_id,omitempty"`
	IdempotencyKey       string         `json:"idempotency_key,omitempty"`
	ExternalReference    string         `json:"external_reference,omitempty"`
	Status               Status         `json:"status"`
	ReversalOf           string         `json:"reversal_of,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// VersionCheck pins the wallet version the caller observed before building
// the commit. A mismatch at commit time fails with ErrConflict.
type VersionCheck struct {
	WalletID string
	Version  int64
}

// CommitResult reports the outcome of an atomic append.
type CommitResult struct {
	EntryIDs []string
	Balances map[string]int64
	Versions map[string]int64
}

// Page selects a slice of history, zero-based.
type Page struct {
	Number int
	Size   int
}

// Store is the durable source of truth for ledger entries and the cached
// balance projection per wallet. All writes are atomic: every entry in a
// call commits, or none do.
type Store interface {
	// EnsureWallet registers a wallet with a zero balance. Registering an
	// existing wallet is a no-op.
	EnsureWallet(ctx context.Context, walletID string, currency money.Currency) error

	// AppendCommitted atomically writes the entries and advances each
	// affected wallet's balance and version.
	AppendCommitted(ctx context.Context, entries []Entry, checks []VersionCheck) (CommitResult, error)

	// ReadBalance returns the committed balance and current version.
	ReadBalance(ctx context.Context, walletID string) (money.Money, int64, error)

	// ReadHistory returns entries in reverse chronological order.
	ReadHistory(ctx context.Context, walletID string, page Page) ([]Entry, error)

	// OutgoingTotalSince sums the magnitude of committed, non-reversed
	// outgoing entries created at or after the cutoff.
	OutgoingTotalSince(ctx context.Context, walletID string, since time.Time) (int64, error)

	// Reverse marks the entry REVERSED and appends a compensating entry
	// referencing it, atomically. The compensating entry is returned.
	Reverse(ctx context.Context, entryID, reason string) (Entry, error)
}
