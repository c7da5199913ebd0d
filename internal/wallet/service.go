package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/money"
)

var (
	// ErrInvalidPIN indicates the supplied PIN did not match the stored hash.
	ErrInvalidPIN = errors.New("invalid PIN")

	// ErrPINLocked indicates too many failed PIN attempts in the window.
	ErrPINLocked = errors.New("PIN locked after repeated failures")

	// ErrInactive indicates the wallet is FROZEN or CLOSED and cannot take
	// part in mutating operations.
	ErrInactive = errors.New("wallet is not active")
)

// Directory registers wallets under their owner's ismailId so transfer
// recipients can be resolved.
type Directory interface {
	Register(ctx context.Context, ismailID, walletID string) error
}

// Service owns wallet account lifecycle and PIN authorization.
type Service struct {
	repo      Repository
	store     ledger.Store
	directory Directory
	attempts  AttemptLimiter
}

// NewService builds a wallet service instance.
func NewService(repo Repository, store ledger.Store, directory Directory, attempts AttemptLimiter) *Service {
	if attempts == nil {
		attempts = NewNoopLimiter()
	}
	return &Service{repo: repo, store: store, directory: directory, attempts: attempts}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	OwnerID  string
	IsmailID string
	Currency string
	PIN      string
}

// Create provisions a wallet with a zero balance, hashes the PIN and
// registers the wallet in the recipient directory.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return Account{}, fmt.Errorf("invalid owner id: %w", err)
	}
	if input.IsmailID == "" {
		return Account{}, errors.New("ismail id is required")
	}
	if len(input.PIN) < 4 {
		return Account{}, errors.New("PIN must be at least 4 digits")
	}

	currency := money.XOF
	if input.Currency != "" {
		parsed, err := money.ParseCurrency(input.Currency)
		if err != nil {
			return Account{}, err
		}
		currency = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		IsmailID:  input.IsmailID,
		Currency:  currency,
		Status:    StatusActive,
		Tier:      TierStandard,
		PINHash:   hash,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.EnsureWallet(ctx, account.ID, currency); err != nil {
		return Account{}, err
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	if s.directory != nil {
		if err := s.directory.Register(ctx, account.IsmailID, account.ID); err != nil {
			return Account{}, err
		}
	}
	return account, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, id)
}

// RequireActive fetches the wallet and rejects non-ACTIVE states.
func (s *Service) RequireActive(ctx context.Context, id string) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if account.Status != StatusActive {
		return Account{}, ErrInactive
	}
	return account, nil
}

// VerifyPIN checks the PIN against the stored hash, recording failures
// toward the lockout window. The error does not reveal whether the wallet
// exists beyond what the caller already established.
func (s *Service) VerifyPIN(ctx context.Context, walletID, pin string) error {
	if s.attempts.Locked(ctx, walletID) {
		return ErrPINLocked
	}
	account, err := s.repo.Get(ctx, walletID)
	if err != nil {
		return ErrInvalidPIN
	}
	if err := bcrypt.CompareHashAndPassword(account.PINHash, []byte(pin)); err != nil {
		s.attempts.RecordFailure(ctx, walletID)
		return ErrInvalidPIN
	}
	s.attempts.Reset(ctx, walletID)
	return nil
}

// Freeze suspends a wallet. In-flight operations already past validation
// complete; new ones are rejected.
func (s *Service) Freeze(ctx context.Context, id string) error {
	return s.repo.UpdateStatus(ctx, id, StatusFrozen)
}

// Unfreeze reactivates a FROZEN wallet. CLOSED wallets stay closed.
func (s *Service) Unfreeze(ctx context.Context, id string) error {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if account.Status == StatusClosed {
		return ErrInactive
	}
	return s.repo.UpdateStatus(ctx, id, StatusActive)
}

// Close permanently retires the wallet. The ledger history remains.
func (s *Service) Close(ctx context.Context, id string) error {
	return s.repo.UpdateStatus(ctx, id, StatusClosed)
}
