package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ismail-platform/wallet/internal/fx"
	"github.com/ismail-platform/wallet/internal/idempotency"
	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/limits"
	"github.com/ismail-platform/wallet/internal/locking"
	"github.com/ismail-platform/wallet/internal/money"
	"github.com/ismail-platform/wallet/internal/notification"
	"github.com/ismail-platform/wallet/internal/settlement"
	"github.com/ismail-platform/wallet/internal/wallet"
)

// RecipientResolver resolves a platform identity to its wallet. Backed by
// the directory, which mirrors what the external auth service knows.
type RecipientResolver interface {
	Resolve(ctx context.Context, ismailID string) (string, error)
}

// Engine orchestrates every mutating wallet operation: validation, limit
// check, idempotency check, per-wallet serialization and the atomic ledger
// commit. Reads go through the stats/wallet services instead.
type Engine struct {
	wallets   *wallet.Service
	store     ledger.Store
	locks     *locking.Manager
	guard     *idempotency.Guard
	limits    *limits.Policy
	converter *fx.Converter
	resolver  RecipientResolver
	settler   settlement.Provider
	notifier  notification.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// Deps aggregates the engine's collaborators.
type Deps struct {
	Wallets   *wallet.Service
	Store     ledger.Store
	Locks     *locking.Manager
	Guard     *idempotency.Guard
	Limits    *limits.Policy
	Converter *fx.Converter
	Resolver  RecipientResolver
	Settler   settlement.Provider
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

// New builds a transaction engine.
func New(d Deps) *Engine {
	if d.Settler == nil {
		d.Settler = settlement.StaticProvider{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Engine{
		wallets:   d.Wallets,
		store:     d.Store,
		locks:     d.Locks,
		guard:     d.Guard,
		limits:    d.Limits,
		converter: d.Converter,
		resolver:  d.Resolver,
		settler:   d.Settler,
		notifier:  d.Notifier,
		logger:    d.Logger,
		now:       time.Now,
	}
}

// CreditInput captures an incoming top-up.
type CreditInput struct {
	WalletID          string `json:"wallet_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Method            string `json:"method"`
	ExternalReference string `json:"external_reference"`
	IdempotencyKey    string `json:"idempotency_key"`
}

// CreditResult reports a committed credit.
type CreditResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
	Currency      string `json:"currency"`
}

// Credit applies incoming funds to a wallet. Amounts in a supported foreign
// currency are converted into the wallet's home currency before arithmetic;
// credits never count against spending limits.
func (e *Engine) Credit(ctx context.Context, input CreditInput) (CreditResult, error) {
	if input.Amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	currency, err := money.ParseCurrency(input.Currency)
	if err != nil {
		return CreditResult{}, err
	}
	if input.IdempotencyKey == "" {
		return CreditResult{}, ErrMissingIdempotencyKey
	}

	account, err := e.wallets.RequireActive(ctx, input.WalletID)
	if err != nil {
		return CreditResult{}, err
	}

	amount := money.New(input.Amount, currency)
	if currency != account.Currency {
		converted, err := e.converter.Convert(ctx, amount, account.Currency)
		if err != nil {
			return CreditResult{}, err
		}
		amount = converted.Converted
		if !amount.IsPositive() {
			return CreditResult{}, ErrInvalidAmount
		}
	}

	reservation, err := e.guard.Reserve(ctx, account.ID, input.IdempotencyKey, input)
	if err != nil {
		return CreditResult{}, err
	}
	switch reservation.Status {
	case idempotency.DuplicatePending:
		return CreditResult{}, idempotency.ErrConcurrentDuplicate
	case idempotency.DuplicateCommitted:
		var prior CreditResult
		if err := json.Unmarshal(reservation.PriorResult, &prior); err != nil {
			return CreditResult{}, fmt.Errorf("decode recorded result: %w", err)
		}
		return prior, nil
	}

	var result CreditResult
	err = e.locks.WithLock(ctx, []string{account.ID}, func(ctx context.Context) error {
		_, version, err := e.store.ReadBalance(ctx, account.ID)
		if err != nil {
			return err
		}
		commit, err := e.store.AppendCommitted(ctx, []ledger.Entry{{
			WalletID:          account.ID,
			Delta:             amount.Amount,
			Kind:              ledger.KindCredit,
			IdempotencyKey:    input.IdempotencyKey,
			ExternalReference: input.ExternalReference,
		}}, []ledger.VersionCheck{{WalletID: account.ID, Version: version}})
		if err != nil {
			return err
		}
		result = CreditResult{
			TransactionID: commit.EntryIDs[0],
			NewBalance:    commit.Balances[account.ID],
			Currency:      string(account.Currency),
		}
		return nil
	})
	if err != nil {
		e.guard.Release(ctx, reservation)
		return CreditResult{}, err
	}

	e.finalize(ctx, reservation, result)
	return result, nil
}

// TransferInput captures a wallet-to-wallet payment.
type TransferInput struct {
	WalletID          string `json:"wallet_id"`
	RecipientIsmailID string `json:"recipient_ismail_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	PIN               string `json:"-"`
	IdempotencyKey    string `json:"idempotency_key"`
	RequestorUserID   string `json:"-"`
}

// TransferResult reports the committed pair of ledger entries.
type TransferResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
}

// Transfer moves funds between two wallets atomically. The recipient is
// resolved before any lock is taken; both wallets are then locked in
// canonical order and the paired TRANSFER_OUT/TRANSFER_IN entries commit as
// one unit.
func (e *Engine) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	currency, err := money.ParseCurrency(input.Currency)
	if err != nil {
		return TransferResult{}, err
	}
	if input.IdempotencyKey == "" {
		return TransferResult{}, ErrMissingIdempotencyKey
	}

	source, err := e.wallets.RequireActive(ctx, input.WalletID)
	if err != nil {
		return TransferResult{}, err
	}
	if input.RequestorUserID != "" && source.OwnerID != input.RequestorUserID {
		return TransferResult{}, ErrNotOwner
	}
	if currency != source.Currency {
		return TransferResult{}, fmt.Errorf("%w: transfers must use the wallet currency %s", money.ErrCurrencyMismatch, source.Currency)
	}

	recipientID, err := e.resolver.Resolve(ctx, input.RecipientIsmailID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %s", ErrRecipientUnavailable, input.RecipientIsmailID)
	}
	if recipientID == source.ID {
		return TransferResult{}, ErrSameWallet
	}
	recipient, err := e.wallets.Get(ctx, recipientID)
	if err != nil || recipient.Status != wallet.StatusActive {
		return TransferResult{}, fmt.Errorf("%w: %s", ErrRecipientUnavailable, input.RecipientIsmailID)
	}
	if recipient.Currency != source.Currency {
		return TransferResult{}, fmt.Errorf("%w: recipient wallet holds %s", money.ErrCurrencyMismatch, recipient.Currency)
	}

	if err := e.wallets.VerifyPIN(ctx, source.ID, input.PIN); err != nil {
		return TransferResult{}, err
	}

	reservation, err := e.guard.Reserve(ctx, source.ID, input.IdempotencyKey, input)
	if err != nil {
		return TransferResult{}, err
	}
	switch reservation.Status {
	case idempotency.DuplicatePending:
		return TransferResult{}, idempotency.ErrConcurrentDuplicate
	case idempotency.DuplicateCommitted:
		var prior TransferResult
		if err := json.Unmarshal(reservation.PriorResult, &prior); err != nil {
			return TransferResult{}, fmt.Errorf("decode recorded result: %w", err)
		}
		return prior, nil
	}

	var result TransferResult
	err = e.locks.WithLock(ctx, []string{source.ID, recipient.ID}, func(ctx context.Context) error {
		balance, sourceVersion, err := e.store.ReadBalance(ctx, source.ID)
		if err != nil {
			return err
		}
		_, recipientVersion, err := e.store.ReadBalance(ctx, recipient.ID)
		if err != nil {
			return err
		}
		remaining, err := balance.Sub(money.New(input.Amount, source.Currency))
		if err != nil {
			return err
		}
		if remaining.IsNegative() {
			return ErrInsufficientBalance
		}
		if err := e.limits.Check(ctx, source.ID, string(source.Tier), input.Amount, ledger.KindTransferOut, e.now().UTC()); err != nil {
			return err
		}

		transferID := uuid.NewString()
		commit, err := e.store.AppendCommitted(ctx, []ledger.Entry{
			{
				WalletID:             source.ID,
				Delta:                -input.Amount,
				Kind:                 ledger.KindTransferOut,
				CounterpartyWalletID: recipient.ID,
				TransferID:           transferID,
				IdempotencyKey:       input.IdempotencyKey,
			},
			{
				WalletID:             recipient.ID,
				Delta:                input.Amount,
				Kind:                 ledger.KindTransferIn,
				CounterpartyWalletID: source.ID,
				TransferID:           transferID,
				IdempotencyKey:       input.IdempotencyKey,
			},
		}, []ledger.VersionCheck{
			{WalletID: source.ID, Version: sourceVersion},
			{WalletID: recipient.ID, Version: recipientVersion},
		})
		if err != nil {
			return err
		}
		result = TransferResult{TransactionID: transferID, NewBalance: commit.Balances[source.ID]}
		return nil
	})
	if err != nil {
		e.guard.Release(ctx, reservation)
		return TransferResult{}, err
	}

	e.finalize(ctx, reservation, result)

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.OwnerID,
			Body:        fmt.Sprintf("You received %s from %s", money.New(input.Amount, source.Currency), source.IsmailID),
		})
	}
	return result, nil
}

// WithdrawInput captures a payout to an external rail.
type WithdrawInput struct {
	WalletID        string `json:"wallet_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Method          string `json:"method"`
	Destination     string `json:"destination"`
	PIN             string `json:"-"`
	IdempotencyKey  string `json:"idempotency_key"`
	RequestorUserID string `json:"-"`
}

// WithdrawResult reports the ledger outcome plus the settlement state.
// Settlement "reversed" means the funds moved internally but the external
// rail refused the payout, so a compensating entry restored the balance.
type WithdrawResult struct {
	TransactionID       string `json:"transaction_id"`
	NewBalance          int64  `json:"new_balance"`
	Settlement          string `json:"settlement"`
	SettlementReference string `json:"settlement_reference,omitempty"`
}

// Withdraw debits the wallet and then hands the payout to the external
// settlement rail outside the lock. A failed settlement is compensated with
// a reversal entry, never by deleting the original.
func (e *Engine) Withdraw(ctx context.Context, input WithdrawInput) (WithdrawResult, error) {
	if input.Amount <= 0 {
		return WithdrawResult{}, ErrInvalidAmount
	}
	currency, err := money.ParseCurrency(input.Currency)
	if err != nil {
		return WithdrawResult{}, err
	}
	if input.IdempotencyKey == "" {
		return WithdrawResult{}, ErrMissingIdempotencyKey
	}

	account, err := e.wallets.RequireActive(ctx, input.WalletID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if input.RequestorUserID != "" && account.OwnerID != input.RequestorUserID {
		return WithdrawResult{}, ErrNotOwner
	}
	if currency != account.Currency {
		return WithdrawResult{}, fmt.Errorf("%w: withdrawals must use the wallet currency %s", money.ErrCurrencyMismatch, account.Currency)
	}

	if err := e.wallets.VerifyPIN(ctx, account.ID, input.PIN); err != nil {
		return WithdrawResult{}, err
	}

	reservation, err := e.guard.Reserve(ctx, account.ID, input.IdempotencyKey, input)
	if err != nil {
		return WithdrawResult{}, err
	}
	switch reservation.Status {
	case idempotency.DuplicatePending:
		return WithdrawResult{}, idempotency.ErrConcurrentDuplicate
	case idempotency.DuplicateCommitted:
		var prior WithdrawResult
		if err := json.Unmarshal(reservation.PriorResult, &prior); err != nil {
			return WithdrawResult{}, fmt.Errorf("decode recorded result: %w", err)
		}
		return prior, nil
	}

	var entryID string
	var newBalance int64
	err = e.locks.WithLock(ctx, []string{account.ID}, func(ctx context.Context) error {
		balance, version, err := e.store.ReadBalance(ctx, account.ID)
		if err != nil {
			return err
		}
		remaining, err := balance.Sub(money.New(input.Amount, account.Currency))
		if err != nil {
			return err
		}
		if remaining.IsNegative() {
			return ErrInsufficientBalance
		}
		if err := e.limits.Check(ctx, account.ID, string(account.Tier), input.Amount, ledger.KindWithdrawal, e.now().UTC()); err != nil {
			return err
		}

		commit, err := e.store.AppendCommitted(ctx, []ledger.Entry{{
			WalletID:          account.ID,
			Delta:             -input.Amount,
			Kind:              ledger.KindWithdrawal,
			IdempotencyKey:    input.IdempotencyKey,
			ExternalReference: input.Destination,
		}}, []ledger.VersionCheck{{WalletID: account.ID, Version: version}})
		if err != nil {
			return err
		}
		entryID = commit.EntryIDs[0]
		newBalance = commit.Balances[account.ID]
		return nil
	})
	if err != nil {
		e.guard.Release(ctx, reservation)
		return WithdrawResult{}, err
	}

	result := WithdrawResult{
		TransactionID: entryID,
		NewBalance:    newBalance,
		Settlement:    settlement.StatusConfirmed,
	}

	// Settlement happens after the commit, outside the lock. Failure is
	// compensated, never silently absorbed.
	confirmation, settleErr := e.settler.Settle(ctx, settlement.Request{
		WalletID:    account.ID,
		Amount:      money.New(input.Amount, account.Currency),
		Method:      input.Method,
		Destination: input.Destination,
		Reference:   entryID,
	})
	if settleErr != nil || confirmation.Status != settlement.StatusConfirmed {
		compensation, revErr := e.store.Reverse(ctx, entryID, "settlement failed")
		if revErr != nil {
			e.logger.Error("failed to reverse unsettled withdrawal",
				slog.String("entry_id", entryID), slog.Any("error", revErr))
			e.guard.Release(ctx, reservation)
			return WithdrawResult{}, fmt.Errorf("settlement failed and reversal did not commit: %w", revErr)
		}
		result.Settlement = "reversed"
		result.NewBalance = compensation.ResultingBalance
		if e.notifier != nil {
			_ = e.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindWithdrawalReversed,
				Destination: account.OwnerID,
				Body:        fmt.Sprintf("Withdrawal of %s was returned to your wallet", money.New(input.Amount, account.Currency)),
			})
		}
	} else {
		result.SettlementReference = confirmation.Reference
	}

	e.finalize(ctx, reservation, result)
	return result, nil
}

// ConvertResult reports a conversion quote.
type ConvertResult struct {
	ConvertedAmount int64  `json:"converted_amount"`
	Currency        string `json:"currency"`
	RateMicro       int64  `json:"rate_micro"`
}

// Convert is a pure read: no lock, no ledger write, bounded rate staleness.
func (e *Engine) Convert(ctx context.Context, amount int64, from, to string) (ConvertResult, error) {
	if amount <= 0 {
		return ConvertResult{}, ErrInvalidAmount
	}
	fromCurrency, err := money.ParseCurrency(from)
	if err != nil {
		return ConvertResult{}, err
	}
	toCurrency, err := money.ParseCurrency(to)
	if err != nil {
		return ConvertResult{}, err
	}
	res, err := e.converter.Convert(ctx, money.New(amount, fromCurrency), toCurrency)
	if err != nil {
		return ConvertResult{}, err
	}
	return ConvertResult{
		ConvertedAmount: res.Converted.Amount,
		Currency:        string(toCurrency),
		RateMicro:       res.RateMicro,
	}, nil
}

// finalize records the committed result for idempotent replays. The commit
// already happened; a recording failure only degrades retries, so it is
// logged rather than surfaced.
func (e *Engine) finalize(ctx context.Context, reservation idempotency.Reservation, result any) {
	if err := e.guard.Finalize(ctx, reservation, result); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("failed to record idempotent result", slog.Any("error", err))
	}
}
