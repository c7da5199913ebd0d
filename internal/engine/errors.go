package engine

import (
	"errors"
	"net/http"

	"github.com/ismail-platform/wallet/internal/fx"
	"github.com/ismail-platform/wallet/internal/idempotency"
	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/limits"
	"github.com/ismail-platform/wallet/internal/locking"
	"github.com/ismail-platform/wallet/internal/money"
	"github.com/ismail-platform/wallet/internal/wallet"
)

var (
	// ErrInvalidAmount indicates a zero or negative operation amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance indicates the wallet cannot cover the debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRecipientUnavailable indicates the transfer recipient is unknown,
	// closed or otherwise unable to receive funds.
	ErrRecipientUnavailable = errors.New("recipient unavailable")

	// ErrSameWallet indicates source and destination are the same wallet.
	ErrSameWallet = errors.New("cannot transfer to the same wallet")

	// ErrNotOwner indicates the caller does not own the source wallet.
	ErrNotOwner = errors.New("not owner of source wallet")

	// ErrMissingIdempotencyKey indicates the client omitted the key that
	// makes retries safe.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)

// Reason is the stable machine-readable code surfaced to clients alongside
// the human-readable message.
type Reason struct {
	Code   string
	Status int
}

// Classify maps an operation error to its reason code and HTTP status.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrSameWallet),
		errors.Is(err, ErrMissingIdempotencyKey),
		errors.Is(err, money.ErrUnsupportedCurrency),
		errors.Is(err, fx.ErrRateUnavailable):
		return Reason{Code: "validation_error", Status: http.StatusBadRequest}
	case errors.Is(err, money.ErrCurrencyMismatch):
		return Reason{Code: "currency_mismatch", Status: http.StatusBadRequest}
	case errors.Is(err, wallet.ErrInactive):
		return Reason{Code: "wallet_inactive", Status: http.StatusBadRequest}
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return Reason{Code: "wallet_not_found", Status: http.StatusNotFound}
	case errors.Is(err, wallet.ErrInvalidPIN):
		return Reason{Code: "invalid_pin", Status: http.StatusUnauthorized}
	case errors.Is(err, wallet.ErrPINLocked):
		return Reason{Code: "pin_locked", Status: http.StatusTooManyRequests}
	case errors.Is(err, ErrNotOwner):
		return Reason{Code: "not_owner", Status: http.StatusForbidden}
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ledger.ErrNegativeBalance):
		return Reason{Code: "insufficient_balance", Status: http.StatusBadRequest}
	case errors.Is(err, limits.ErrDailyLimitExceeded):
		return Reason{Code: "daily_limit_exceeded", Status: http.StatusBadRequest}
	case errors.Is(err, limits.ErrMonthlyLimitExceeded):
		return Reason{Code: "monthly_limit_exceeded", Status: http.StatusBadRequest}
	case errors.Is(err, ErrRecipientUnavailable):
		return Reason{Code: "recipient_unavailable", Status: http.StatusBadRequest}
	case errors.Is(err, fx.ErrStaleRate):
		return Reason{Code: "stale_rate", Status: http.StatusServiceUnavailable}
	case errors.Is(err, idempotency.ErrConcurrentDuplicate):
		return Reason{Code: "duplicate_in_flight", Status: http.StatusConflict}
	case errors.Is(err, idempotency.ErrPayloadMismatch):
		return Reason{Code: "idempotency_conflict", Status: http.StatusConflict}
	case errors.Is(err, ledger.ErrConflict), errors.Is(err, ledger.ErrDuplicateCommitted):
		return Reason{Code: "conflict", Status: http.StatusConflict}
	case errors.Is(err, locking.ErrLockTimeout):
		return Reason{Code: "lock_timeout", Status: http.StatusServiceUnavailable}
	case errors.Is(err, money.ErrOverflow):
		return Reason{Code: "amount_out_of_range", Status: http.StatusBadRequest}
	default:
		return Reason{Code: "internal_error", Status: http.StatusInternalServerError}
	}
}
