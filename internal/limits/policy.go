package limits

import (
	"context"
	"errors"
	"time"

	"github.com/ismail-platform/wallet/internal/ledger"
)

var (
	// ErrDailyLimitExceeded indicates the trailing 24-hour outgoing total
	// plus the requested amount would exceed the tier ceiling.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")

	// ErrMonthlyLimitExceeded indicates the trailing 30-day outgoing total
	// plus the requested amount would exceed the tier ceiling.
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")
)

const (
	dailyWindow   = 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour
)

// Ceiling is a pair of outgoing ceilings in minor units.
type Ceiling struct {
	Daily   int64
	Monthly int64
}

// DefaultCeilings returns the per-tier ceilings in XOF minor units.
func DefaultCeilings() map[string]Ceiling {
	return map[string]Ceiling{
		"standard": {Daily: 1_000_000, Monthly: 10_000_000},
		"premium":  {Daily: 5_000_000, Monthly: 50_000_000},
	}
}

// Policy evaluates rolling-window spending limits from ledger history.
// Credits never count; only outgoing kinds do. Checks run inside the wallet
// lock so a concurrent operation cannot race past the ceiling between check
// and commit.
type Policy struct {
	store    ledger.Store
	ceilings map[string]Ceiling
}

// NewPolicy builds a policy over the given ledger store.
func NewPolicy(store ledger.Store, ceilings map[string]Ceiling) *Policy {
	if len(ceilings) == 0 {
		ceilings = DefaultCeilings()
	}
	return &Policy{store: store, ceilings: ceilings}
}

// Check allows or denies the operation for the wallet's tier as of the
// given instant. Non-outgoing kinds are always allowed.
func (p *Policy) Check(ctx context.Context, walletID, tier string, amount int64, kind ledger.Kind, asOf time.Time) error {
	if !kind.Outgoing() || amount <= 0 {
		return nil
	}

	ceiling, ok := p.ceilings[tier]
	if !ok {
		ceiling = p.ceilings["standard"]
	}

	daily, err := p.store.OutgoingTotalSince(ctx, walletID, asOf.Add(-dailyWindow))
	if err != nil {
		return err
	}
	if daily+amount > ceiling.Daily {
		return ErrDailyLimitExceeded
	}

	monthly, err := p.store.OutgoingTotalSince(ctx, walletID, asOf.Add(-monthlyWindow))
	if err != nil {
		return err
	}
	if monthly+amount > ceiling.Monthly {
		return ErrMonthlyLimitExceeded
	}
	return nil
}
