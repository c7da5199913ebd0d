package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/money"
)

func seedOutgoing(t *testing.T, store ledger.Store, walletID string, amount int64, age time.Duration, key string) {
	t.Helper()
	ctx := context.Background()
	_, version, err := store.ReadBalance(ctx, walletID)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if _, err := store.AppendCommitted(ctx, []ledger.Entry{{
		WalletID:       walletID,
		Delta:          -amount,
		Kind:           ledger.KindWithdrawal,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC().Add(-age),
	}}, []ledger.VersionCheck{{WalletID: walletID, Version: version}}); err != nil {
		t.Fatalf("seed outgoing: %v", err)
	}
}

func newFundedStore(t *testing.T, walletID string, balance int64) ledger.Store {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	if err := store.EnsureWallet(ctx, walletID, money.XOF); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if _, err := store.AppendCommitted(ctx, []ledger.Entry{{
		WalletID: walletID, Delta: balance, Kind: ledger.KindCredit, IdempotencyKey: "fund",
	}}, nil); err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
	return store
}

func TestCheckDailyCeiling(t *testing.T) {
	store := newFundedStore(t, "wallet-a", 50_000_000)
	seedOutgoing(t, store, "wallet-a", 999_000, time.Hour, "prior")

	policy := NewPolicy(store, nil)
	now := time.Now().UTC()

	err := policy.Check(context.Background(), "wallet-a", "standard", 2_000, ledger.KindWithdrawal, now)
	if !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected daily limit exceeded, got %v", err)
	}

	if err := policy.Check(context.Background(), "wallet-a", "standard", 1_000, ledger.KindWithdrawal, now); err != nil {
		t.Fatalf("expected 1000 within ceiling, got %v", err)
	}
}

func TestCheckDailyWindowRollsOver(t *testing.T) {
	store := newFundedStore(t, "wallet-a", 50_000_000)
	// Outside the trailing 24h window, inside the 30-day one.
	seedOutgoing(t, store, "wallet-a", 999_000, 25*time.Hour, "yesterday")

	policy := NewPolicy(store, nil)
	if err := policy.Check(context.Background(), "wallet-a", "standard", 900_000, ledger.KindWithdrawal, time.Now().UTC()); err != nil {
		t.Fatalf("expected rollover to clear daily window, got %v", err)
	}
}

func TestCheckMonthlyCeiling(t *testing.T) {
	store := newFundedStore(t, "wallet-a", 50_000_000)
	for i, age := range []time.Duration{2, 5, 10, 15, 20} {
		seedOutgoing(t, store, "wallet-a", 999_000 * 2, time.Duration(age)*24*time.Hour, "d"+string(rune('a'+i)))
	}

	policy := NewPolicy(store, nil)
	// 9,990,000 already spent this month; another 20,000 crosses 10,000,000.
	err := policy.Check(context.Background(), "wallet-a", "standard", 20_000, ledger.KindTransferOut, time.Now().UTC())
	if !errors.Is(err, ErrMonthlyLimitExceeded) {
		t.Fatalf("expected monthly limit exceeded, got %v", err)
	}
}

func TestCheckCreditsNeverCount(t *testing.T) {
	store := newFundedStore(t, "wallet-a", 1_000)
	policy := NewPolicy(store, nil)
	if err := policy.Check(context.Background(), "wallet-a", "standard", 900_000_000, ledger.KindCredit, time.Now().UTC()); err != nil {
		t.Fatalf("credits must never be limited, got %v", err)
	}
}

func TestCheckPremiumTierCeiling(t *testing.T) {
	store := newFundedStore(t, "wallet-a", 50_000_000)
	seedOutgoing(t, store, "wallet-a", 999_000, time.Hour, "prior")

	policy := NewPolicy(store, nil)
	if err := policy.Check(context.Background(), "wallet-a", "premium", 2_000, ledger.KindWithdrawal, time.Now().UTC()); err != nil {
		t.Fatalf("premium ceiling should allow, got %v", err)
	}
}

func TestCheckUnknownTierFallsBackToStandard(t *testing.T) {
	store := newFundedStore(t, "wallet-a", 50_000_000)
	seedOutgoing(t, store, "wallet-a", 999_000, time.Hour, "prior")

	policy := NewPolicy(store, nil)
	err := policy.Check(context.Background(), "wallet-a", "mystery", 2_000, ledger.KindWithdrawal, time.Now().UTC())
	if !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected standard fallback, got %v", err)
	}
}
