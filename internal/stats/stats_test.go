package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/money"
)

func seedStore(t *testing.T) (ledger.Store, string) {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	const walletID = "wallet-a"
	if err := store.EnsureWallet(ctx, walletID, money.XOF); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	entries := []ledger.Entry{
		{WalletID: walletID, Delta: 10_000, Kind: ledger.KindCredit, IdempotencyKey: "c1"},
		{WalletID: walletID, Delta: -1_000, Kind: ledger.KindTransferOut, IdempotencyKey: "t1"},
		{WalletID: walletID, Delta: -500, Kind: ledger.KindWithdrawal, IdempotencyKey: "w1"},
	}
	for _, entry := range entries {
		_, version, err := store.ReadBalance(ctx, walletID)
		if err != nil {
			t.Fatalf("read balance: %v", err)
		}
		if _, err := store.AppendCommitted(ctx, []ledger.Entry{entry},
			[]ledger.VersionCheck{{WalletID: walletID, Version: version}}); err != nil {
			t.Fatalf("append %s: %v", entry.IdempotencyKey, err)
		}
	}
	return store, walletID
}

func TestSummarize(t *testing.T) {
	store, walletID := seedStore(t)
	svc := NewService(store)

	summary, err := svc.Summarize(context.Background(), walletID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Balance != 8_500 {
		t.Fatalf("expected balance 8500, got %d", summary.Balance)
	}
	if summary.TotalTransactions != 3 {
		t.Fatalf("expected 3 transactions, got %d", summary.TotalTransactions)
	}
	if summary.TotalCredits != 10_000 {
		t.Fatalf("expected credits 10000, got %d", summary.TotalCredits)
	}
	if summary.TotalDebits != 1_500 {
		t.Fatalf("expected debits 1500, got %d", summary.TotalDebits)
	}
}

func TestSummarizeExcludesReversedFromSums(t *testing.T) {
	store, walletID := seedStore(t)
	ctx := context.Background()

	history, err := store.ReadHistory(ctx, walletID, ledger.Page{Size: 10})
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var withdrawalID string
	for _, entry := range history {
		if entry.Kind == ledger.KindWithdrawal {
			withdrawalID = entry.ID
		}
	}
	if _, err := store.Reverse(ctx, withdrawalID, "settlement failed"); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	summary, err := NewService(store).Summarize(ctx, walletID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	// Original withdrawal is REVERSED; the compensating credit adds 500.
	if summary.Balance != 9_000 {
		t.Fatalf("expected balance 9000 after reversal, got %d", summary.Balance)
	}
	if summary.TotalDebits != 1_000 {
		t.Fatalf("expected debits 1000, got %d", summary.TotalDebits)
	}
	if summary.TotalCredits != 10_500 {
		t.Fatalf("expected credits 10500, got %d", summary.TotalCredits)
	}
	if summary.TotalTransactions != 4 {
		t.Fatalf("expected 4 history rows, got %d", summary.TotalTransactions)
	}
}

func TestBalanceUnknownWallet(t *testing.T) {
	svc := NewService(ledger.NewMemoryStore())
	if _, _, err := svc.Balance(context.Background(), "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
