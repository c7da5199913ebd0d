package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ismail-platform/wallet/internal/directory"
	"github.com/ismail-platform/wallet/internal/ledger"
	"github.com/ismail-platform/wallet/internal/money"
)

func newService(t *testing.T, attempts AttemptLimiter) (*Service, *directory.Service) {
	t.Helper()
	dir := directory.NewService(directory.NewMemoryRepository())
	return NewService(NewMemoryRepository(), ledger.NewMemoryStore(), dir, attempts), dir
}

func TestCreateRegistersWalletAndDirectory(t *testing.T) {
	svc, dir := newService(t, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{
		OwnerID:  uuid.NewString(),
		IsmailID: "IS-ALICE",
		PIN:      "1234",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if account.Currency != money.XOF {
		t.Fatalf("expected XOF default, got %s", account.Currency)
	}
	if account.Status != StatusActive || account.Tier != TierStandard {
		t.Fatalf("unexpected defaults: %s %s", account.Status, account.Tier)
	}

	walletID, err := dir.Resolve(ctx, "is-alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if walletID != account.ID {
		t.Fatalf("directory points to %s, want %s", walletID, account.ID)
	}

	if err := svc.VerifyPIN(ctx, account.ID, "1234"); err != nil {
		t.Fatalf("verify PIN: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{OwnerID: "not-a-uuid", IsmailID: "IS-A", PIN: "1234"}); err == nil {
		t.Fatal("expected invalid owner id to fail")
	}
	if _, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), IsmailID: "", PIN: "1234"}); err == nil {
		t.Fatal("expected missing ismail id to fail")
	}
	if _, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), IsmailID: "IS-A", PIN: "12"}); err == nil {
		t.Fatal("expected short PIN to fail")
	}
	if _, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), IsmailID: "IS-A", PIN: "1234", Currency: "GBP"}); err == nil {
		t.Fatal("expected unsupported currency to fail")
	}
}

func TestVerifyPINLockout(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	svc, _ := newService(t, NewRedisAttemptLimiter(cache, 3, time.Minute))
	ctx := context.Background()
	account, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), IsmailID: "IS-A", PIN: "1234"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.VerifyPIN(ctx, account.ID, "0000"); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("attempt %d: expected invalid PIN, got %v", i, err)
		}
	}
	if err := svc.VerifyPIN(ctx, account.ID, "1234"); !errors.Is(err, ErrPINLocked) {
		t.Fatalf("expected lockout, got %v", err)
	}

	// The lockout clears when the window expires.
	mr.FastForward(2 * time.Minute)
	if err := svc.VerifyPIN(ctx, account.ID, "1234"); err != nil {
		t.Fatalf("expected PIN to verify after window, got %v", err)
	}
}

func TestVerifyPINResetOnSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	svc, _ := newService(t, NewRedisAttemptLimiter(cache, 3, time.Minute))
	ctx := context.Background()
	account, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), IsmailID: "IS-A", PIN: "1234"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.VerifyPIN(ctx, account.ID, "0000"); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("expected invalid PIN, got %v", err)
		}
	}
	if err := svc.VerifyPIN(ctx, account.ID, "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// Counter reset: two more failures stay below the threshold.
	for i := 0; i < 2; i++ {
		if err := svc.VerifyPIN(ctx, account.ID, "0000"); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("expected invalid PIN after reset, got %v", err)
		}
	}
	if err := svc.VerifyPIN(ctx, account.ID, "1234"); err != nil {
		t.Fatalf("expected no lockout after reset, got %v", err)
	}
}

func TestStatusLifecycle(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	account, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), IsmailID: "IS-A", PIN: "1234"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Freeze(ctx, account.ID); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := svc.RequireActive(ctx, account.ID); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected frozen wallet to be inactive, got %v", err)
	}

	if err := svc.Unfreeze(ctx, account.ID); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if _, err := svc.RequireActive(ctx, account.ID); err != nil {
		t.Fatalf("expected active after unfreeze, got %v", err)
	}

	if err := svc.Close(ctx, account.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := svc.Unfreeze(ctx, account.ID); !errors.Is(err, ErrInactive) {
		t.Fatalf("closed wallets must stay closed, got %v", err)
	}
}
