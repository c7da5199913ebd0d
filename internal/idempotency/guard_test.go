package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ismail-platform/wallet/internal/logging"
)

type creditPayload struct {
	WalletID string `json:"wallet_id"`
	Amount   int64  `json:"amount"`
}

func setupGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return NewGuard(cache, time.Minute, logging.Discard()), mr
}

func TestReserveFreshThenDuplicateCommitted(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()
	payload := creditPayload{WalletID: "w1", Amount: 500}

	res, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Status != Fresh {
		t.Fatalf("expected Fresh, got %v", res.Status)
	}

	if err := guard.Finalize(ctx, res, map[string]any{"transaction_id": "tx-1", "new_balance": 500}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	replay, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("replay reserve: %v", err)
	}
	if replay.Status != DuplicateCommitted {
		t.Fatalf("expected DuplicateCommitted, got %v", replay.Status)
	}
	var prior map[string]any
	if err := json.Unmarshal(replay.PriorResult, &prior); err != nil {
		t.Fatalf("decode prior result: %v", err)
	}
	if prior["transaction_id"] != "tx-1" {
		t.Fatalf("expected recorded transaction id, got %v", prior)
	}
}

func TestReserveDuplicatePending(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()
	payload := creditPayload{WalletID: "w1", Amount: 500}

	if _, err := guard.Reserve(ctx, "w1", "key-1", payload); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	second, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if second.Status != DuplicatePending {
		t.Fatalf("expected DuplicatePending, got %v", second.Status)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()
	payload := creditPayload{WalletID: "w1", Amount: 500}

	res, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	guard.Release(ctx, res)

	retry, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("retry reserve: %v", err)
	}
	if retry.Status != Fresh {
		t.Fatalf("expected Fresh after release, got %v", retry.Status)
	}
}

func TestReserveDetectsPayloadMismatch(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	res, err := guard.Reserve(ctx, "w1", "key-1", creditPayload{WalletID: "w1", Amount: 500})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := guard.Finalize(ctx, res, map[string]any{"transaction_id": "tx-1"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	_, err = guard.Reserve(ctx, "w1", "key-1", creditPayload{WalletID: "w1", Amount: 9_999})
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("expected ErrPayloadMismatch, got %v", err)
	}
}

func TestReserveAfterExpiryIsFresh(t *testing.T) {
	guard, mr := setupGuard(t)
	ctx := context.Background()
	payload := creditPayload{WalletID: "w1", Amount: 500}

	res, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := guard.Finalize(ctx, res, map[string]any{"transaction_id": "tx-1"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Retention window elapses; the key is forgotten by design.
	mr.FastForward(2 * time.Minute)

	again, err := guard.Reserve(ctx, "w1", "key-1", payload)
	if err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
	if again.Status != Fresh {
		t.Fatalf("expected Fresh after retention expiry, got %v", again.Status)
	}
}

func TestKeysAreScopedPerWallet(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	if _, err := guard.Reserve(ctx, "w1", "key-1", creditPayload{WalletID: "w1", Amount: 1}); err != nil {
		t.Fatalf("reserve w1: %v", err)
	}
	other, err := guard.Reserve(ctx, "w2", "key-1", creditPayload{WalletID: "w2", Amount: 1})
	if err != nil {
		t.Fatalf("reserve w2: %v", err)
	}
	if other.Status != Fresh {
		t.Fatalf("expected per-wallet scoping, got %v", other.Status)
	}
}
