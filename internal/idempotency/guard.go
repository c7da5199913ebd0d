package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "idempotency:v1:"
	pendingMarker = "pending:"
)

var (
	// ErrConcurrentDuplicate indicates another attempt with the same key is
	// in flight. The new request must fail rather than run twice.
	ErrConcurrentDuplicate = errors.New("duplicate request currently processing")

	// ErrPayloadMismatch indicates the key was reused with a different
	// request body, which is a client bug rather than a retry.
	ErrPayloadMismatch = errors.New("idempotency key reused with different payload")

	// ErrUnavailable indicates the reservation store could not be reached.
	ErrUnavailable = errors.New("idempotency store unavailable")
)

// Status classifies the outcome of a reservation attempt.
type Status int

const (
	// Fresh means the key was reserved and the caller must Finalize or
	// Release it.
	Fresh Status = iota
	// DuplicatePending means another attempt holds the reservation.
	DuplicatePending
	// DuplicateCommitted means a prior attempt finished; PriorResult holds
	// the recorded response.
	DuplicateCommitted
)

// Reservation is the result of Reserve and the token passed to
// Finalize/Release.
type Reservation struct {
	Status      Status
	PriorResult json.RawMessage

	cacheKey    string
	requestHash string
}

type storedRecord struct {
	RequestHash string          `json:"request_hash"`
	Result      json.RawMessage `json:"result"`
}

// Guard deduplicates transaction requests carrying the same client-supplied
// key. Reservations expire after the retention TTL; beyond that window a
// repeated key is treated as fresh, which is the documented trade-off for
// bounded storage.
type Guard struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewGuard builds a guard with the given retention window.
func NewGuard(cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{cache: cache, ttl: ttl, logger: logger}
}

// HashPayload produces a canonical (RFC 8785) hash of the request so a key
// replayed with a different body can be distinguished from a genuine retry.
func HashPayload(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Reserve attempts to claim (walletID, key) for this request.
func (g *Guard) Reserve(ctx context.Context, walletID, key string, payload any) (Reservation, error) {
	hash, err := HashPayload(payload)
	if err != nil {
		return Reservation{}, err
	}

	cacheKey := keyPrefix + walletID + ":" + key
	reservation := Reservation{cacheKey: cacheKey, requestHash: hash}

	ok, err := g.cache.SetNX(ctx, cacheKey, pendingMarker+hash, g.ttl).Result()
	if err != nil {
		g.logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
		return Reservation{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ok {
		reservation.Status = Fresh
		return reservation, nil
	}

	value, err := g.cache.Get(ctx, cacheKey).Result()
	if err != nil {
		if err == redis.Nil {
			// Reservation expired between SetNX and Get; treat as pending
			// and let the client retry.
			reservation.Status = DuplicatePending
			return reservation, nil
		}
		g.logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
		return Reservation{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if strings.HasPrefix(value, pendingMarker) {
		reservation.Status = DuplicatePending
		return reservation, nil
	}

	var record storedRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		g.logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		reservation.Status = DuplicatePending
		return reservation, nil
	}
	if record.RequestHash != hash {
		return Reservation{}, ErrPayloadMismatch
	}

	reservation.Status = DuplicateCommitted
	reservation.PriorResult = record.Result
	return reservation, nil
}

// Finalize records the committed result so retries replay it verbatim.
func (g *Guard) Finalize(ctx context.Context, reservation Reservation, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(storedRecord{RequestHash: reservation.requestHash, Result: raw})
	if err != nil {
		return err
	}
	if err := g.cache.Set(ctx, reservation.cacheKey, payload, g.ttl).Err(); err != nil {
		g.logger.Error("failed to persist idempotent response", slog.String("key", reservation.cacheKey), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Release abandons a FRESH reservation after a failed attempt so the client
// can retry with the same key. Best effort.
func (g *Guard) Release(ctx context.Context, reservation Reservation) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.cache.Del(cleanupCtx, reservation.cacheKey).Err(); err != nil {
		g.logger.Warn("idempotency release failed", slog.String("key", reservation.cacheKey), slog.Any("error", err))
	}
}
