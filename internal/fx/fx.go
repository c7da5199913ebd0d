package fx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ismail-platform/wallet/internal/money"
)

var (
	// ErrStaleRate indicates the rate snapshot is older than the configured
	// staleness bound and must not be used for conversion.
	ErrStaleRate = errors.New("exchange rate snapshot is stale")

	// ErrRateUnavailable indicates no rate exists for the requested pair.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

// rateScale is the fixed-point denominator for rates: a rate of 1.0 is
// stored as 1_000_000.
const rateScale = 1_000_000

// Pair identifies a directed conversion between two currencies.
type Pair struct {
	From money.Currency
	To   money.Currency
}

// Snapshot is an immutable view of the rate table at a point in time.
// Rates map a source minor unit to target minor units, scaled by rateScale.
type Snapshot struct {
	Rates map[Pair]int64
	AsOf  time.Time
}

// Source supplies rate snapshots, typically from an external rate feed.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// StaticSource serves a fixed rate table stamped at construction time.
// Production deployments replace it with a connector to the rate feed.
type StaticSource struct {
	snapshot Snapshot
}

// NewStaticSource builds a source around the default XOF/EUR/USD table.
func NewStaticSource(asOf time.Time) *StaticSource {
	return &StaticSource{snapshot: Snapshot{
		AsOf: asOf,
		Rates: map[Pair]int64{
			{From: money.EUR, To: money.XOF}: 6_559_570, // 1 EUR = 655.957 XOF
			{From: money.XOF, To: money.EUR}: 152_449,
			{From: money.USD, To: money.XOF}: 6_000_000, // 1 USD = 600 XOF
			{From: money.XOF, To: money.USD}: 166_667,
			{From: money.EUR, To: money.USD}: 1_093_262,
			{From: money.USD, To: money.EUR}: 914_690,
		},
	}}
}

// Snapshot returns the fixed table.
func (s *StaticSource) Snapshot(_ context.Context) (Snapshot, error) {
	return s.snapshot, nil
}

// Converter performs pure fixed-point conversions against a rate source,
// rejecting snapshots older than the staleness bound.
type Converter struct {
	source Source
	maxAge time.Duration
	now    func() time.Time
}

// NewConverter builds a converter with the given staleness bound.
func NewConverter(source Source, maxAge time.Duration) *Converter {
	return &Converter{source: source, maxAge: maxAge, now: time.Now}
}

// Result carries the converted amount and the rate that produced it.
type Result struct {
	Converted money.Money
	RateMicro int64
	AsOf      time.Time
}

// Convert translates m into the target currency using the current snapshot.
// Same-currency conversions are identity operations and never consult rates.
func (c *Converter) Convert(ctx context.Context, m money.Money, to money.Currency) (Result, error) {
	if m.Currency == to {
		return Result{Converted: m, RateMicro: rateScale, AsOf: c.now()}, nil
	}

	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch rate snapshot: %w", err)
	}
	if c.now().Sub(snap.AsOf) > c.maxAge {
		return Result{}, ErrStaleRate
	}

	rate, ok := snap.Rates[Pair{From: m.Currency, To: to}]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s to %s", ErrRateUnavailable, m.Currency, to)
	}

	converted, err := applyRate(m.Amount, rate)
	if err != nil {
		return Result{}, err
	}
	return Result{Converted: money.New(converted, to), RateMicro: rate, AsOf: snap.AsOf}, nil
}

// applyRate computes amount*rate/rateScale with overflow detection,
// rounding half up.
func applyRate(amount, rate int64) (int64, error) {
	if amount == 0 {
		return 0, nil
	}
	if amount < 0 || rate <= 0 {
		return 0, money.ErrOverflow
	}
	if amount > math.MaxInt64/rate {
		return 0, money.ErrOverflow
	}
	product := amount * rate
	if product > math.MaxInt64-rateScale/2 {
		return 0, money.ErrOverflow
	}
	return (product + rateScale/2) / rateScale, nil
}
