package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrCurrencyMismatch occurs when two Money values of different currencies
	// are combined without an explicit conversion step.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrUnsupportedCurrency indicates a currency code outside the supported set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrOverflow indicates fixed-point arithmetic exceeded the int64 range.
	// This is fatal for the operation; no partial value is returned.
	ErrOverflow = errors.New("monetary arithmetic overflow")
)

// Currency is an ISO 4217 currency code.
type Currency string

const (
	XOF Currency = "XOF"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// minor-unit exponents per ISO 4217
var exponents = map[Currency]int{
	XOF: 0,
	USD: 2,
	EUR: 2,
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := exponents[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// Exponent returns the number of decimal places of the currency's minor unit.
func (c Currency) Exponent() int {
	return exponents[c]
}

// Money is a fixed-point amount held in the currency's minor unit.
// 1000 XOF is stored as 1000; 10.50 USD is stored as 1050. Amounts may be
// negative when representing ledger debits.
type Money struct {
	Amount   int64
	Currency Currency
}

// New builds a Money value in minor units.
func New(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Add returns m + other, failing on currency mismatch or overflow.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	sum, err := checkedAdd(m.Amount, other.Amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: sum, Currency: m.Currency}, nil
}

// Sub returns m - other, failing on currency mismatch or overflow.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	if other.Amount == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	diff, err := checkedAdd(m.Amount, -other.Amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: diff, Currency: m.Currency}, nil
}

// Neg returns the additive inverse.
func (m Money) Neg() (Money, error) {
	if m.Amount == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	return Money{Amount: -m.Amount, Currency: m.Currency}, nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// String renders the amount as a decimal in major units, e.g. "10.50 USD".
func (m Money) String() string {
	exp := m.Currency.Exponent()
	if exp == 0 {
		return fmt.Sprintf("%d %s", m.Amount, m.Currency)
	}
	scale := int64(1)
	for i := 0; i < exp; i++ {
		scale *= 10
	}
	major := m.Amount / scale
	minor := m.Amount % scale
	if minor < 0 {
		minor = -minor
	}
	sign := ""
	if m.Amount < 0 && major == 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%0*d %s", sign, major, exp, minor, m.Currency)
}

func checkedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}
