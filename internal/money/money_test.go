package money

import (
	"errors"
	"math"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" xof ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != XOF {
		t.Fatalf("expected XOF, got %s", c)
	}

	if _, err := ParseCurrency("GBP"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected unsupported currency, got %v", err)
	}
}

func TestAddRejectsCurrencyMismatch(t *testing.T) {
	_, err := New(100, XOF).Add(New(100, USD))
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
}

func TestAddDetectsOverflow(t *testing.T) {
	_, err := New(math.MaxInt64, XOF).Add(New(1, XOF))
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}

	_, err = New(math.MinInt64, XOF).Add(New(-1, XOF))
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected negative overflow, got %v", err)
	}
}

func TestSubAndNeg(t *testing.T) {
	diff, err := New(1_000, XOF).Sub(New(250, XOF))
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if diff.Amount != 750 {
		t.Fatalf("expected 750, got %d", diff.Amount)
	}

	neg, err := New(750, XOF).Neg()
	if err != nil {
		t.Fatalf("neg: %v", err)
	}
	if neg.Amount != -750 {
		t.Fatalf("expected -750, got %d", neg.Amount)
	}

	if _, err := New(math.MinInt64, XOF).Neg(); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow on MinInt64 negation, got %v", err)
	}
}

func TestStringRendering(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{New(1_000, XOF), "1000 XOF"},
		{New(1_050, USD), "10.50 USD"},
		{New(-5, EUR), "-0.05 EUR"},
		{New(-105, EUR), "-1.05 EUR"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("String(%d %s) = %q, want %q", tc.in.Amount, tc.in.Currency, got, tc.want)
		}
	}
}
