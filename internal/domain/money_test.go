package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func usd(s string) Money {
	return Money{Amount: decimal.RequireFromString(s), Currency: "USD"}
}

func TestMoneyArithmetic(t *testing.T) {
	sum, err := usd("10.5").Add(usd("2.25"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !sum.Amount.Equal(decimal.RequireFromString("12.75")) {
		t.Fatalf("want 12.75, got %s", sum.Amount)
	}

	diff, err := usd("10").Sub(usd("2.5"))
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if !diff.Amount.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("want 7.5, got %s", diff.Amount)
	}

	scaled := usd("50000").Mul(decimal.RequireFromString("0.5"))
	if !scaled.Amount.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("want 25000, got %s", scaled.Amount)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	eur := Money{Amount: decimal.NewFromInt(5), Currency: "EUR"}
	if _, err := usd("1").Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("want ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd("1").Cmp(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("want ErrCurrencyMismatch, got %v", err)
	}
}

func TestMoneyDivisionPrecision(t *testing.T) {
	q, err := usd("1").Div(decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	// must not truncate below 8 fractional digits
	if q.Amount.Exponent() > -8 {
		t.Fatalf("division kept %d fractional digits, want >= 8", -q.Amount.Exponent())
	}
	if _, err := usd("1").Div(decimal.Zero); err == nil {
		t.Fatal("division by zero should fail")
	}
}

func TestSymbolValidation(t *testing.T) {
	if _, err := NewSymbol("btcusd", "Bitcoin", "CRYPTO", "btc", "usd"); err != nil {
		t.Fatalf("lowercase input should be normalized, got %v", err)
	}
	if _, err := NewSymbol("", "x", "FX", "EUR", "USD"); err == nil {
		t.Error("empty code should be rejected")
	}
	if _, err := NewSymbol("AB-C", "x", "FX", "EUR", "USD"); err == nil {
		t.Error("non-alphanumeric code should be rejected")
	}
	if _, err := NewSymbol("ABC", "x", "FX", "", "USD"); err == nil {
		t.Error("missing base currency should be rejected")
	}
}

func TestSymbolRegistry(t *testing.T) {
	r := NewSymbolRegistry(BTCUSD)
	if _, err := r.Resolve("btcusd"); err != nil {
		t.Fatalf("resolve should be case-insensitive: %v", err)
	}
	if _, err := r.Resolve("DOGEUSD"); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("want ErrUnknownSymbol, got %v", err)
	}
}
