package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount tagged with a currency. Arithmetic between
// different currencies fails instead of silently mixing units.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, &InvalidOrderError{Reason: fmt.Sprintf("bad amount %q: %v", amount, err)}
	}
	return Money{Amount: d, Currency: currency}, nil
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Mul scales by a dimensionless factor (e.g. quantity).
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

func (m Money) Div(factor decimal.Decimal) (Money, error) {
	if factor.IsZero() {
		return Money{}, &InvalidOrderError{Reason: "division by zero"}
	}
	return Money{Amount: m.Amount.Div(factor), Currency: m.Currency}, nil
}

// Cmp returns -1, 0 or 1. Comparing across currencies is an error.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(o.Amount), nil
}

func (m Money) IsPositive() bool { return m.Amount.IsPositive() }
func (m Money) IsZero() bool     { return m.Amount.IsZero() }

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

func init() {
	// shopspring division defaults to 16 fractional digits; the venue requires
	// at least 8, so never lower this below that.
	if decimal.DivisionPrecision < 8 {
		decimal.DivisionPrecision = 8
	}
}
