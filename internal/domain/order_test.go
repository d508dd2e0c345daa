package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testOrder(t *testing.T, side Side) *Order {
	t.Helper()
	price := NewMoney(decimal.NewFromInt(50000), "USD")
	o, err := NewOrder("o1", "p1", BTCUSD, side, price, decimal.NewFromInt(2), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from OrderStatus
		op   StatusOp
		want OrderStatus
		ok   bool
	}{
		{Pending, OpCancel, Cancelled, true},
		{Pending, OpFillPartial, Partial, true},
		{Pending, OpComplete, Filled, true},
		{Pending, OpCancelPartial, Pending, true},
		{Partial, OpCancel, Cancelled, true},
		{Partial, OpFillPartial, Partial, true},
		{Partial, OpComplete, Filled, true},
		{Partial, OpCancelPartial, Partial, true},
		{Filled, OpCancel, Filled, false},
		{Filled, OpFillPartial, Filled, false},
		{Filled, OpComplete, Filled, false},
		{Filled, OpCancelPartial, Filled, false},
		{Cancelled, OpCancel, Cancelled, false},
		{Cancelled, OpFillPartial, Cancelled, false},
		{Cancelled, OpComplete, Cancelled, false},
		{Cancelled, OpCancelPartial, Cancelled, false},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.op)
		if c.ok && err != nil {
			t.Errorf("%s/%s: unexpected error %v", c.from, c.op, err)
		}
		if !c.ok {
			var ist *InvalidStateTransitionError
			if !errors.As(err, &ist) {
				t.Errorf("%s/%s: want InvalidStateTransitionError, got %v", c.from, c.op, err)
			} else if ist.Op != c.op || ist.Status != c.from {
				t.Errorf("%s/%s: error does not identify op and state: %v", c.from, c.op, ist)
			}
		}
		if got != c.want {
			t.Errorf("%s/%s: want %s, got %s", c.from, c.op, c.want, got)
		}
	}
}

func TestTerminalOrderRejectsEveryOperation(t *testing.T) {
	o := testOrder(t, Buy)
	if err := o.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !o.IsTerminal() {
		t.Fatal("filled order should be terminal")
	}
	for name, op := range map[string]func() error{
		"cancel":        o.Cancel,
		"fillPartial":   o.FillPartial,
		"complete":      o.Complete,
		"cancelPartial": o.CancelPartial,
	} {
		if err := op(); err == nil {
			t.Errorf("%s on filled order should fail", name)
		}
		if o.Status != Filled {
			t.Errorf("%s mutated terminal status to %s", name, o.Status)
		}
	}
}

func TestApplyFill(t *testing.T) {
	o := testOrder(t, Sell)

	if err := o.ApplyFill(decimal.NewFromFloat(0.5)); err != nil {
		t.Fatalf("partial fill: %v", err)
	}
	if o.Status != Partial {
		t.Fatalf("want PARTIAL, got %s", o.Status)
	}
	if !o.Remaining.Equal(decimal.NewFromFloat(1.5)) {
		t.Fatalf("want remaining 1.5, got %s", o.Remaining)
	}

	if err := o.ApplyFill(decimal.NewFromInt(5)); err == nil {
		t.Fatal("fill beyond remaining should fail")
	}

	if err := o.ApplyFill(decimal.NewFromFloat(1.5)); err != nil {
		t.Fatalf("final fill: %v", err)
	}
	if o.Status != Filled || !o.Remaining.IsZero() {
		t.Fatalf("want FILLED/0, got %s/%s", o.Status, o.Remaining)
	}
}

func TestNewOrderValidation(t *testing.T) {
	price := NewMoney(decimal.NewFromInt(100), "USD")
	now := time.Now()

	if _, err := NewOrder("o1", "p1", BTCUSD, Buy, price, decimal.Zero, now); err == nil {
		t.Error("zero quantity should be rejected")
	}
	if _, err := NewOrder("o1", "p1", BTCUSD, Buy, NewMoney(decimal.NewFromInt(-1), "USD"), decimal.NewFromInt(1), now); err == nil {
		t.Error("negative price should be rejected")
	}
	if _, err := NewOrder("o1", "p1", BTCUSD, "HOLD", price, decimal.NewFromInt(1), now); err == nil {
		t.Error("bad side should be rejected")
	}
	if _, err := NewOrder("o1", "p1", BTCUSD, Buy, NewMoney(decimal.NewFromInt(100), "EUR"), decimal.NewFromInt(1), now); err == nil {
		t.Error("price currency must match quote currency")
	}
}
