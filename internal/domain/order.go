package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderStatus string

const (
	Pending   OrderStatus = "PENDING"
	Partial   OrderStatus = "PARTIAL"
	Filled    OrderStatus = "FILLED"
	Cancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Cancelled
}

// StatusOp names an operation requested against an order's status.
type StatusOp string

const (
	OpCancel        StatusOp = "cancel"
	OpFillPartial   StatusOp = "fillPartial"
	OpComplete      StatusOp = "complete"
	OpCancelPartial StatusOp = "cancelPartial"
)

var transitions = map[OrderStatus]map[StatusOp]OrderStatus{
	Pending: {
		OpCancel:        Cancelled,
		OpFillPartial:   Partial,
		OpComplete:      Filled,
		OpCancelPartial: Pending,
	},
	Partial: {
		OpCancel:        Cancelled,
		OpFillPartial:   Partial,
		OpComplete:      Filled,
		OpCancelPartial: Partial,
	},
}

// Transition applies op to a status. Any request against a terminal status
// fails; it never silently no-ops.
func Transition(s OrderStatus, op StatusOp) (OrderStatus, error) {
	next, ok := transitions[s][op]
	if !ok {
		return s, &InvalidStateTransitionError{Op: op, Status: s}
	}
	return next, nil
}

// Order is a limit buy/sell against a symbol. The book owns it while resting;
// reservations and transactions reference it by id only.
type Order struct {
	ID          string
	PortfolioID string
	Symbol      Symbol
	Side        Side
	Price       Money
	Quantity    decimal.Decimal
	Remaining   decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrder(id, portfolioID string, sym Symbol, side Side, price Money, qty decimal.Decimal, now time.Time) (*Order, error) {
	if id == "" {
		return nil, &InvalidOrderError{Reason: "order id is required"}
	}
	if portfolioID == "" {
		return nil, &InvalidOrderError{Reason: "portfolio id is required"}
	}
	if err := sym.Validate(); err != nil {
		return nil, err
	}
	if side != Buy && side != Sell {
		return nil, &InvalidOrderError{Reason: "side must be BUY or SELL"}
	}
	if !price.IsPositive() {
		return nil, &InvalidOrderError{Reason: "price must be > 0"}
	}
	if price.Currency != sym.Quote {
		return nil, &InvalidOrderError{Reason: "price currency must match symbol quote currency"}
	}
	if !qty.IsPositive() {
		return nil, &InvalidOrderError{Reason: "quantity must be > 0"}
	}
	return &Order{
		ID:          id,
		PortfolioID: portfolioID,
		Symbol:      sym,
		Side:        side,
		Price:       price,
		Quantity:    qty,
		Remaining:   qty,
		Status:      Pending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (o *Order) Cancel() error        { return o.apply(OpCancel) }
func (o *Order) FillPartial() error   { return o.apply(OpFillPartial) }
func (o *Order) Complete() error      { return o.apply(OpComplete) }
func (o *Order) CancelPartial() error { return o.apply(OpCancelPartial) }

func (o *Order) apply(op StatusOp) error {
	next, err := Transition(o.Status, op)
	if err != nil {
		return err
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

func (o *Order) IsTerminal() bool { return o.Status.IsTerminal() }

// ApplyFill reduces the remaining quantity by qty and transitions the status
// to Partial or Filled accordingly.
func (o *Order) ApplyFill(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return &InvalidOrderError{Reason: "fill quantity must be > 0"}
	}
	if qty.GreaterThan(o.Remaining) {
		return &InvalidOrderError{Reason: "fill quantity exceeds remaining"}
	}
	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		return o.Complete()
	}
	return o.FillPartial()
}

// PriceLevel is one aggregated row of a depth query.
type PriceLevel struct {
	Price    Money           `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// MarketDepth is a point-in-time aggregate view of one book.
type MarketDepth struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}
