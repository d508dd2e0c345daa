package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrSymbolMismatch       = errors.New("order symbol does not match book")
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrCurrencyMismatch     = errors.New("currency mismatch")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrReservationNotFound  = errors.New("reservation not found")
)

// InvalidOrderError rejects a malformed order before it reaches the book.
type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return "invalid order: " + e.Reason
}

// InvalidStateTransitionError reports an illegal order-status operation,
// naming both the attempted operation and the status it was attempted on.
type InvalidStateTransitionError struct {
	Op     StatusOp
	Status OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s order in status %s", e.Op, e.Status)
}

// EngineError wraps an unexpected failure inside orchestration, preserving
// the original cause for diagnostics.
type EngineError struct {
	Op    string
	Cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("market engine failure during %s: %v", e.Op, e.Cause)
}

func (e *EngineError) Unwrap() error { return e.Cause }
