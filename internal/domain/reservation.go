package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReservationTTL bounds how long a hold on portfolio funds or assets
// stays valid before it is treated as released.
const DefaultReservationTTL = 5 * time.Minute

type ReservationKind string

const (
	CashReservation  ReservationKind = "CASH"
	AssetReservation ReservationKind = "ASSET"
)

// Reservation is a time-limited hold of cash or asset quantity against a
// portfolio while an order is in flight. Remaining tracks the uncommitted
// portion: currency units for cash holds, base-asset units for asset holds.
type Reservation struct {
	ID          string
	PortfolioID string
	OrderID     string
	Kind        ReservationKind
	Currency    string
	Symbol      Symbol
	Reserved    decimal.Decimal
	Remaining   decimal.Decimal
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the hold must be treated as released, even if it
// has not been physically deleted yet.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
