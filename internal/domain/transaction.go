package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable record of one completed match. Created once
// per match and never mutated; MatchID is the dedupe key under redelivery.
type Transaction struct {
	ID                  string
	MatchID             string
	BuyOrderID          string
	SellOrderID         string
	BuyerPortfolioID    string
	SellerPortfolioID   string
	BuyerReservationID  string
	SellerReservationID string
	Symbol              Symbol
	Quantity            decimal.Decimal
	Price               Money
	ExecutedAt          time.Time
}
