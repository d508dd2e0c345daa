package dto

import (
	"github.com/shopspring/decimal"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
)

type SubmitOrderRequest struct {
	PortfolioID string `json:"portfolio_id" binding:"required"`
	Symbol      string `json:"symbol" binding:"required"`
	Side        string `json:"side" binding:"required"`
	Price       string `json:"price" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
}

type SubmitOrderResponse struct {
	OrderID       string `json:"order_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type DepositRequest struct {
	PortfolioID string `json:"portfolio_id" binding:"required"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	Quantity    string `json:"quantity"`
}

type OrderResponse struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Price       domain.Money    `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Remaining   decimal.Decimal `json:"remaining"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
}

func FromOrder(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		PortfolioID: o.PortfolioID,
		Symbol:      o.Symbol.Code,
		Side:        string(o.Side),
		Price:       o.Price,
		Quantity:    o.Quantity,
		Remaining:   o.Remaining,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type TransactionResponse struct {
	ID         string          `json:"id"`
	MatchID    string          `json:"match_id"`
	BuyOrder   string          `json:"buy_order"`
	SellOrder  string          `json:"sell_order"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      domain.Money    `json:"price"`
	ExecutedAt string          `json:"executed_at"`
}

func FromTransaction(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:         t.ID,
		MatchID:    t.MatchID,
		BuyOrder:   t.BuyOrderID,
		SellOrder:  t.SellOrderID,
		Symbol:     t.Symbol.Code,
		Quantity:   t.Quantity,
		Price:      t.Price,
		ExecutedAt: t.ExecutedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type PortfolioResponse struct {
	PortfolioID  string                     `json:"portfolio_id"`
	Cash         map[string]decimal.Decimal `json:"cash"`
	Holdings     map[string]decimal.Decimal `json:"holdings"`
	Reservations []ReservationResponse      `json:"reservations"`
}

type ReservationResponse struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Kind      string          `json:"kind"`
	Remaining decimal.Decimal `json:"remaining"`
	ExpiresAt string          `json:"expires_at"`
}
