package port

import (
	"context"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
)

// Repository is the durable store boundary. The core treats it as an
// always-consistent synchronous collaborator and keeps no durability logic
// of its own.
type Repository interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	FindOrder(ctx context.Context, orderID string) (*domain.Order, error)
	SaveReservation(ctx context.Context, r *domain.Reservation) error
	DeleteReservation(ctx context.Context, reservationID string) error
	SaveTransaction(ctx context.Context, t *domain.Transaction) error
	TransactionsForOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error)
}
