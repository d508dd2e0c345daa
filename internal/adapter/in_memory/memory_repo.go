package in_memory

import (
	"context"
	"sync"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

type MemoryRepo struct {
	mu           sync.Mutex
	orders       map[string]*domain.Order
	reservations map[string]*domain.Reservation
	transactions map[string]*domain.Transaction
}

var _ port.Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders:       make(map[string]*domain.Order),
		reservations: make(map[string]*domain.Reservation),
		transactions: make(map[string]*domain.Transaction),
	}
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryRepo) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepo) SaveReservation(ctx context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

func (r *MemoryRepo) DeleteReservation(ctx context.Context, reservationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reservations, reservationID)
	return nil
}

func (r *MemoryRepo) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transactions[t.ID]; exists {
		return nil
	}
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *MemoryRepo) TransactionsForOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range r.transactions {
		if t.BuyOrderID == orderID || t.SellOrderID == orderID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
