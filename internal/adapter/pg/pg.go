package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

type PgRepo struct {
	pool    *pgxpool.Pool
	symbols *domain.SymbolRegistry
}

// call Close when finished working with the database.
func NewPgRepo(ctx context.Context, dsn string, symbols *domain.SymbolRegistry) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgRepo{pool: pool, symbols: symbols}, nil
}

func (p *PgRepo) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO orders(id, portfolio_id, symbol, side, price, currency, quantity, remaining, status, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  remaining = EXCLUDED.remaining,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, o.ID, o.PortfolioID, o.Symbol.Code, string(o.Side), o.Price.Amount, o.Price.Currency,
		o.Quantity, o.Remaining, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func (p *PgRepo) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	var symbolCode, side, status, currency string
	err := p.pool.QueryRow(ctx, `
SELECT id, portfolio_id, symbol, side, price, currency, quantity, remaining, status, created_at, updated_at
FROM orders WHERE id = $1
`, orderID).Scan(&o.ID, &o.PortfolioID, &symbolCode, &side, &o.Price.Amount, &currency,
		&o.Quantity, &o.Remaining, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	o.Price.Currency = currency
	if sym, rerr := p.symbols.Resolve(symbolCode); rerr == nil {
		o.Symbol = sym
	} else {
		o.Symbol = domain.Symbol{Code: symbolCode, Quote: currency}
	}
	return &o, nil
}

func (p *PgRepo) SaveReservation(ctx context.Context, r *domain.Reservation) error {
	if r == nil {
		return errors.New("nil reservation")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO reservations(id, portfolio_id, order_id, kind, currency, symbol, reserved, remaining, created_at, expires_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET remaining = EXCLUDED.remaining
`, r.ID, r.PortfolioID, r.OrderID, string(r.Kind), r.Currency, r.Symbol.Code,
		r.Reserved, r.Remaining, r.CreatedAt, r.ExpiresAt)
	return err
}

func (p *PgRepo) DeleteReservation(ctx context.Context, reservationID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, reservationID)
	return err
}

func (p *PgRepo) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	if t == nil {
		return errors.New("nil transaction")
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO transactions(id, match_id, buy_order_id, sell_order_id, buyer_portfolio_id, seller_portfolio_id,
  buyer_reservation_id, seller_reservation_id, symbol, quantity, price, currency, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (match_id) DO NOTHING
`, t.ID, t.MatchID, t.BuyOrderID, t.SellOrderID, t.BuyerPortfolioID, t.SellerPortfolioID,
		t.BuyerReservationID, t.SellerReservationID, t.Symbol.Code, t.Quantity,
		t.Price.Amount, t.Price.Currency, t.ExecutedAt)
	return err
}

func (p *PgRepo) TransactionsForOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, match_id, buy_order_id, sell_order_id, buyer_portfolio_id, seller_portfolio_id,
  buyer_reservation_id, seller_reservation_id, symbol, quantity, price, currency, executed_at
FROM transactions
WHERE buy_order_id = $1 OR sell_order_id = $1
ORDER BY executed_at ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var symbolCode, currency string
		if err := rows.Scan(&t.ID, &t.MatchID, &t.BuyOrderID, &t.SellOrderID, &t.BuyerPortfolioID,
			&t.SellerPortfolioID, &t.BuyerReservationID, &t.SellerReservationID, &symbolCode,
			&t.Quantity, &t.Price.Amount, &currency, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.Price.Currency = currency
		if sym, rerr := p.symbols.Resolve(symbolCode); rerr == nil {
			t.Symbol = sym
		} else {
			t.Symbol = domain.Symbol{Code: symbolCode, Quote: currency}
		}
		res = append(res, &t)
	}
	return res, rows.Err()
}
