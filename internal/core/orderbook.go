package core

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

// Match proposes one execution produced by the book. Settlement turns it into
// a Transaction.
type Match struct {
	ID         string
	Buy        *domain.Order
	Sell       *domain.Order
	Symbol     domain.Symbol
	Quantity   decimal.Decimal
	Price      domain.Money
	ExecutedAt time.Time
}

// priceLevel holds the FIFO queue of resting orders at one price.
type priceLevel struct {
	price  decimal.Decimal
	orders []*domain.Order
}

func (l *priceLevel) totalRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.orders {
		total = total.Add(o.Remaining)
	}
	return total
}

// OrderBook owns the resting orders for a single symbol. Bids are kept best
// price first (highest), asks best price first (lowest); within a level the
// queue is strict FIFO by arrival. All mutations on one book are serialized
// by its mutex; independent symbols proceed in parallel.
type OrderBook struct {
	symbol domain.Symbol
	ids    port.IDSupplier

	mu     sync.RWMutex
	bids   []*priceLevel
	asks   []*priceLevel
	byID   map[string]*domain.Order
	volume decimal.Decimal
	active bool
}

func NewOrderBook(symbol domain.Symbol, ids port.IDSupplier) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		ids:    ids,
		byID:   make(map[string]*domain.Order),
		volume: decimal.Zero,
		active: true,
	}
}

func (b *OrderBook) Symbol() domain.Symbol { return b.symbol }

// AddOrder matches the incoming order against the opposite side and inserts
// any remainder at its priority position. Execution price is always the
// resting order's price.
func (b *OrderBook) AddOrder(o *domain.Order) ([]*Match, error) {
	if o == nil {
		return nil, &domain.InvalidOrderError{Reason: "nil order"}
	}
	if o.Symbol.Code != b.symbol.Code {
		return nil, domain.ErrSymbolMismatch
	}
	if !o.Remaining.IsPositive() || !o.Price.IsPositive() {
		return nil, &domain.InvalidOrderError{Reason: "price and quantity must be > 0"}
	}
	if o.IsTerminal() {
		return nil, &domain.InvalidOrderError{Reason: "order already " + string(o.Status)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []*Match
	opposite := &b.asks
	if o.Side == domain.Sell {
		opposite = &b.bids
	}

	for o.Remaining.IsPositive() && len(*opposite) > 0 && b.crosses(o, (*opposite)[0].price) {
		level := (*opposite)[0]
		rest := level.orders[0]

		qty := decimal.Min(o.Remaining, rest.Remaining)
		if err := rest.ApplyFill(qty); err != nil {
			return matches, err
		}
		if err := o.ApplyFill(qty); err != nil {
			return matches, err
		}

		m := &Match{
			ID:         b.ids.NewID(),
			Symbol:     b.symbol,
			Quantity:   qty,
			Price:      rest.Price,
			ExecutedAt: time.Now(),
		}
		if o.Side == domain.Buy {
			m.Buy, m.Sell = o, rest
		} else {
			m.Buy, m.Sell = rest, o
		}
		matches = append(matches, m)
		b.volume = b.volume.Add(qty)

		if rest.IsTerminal() {
			level.orders = level.orders[1:]
			delete(b.byID, rest.ID)
		}
		if len(level.orders) == 0 {
			*opposite = (*opposite)[1:]
		}
	}

	if o.Remaining.IsPositive() {
		b.insert(o)
		b.byID[o.ID] = o
	}
	return matches, nil
}

// crosses reports whether the incoming limit reaches the best opposite price.
func (b *OrderBook) crosses(o *domain.Order, best decimal.Decimal) bool {
	if o.Side == domain.Buy {
		return o.Price.Amount.GreaterThanOrEqual(best)
	}
	return o.Price.Amount.LessThanOrEqual(best)
}

// insert places the order at the tail of its price level, creating the level
// in sorted position if needed.
func (b *OrderBook) insert(o *domain.Order) {
	side := &b.bids
	higherFirst := true
	if o.Side == domain.Sell {
		side = &b.asks
		higherFirst = false
	}

	price := o.Price.Amount
	idx := len(*side)
	for i, level := range *side {
		cmp := level.price.Cmp(price)
		if cmp == 0 {
			level.orders = append(level.orders, o)
			return
		}
		if (higherFirst && cmp < 0) || (!higherFirst && cmp > 0) {
			idx = i
			break
		}
	}

	level := &priceLevel{price: price, orders: []*domain.Order{o}}
	*side = append(*side, nil)
	copy((*side)[idx+1:], (*side)[idx:])
	(*side)[idx] = level
}

// CancelOrder removes a resting order and transitions it to Cancelled.
func (b *OrderBook) CancelOrder(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.byID[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if err := o.Cancel(); err != nil {
		return err
	}
	b.remove(o)
	delete(b.byID, orderID)
	return nil
}

// remove drops an order from its side, pruning the level if it empties.
// Caller holds b.mu.
func (b *OrderBook) remove(o *domain.Order) {
	side := &b.bids
	if o.Side == domain.Sell {
		side = &b.asks
	}
	for i, level := range *side {
		if !level.price.Equal(o.Price.Amount) {
			continue
		}
		for j, rest := range level.orders {
			if rest.ID == o.ID {
				level.orders = append(level.orders[:j], level.orders[j+1:]...)
				break
			}
		}
		if len(level.orders) == 0 {
			*side = append((*side)[:i], (*side)[i+1:]...)
		}
		return
	}
}

// Depth aggregates remaining quantity per price level, capped per side.
func (b *OrderBook) Depth(levels int) *domain.MarketDepth {
	if levels <= 0 {
		levels = 10
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &domain.MarketDepth{
		Symbol:    b.symbol.Code,
		Bids:      aggregate(b.bids, levels, b.symbol.Quote),
		Asks:      aggregate(b.asks, levels, b.symbol.Quote),
		Timestamp: time.Now(),
	}
}

func aggregate(side []*priceLevel, depth int, currency string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, depth)
	for _, level := range side {
		if len(out) >= depth {
			break
		}
		out = append(out, domain.PriceLevel{
			Price:    domain.NewMoney(level.price, currency),
			Quantity: level.totalRemaining(),
			Orders:   len(level.orders),
		})
	}
	return out
}

// BookOverview summarizes one book for listing endpoints.
type BookOverview struct {
	Symbol  string          `json:"symbol"`
	BestBid *domain.Money   `json:"best_bid,omitempty"`
	BestAsk *domain.Money   `json:"best_ask,omitempty"`
	Orders  int             `json:"orders"`
	Volume  decimal.Decimal `json:"volume"`
	Active  bool            `json:"active"`
}

func (b *OrderBook) Overview() BookOverview {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ov := BookOverview{
		Symbol: b.symbol.Code,
		Orders: len(b.byID),
		Volume: b.volume,
		Active: b.active,
	}
	if len(b.bids) > 0 {
		m := domain.NewMoney(b.bids[0].price, b.symbol.Quote)
		ov.BestBid = &m
	}
	if len(b.asks) > 0 {
		m := domain.NewMoney(b.asks[0].price, b.symbol.Quote)
		ov.BestAsk = &m
	}
	return ov
}

// CleanupInactiveOrders prunes orders whose status turned terminal while
// still physically present in the book.
func (b *OrderBook) CleanupInactiveOrders() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, o := range b.byID {
		if o.IsTerminal() || !o.Remaining.IsPositive() {
			b.remove(o)
			delete(b.byID, id)
			removed++
		}
	}
	return removed
}
