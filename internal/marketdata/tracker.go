package marketdata

import (
	"context"
	"sync"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/eventbus"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

// Tracker keeps the last executed price per symbol, fed from settlement
// events. Strategy and valuation code read it; matching never does.
type Tracker struct {
	mu   sync.RWMutex
	last map[string]domain.Money
}

var _ port.MarketData = (*Tracker)(nil)

func NewTracker(bus *eventbus.Bus) *Tracker {
	t := &Tracker{last: make(map[string]domain.Money)}
	bus.Subscribe(eventbus.TransactionCreated, t.onTransaction)
	return t
}

func (t *Tracker) onTransaction(ctx context.Context, evt eventbus.Event) error {
	tx, ok := evt.Payload.(*domain.Transaction)
	if !ok {
		return nil
	}
	t.mu.Lock()
	t.last[tx.Symbol.Code] = tx.Price
	t.mu.Unlock()
	return nil
}

func (t *Tracker) GetCurrentPrice(symbol string) (domain.Money, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.last[symbol]
	return m, ok
}
