package core

import (
	"sync"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

// Books is the per-symbol book registry. Each book serializes its own
// mutations; the registry lock only guards the map.
type Books struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
	ids   port.IDSupplier
}

func NewBooks(ids port.IDSupplier) *Books {
	return &Books{
		books: make(map[string]*OrderBook),
		ids:   ids,
	}
}

func (bs *Books) Get(symbol domain.Symbol) *OrderBook {
	bs.mu.RLock()
	b, ok := bs.books[symbol.Code]
	bs.mu.RUnlock()
	if ok {
		return b
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok = bs.books[symbol.Code]; ok {
		return b
	}
	b = NewOrderBook(symbol, bs.ids)
	bs.books[symbol.Code] = b
	return b
}

func (bs *Books) Lookup(code string) (*OrderBook, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.books[code]
	return b, ok
}

func (bs *Books) All() []*OrderBook {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make([]*OrderBook, 0, len(bs.books))
	for _, b := range bs.books {
		out = append(out, b)
	}
	return out
}

// CleanupInactiveOrders sweeps every book, returning the total removed.
func (bs *Books) CleanupInactiveOrders() int {
	removed := 0
	for _, b := range bs.All() {
		removed += b.CleanupInactiveOrders()
	}
	return removed
}
