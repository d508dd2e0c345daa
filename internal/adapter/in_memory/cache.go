package in_memory

import (
	"context"
	"sync"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

type Cache struct {
	mu    sync.Mutex
	store map[string]*domain.MarketDepth
}

var _ port.DepthCache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{store: make(map[string]*domain.MarketDepth)}
}

func (c *Cache) SetDepth(ctx context.Context, symbol string, d *domain.MarketDepth) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *d
	c.store[symbol] = &cp
	return nil
}

func (c *Cache) GetDepth(ctx context.Context, symbol string) (*domain.MarketDepth, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.store[symbol]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}
