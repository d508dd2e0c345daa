package port

import (
	"context"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
)

type DepthCache interface {
	SetDepth(ctx context.Context, symbol string, d *domain.MarketDepth) error
	GetDepth(ctx context.Context, symbol string) (*domain.MarketDepth, error)
}
