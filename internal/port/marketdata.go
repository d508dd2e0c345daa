package port

import "github.com/mohamedBounakhla/marketcore/internal/domain"

// MarketData serves last-known prices to valuation code. Matching never
// consults it.
type MarketData interface {
	GetCurrentPrice(symbol string) (domain.Money, bool)
}
