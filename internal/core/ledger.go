package core

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

// account holds one portfolio's balances and its live reservations. Every
// operation on one portfolio locks its account, and never more than one
// account at a time, so lock-ordering deadlocks cannot arise.
type account struct {
	mu           sync.Mutex
	cash         map[string]decimal.Decimal // currency -> balance
	holdings     map[string]decimal.Decimal // symbol code -> quantity
	reservations map[string]*domain.Reservation
}

func newAccount() *account {
	return &account{
		cash:         make(map[string]decimal.Decimal),
		holdings:     make(map[string]decimal.Decimal),
		reservations: make(map[string]*domain.Reservation),
	}
}

// reservedCash sums active (unexpired) cash holds in one currency.
// Expired-but-undeleted holds are excluded on every read path.
func (a *account) reservedCash(currency string, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.reservations {
		if r.Kind == domain.CashReservation && r.Currency == currency && !r.Expired(now) {
			total = total.Add(r.Remaining)
		}
	}
	return total
}

func (a *account) reservedAsset(code string, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.reservations {
		if r.Kind == domain.AssetReservation && r.Symbol.Code == code && !r.Expired(now) {
			total = total.Add(r.Remaining)
		}
	}
	return total
}

// Ledger holds time-bounded claims on portfolio cash and assets so that
// concurrent orders cannot commit the same funds twice.
type Ledger struct {
	ids port.IDSupplier
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account

	idxMu sync.Mutex
	byRes map[string]string // reservation id -> portfolio id
}

func NewLedger(ids port.IDSupplier, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = domain.DefaultReservationTTL
	}
	return &Ledger{
		ids:      ids,
		ttl:      ttl,
		now:      time.Now,
		accounts: make(map[string]*account),
		byRes:    make(map[string]string),
	}
}

func (l *Ledger) account(portfolioID string) *account {
	l.mu.RLock()
	a, ok := l.accounts[portfolioID]
	l.mu.RUnlock()
	if ok {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok = l.accounts[portfolioID]; ok {
		return a
	}
	a = newAccount()
	l.accounts[portfolioID] = a
	return a
}

// Deposit credits cash to a portfolio.
func (l *Ledger) Deposit(portfolioID string, m domain.Money) {
	a := l.account(portfolioID)
	a.mu.Lock()
	a.cash[m.Currency] = a.cash[m.Currency].Add(m.Amount)
	a.mu.Unlock()
}

// CreditAsset credits base-asset quantity to a portfolio.
func (l *Ledger) CreditAsset(portfolioID string, sym domain.Symbol, qty decimal.Decimal) {
	a := l.account(portfolioID)
	a.mu.Lock()
	a.holdings[sym.Base] = a.holdings[sym.Base].Add(qty)
	a.mu.Unlock()
}

func (l *Ledger) CashBalance(portfolioID, currency string) decimal.Decimal {
	a := l.account(portfolioID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash[currency]
}

func (l *Ledger) Holdings(portfolioID, asset string) decimal.Decimal {
	a := l.account(portfolioID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings[asset]
}

// AvailableCash is balance minus active cash holds.
func (l *Ledger) AvailableCash(portfolioID, currency string) decimal.Decimal {
	a := l.account(portfolioID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash[currency].Sub(a.reservedCash(currency, l.now()))
}

func (l *Ledger) AvailableHoldings(portfolioID string, sym domain.Symbol) decimal.Decimal {
	a := l.account(portfolioID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holdings[sym.Base].Sub(a.reservedAsset(sym.Code, l.now()))
}

// ReserveCash places a hold on unreserved cash for an order.
func (l *Ledger) ReserveCash(portfolioID string, amount domain.Money, orderID string) (*domain.Reservation, error) {
	if !amount.IsPositive() {
		return nil, &domain.InvalidOrderError{Reason: "reservation amount must be > 0"}
	}
	a := l.account(portfolioID)
	now := l.now()

	a.mu.Lock()
	available := a.cash[amount.Currency].Sub(a.reservedCash(amount.Currency, now))
	if available.LessThan(amount.Amount) {
		a.mu.Unlock()
		return nil, domain.ErrInsufficientFunds
	}
	r := &domain.Reservation{
		ID:          l.ids.NewID(),
		PortfolioID: portfolioID,
		OrderID:     orderID,
		Kind:        domain.CashReservation,
		Currency:    amount.Currency,
		Reserved:    amount.Amount,
		Remaining:   amount.Amount,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.ttl),
	}
	a.reservations[r.ID] = r
	a.mu.Unlock()

	l.index(r.ID, portfolioID)
	return r, nil
}

// ReserveAsset places a hold on unreserved base-asset quantity for an order.
func (l *Ledger) ReserveAsset(portfolioID string, sym domain.Symbol, qty decimal.Decimal, orderID string) (*domain.Reservation, error) {
	if !qty.IsPositive() {
		return nil, &domain.InvalidOrderError{Reason: "reservation quantity must be > 0"}
	}
	a := l.account(portfolioID)
	now := l.now()

	a.mu.Lock()
	available := a.holdings[sym.Base].Sub(a.reservedAsset(sym.Code, now))
	if available.LessThan(qty) {
		a.mu.Unlock()
		return nil, domain.ErrInsufficientHoldings
	}
	r := &domain.Reservation{
		ID:          l.ids.NewID(),
		PortfolioID: portfolioID,
		OrderID:     orderID,
		Kind:        domain.AssetReservation,
		Symbol:      sym,
		Reserved:    qty,
		Remaining:   qty,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.ttl),
	}
	a.reservations[r.ID] = r
	a.mu.Unlock()

	l.index(r.ID, portfolioID)
	return r, nil
}

func (l *Ledger) index(resID, portfolioID string) {
	l.idxMu.Lock()
	l.byRes[resID] = portfolioID
	l.idxMu.Unlock()
}

func (l *Ledger) owner(resID string) (string, bool) {
	l.idxMu.Lock()
	defer l.idxMu.Unlock()
	p, ok := l.byRes[resID]
	return p, ok
}

func (l *Ledger) unindex(resID string) {
	l.idxMu.Lock()
	delete(l.byRes, resID)
	l.idxMu.Unlock()
}

// Release drops a hold. Idempotent: releasing an unknown or already-released
// reservation is a no-op success, so saga compensation can be retried.
func (l *Ledger) Release(reservationID string) error {
	portfolioID, ok := l.owner(reservationID)
	if !ok {
		return nil
	}
	a := l.account(portfolioID)
	a.mu.Lock()
	delete(a.reservations, reservationID)
	a.mu.Unlock()
	l.unindex(reservationID)
	return nil
}

// Commit settles up to portion against the hold, debiting the portfolio. A
// non-positive portion commits the whole remaining hold. The settled amount
// (cash units or asset quantity) is returned; when the hold is fully
// consumed it is removed. An expired hold fails with ReservationExpired and
// is dropped, in which case the caller must treat the order as cancellable.
func (l *Ledger) Commit(reservationID string, portion decimal.Decimal) (decimal.Decimal, error) {
	portfolioID, ok := l.owner(reservationID)
	if !ok {
		return decimal.Zero, domain.ErrReservationNotFound
	}
	a := l.account(portfolioID)
	now := l.now()

	a.mu.Lock()
	r, ok := a.reservations[reservationID]
	if !ok {
		a.mu.Unlock()
		return decimal.Zero, domain.ErrReservationNotFound
	}
	if r.Expired(now) {
		delete(a.reservations, reservationID)
		a.mu.Unlock()
		l.unindex(reservationID)
		return decimal.Zero, domain.ErrReservationExpired
	}
	if portion.GreaterThan(r.Remaining) {
		a.mu.Unlock()
		return decimal.Zero, &domain.InvalidOrderError{Reason: "commit exceeds reserved amount"}
	}
	if portion.LessThanOrEqual(decimal.Zero) {
		portion = r.Remaining
	}

	switch r.Kind {
	case domain.CashReservation:
		a.cash[r.Currency] = a.cash[r.Currency].Sub(portion)
	case domain.AssetReservation:
		a.holdings[r.Symbol.Base] = a.holdings[r.Symbol.Base].Sub(portion)
	}
	r.Remaining = r.Remaining.Sub(portion)
	done := r.Remaining.IsZero()
	if done {
		delete(a.reservations, reservationID)
	}
	a.mu.Unlock()

	if done {
		l.unindex(reservationID)
	}
	return portion, nil
}

// ActiveReservations lists a portfolio's unexpired holds.
func (l *Ledger) ActiveReservations(portfolioID string) []*domain.Reservation {
	a := l.account(portfolioID)
	now := l.now()
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.Reservation, 0, len(a.reservations))
	for _, r := range a.reservations {
		if !r.Expired(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

// SweepExpired eagerly deletes holds whose expiry passed, returning the count.
func (l *Ledger) SweepExpired(now time.Time) int {
	l.mu.RLock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	swept := 0
	for _, a := range accounts {
		var dropped []string
		a.mu.Lock()
		for id, r := range a.reservations {
			if r.Expired(now) {
				delete(a.reservations, id)
				dropped = append(dropped, id)
			}
		}
		a.mu.Unlock()
		for _, id := range dropped {
			l.unindex(id)
		}
		swept += len(dropped)
	}
	return swept
}
