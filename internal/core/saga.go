package core

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/eventbus"
	"github.com/mohamedBounakhla/marketcore/internal/port"
)

var log = logrus.New()

// SagaState is the explicit, observable progress of one saga instance.
type SagaState string

const (
	// new-order saga
	SagaRequested         SagaState = "REQUESTED"
	SagaValidated         SagaState = "VALIDATED"
	SagaReserved          SagaState = "RESERVED"
	SagaMatchingInitiated SagaState = "MATCHING_INITIATED"
	SagaDone              SagaState = "DONE"
	SagaFailed            SagaState = "FAILED"

	// settlement saga
	SagaMatchDetected         SagaState = "MATCH_DETECTED"
	SagaSettlementInitiated   SagaState = "SETTLEMENT_INITIATED"
	SagaReservationsCommitted SagaState = "RESERVATIONS_COMMITTED"
	SagaTransactionCreated    SagaState = "TRANSACTION_CREATED"
	SagaCompleted             SagaState = "COMPLETED"
)

// Saga records where one correlated flow currently stands.
type Saga struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id,omitempty"`
	MatchID   string    `json:"match_id,omitempty"`
	State     SagaState `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event payloads.

type MatchingPayload struct {
	OrderID string `json:"order_id"`
}

type ReservationPayload struct {
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
}

type FailurePayload struct {
	OrderID string `json:"order_id,omitempty"`
	Reason  string `json:"reason"`
}

type MatchPayload struct {
	MatchID             string          `json:"match_id"`
	BuyOrderID          string          `json:"buy_order_id"`
	SellOrderID         string          `json:"sell_order_id"`
	BuyerPortfolioID    string          `json:"buyer_portfolio_id"`
	SellerPortfolioID   string          `json:"seller_portfolio_id"`
	BuyerReservationID  string          `json:"buyer_reservation_id"`
	SellerReservationID string          `json:"seller_reservation_id"`
	Symbol              domain.Symbol   `json:"symbol"`
	Quantity            decimal.Decimal `json:"quantity"`
	Price               domain.Money    `json:"price"`
}

type SettlementPayload struct {
	MatchID string `json:"match_id"`
}

// OrderRequest is what the outer surface hands the orchestrator. The symbol
// is already resolved against the registry by the caller.
type OrderRequest struct {
	PortfolioID string
	Symbol      domain.Symbol
	Side        domain.Side
	Price       domain.Money
	Quantity    decimal.Decimal
}

// Orchestrator drives each order through validation, reservation, matching
// and settlement, correlating every emitted event with a saga id and
// compensating when a step fails after side effects exist.
type Orchestrator struct {
	books  *Books
	ledger *Ledger
	bus    *eventbus.Bus
	ids    port.IDSupplier
	repo   port.Repository
	cache  port.DepthCache

	mu         sync.Mutex
	sagas      map[string]*Saga
	orders     map[string]*domain.Order
	resByOrder map[string]string // order id -> reservation id
	settled    map[string]string // match id -> transaction id
}

func NewOrchestrator(books *Books, ledger *Ledger, bus *eventbus.Bus, ids port.IDSupplier, repo port.Repository, cache port.DepthCache) *Orchestrator {
	o := &Orchestrator{
		books:      books,
		ledger:     ledger,
		bus:        bus,
		ids:        ids,
		repo:       repo,
		cache:      cache,
		sagas:      make(map[string]*Saga),
		orders:     make(map[string]*domain.Order),
		resByOrder: make(map[string]string),
		settled:    make(map[string]string),
	}
	bus.Subscribe(eventbus.MatchingInitiated, o.onMatchingInitiated)
	bus.Subscribe(eventbus.OrderMatched, o.onOrderMatched)
	return o
}

func (o *Orchestrator) Ledger() *Ledger { return o.ledger }
func (o *Orchestrator) Books() *Books   { return o.books }

func (o *Orchestrator) setState(corr string, state SagaState, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sagas[corr]
	if !ok {
		s = &Saga{ID: corr}
		o.sagas[corr] = s
	}
	s.State = state
	s.Reason = reason
	s.UpdatedAt = time.Now()
}

// SagaStatus exposes the recorded progress of one correlation id.
func (o *Orchestrator) SagaStatus(corr string) (Saga, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sagas[corr]
	if !ok {
		return Saga{}, false
	}
	return *s, true
}

func (o *Orchestrator) event(t eventbus.Type, corr string, payload interface{}) eventbus.Event {
	return eventbus.Event{
		ID:            o.ids.NewID(),
		Type:          t,
		CorrelationID: corr,
		Timestamp:     time.Now(),
		Payload:       payload,
	}
}

// PlaceOrder runs the new-order saga: validate, reserve, then hand the order
// to matching asynchronously. It returns once matching has been initiated;
// match results arrive as OrderMatched events consumed by the settlement
// saga. On failure the saga stops with an OrderCreationFailed event; no step
// leaves a dangling reservation behind.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req OrderRequest) (ord *domain.Order, corr string, err error) {
	corr = o.ids.NewID()
	o.setState(corr, SagaRequested, "")

	defer func() {
		if r := recover(); r != nil {
			err = &domain.EngineError{Op: "place order", Cause: errors.Errorf("panic: %v", r)}
			o.fail(corr, "", err)
		}
	}()

	// Validation step. Nothing to compensate on failure.
	ord, err = domain.NewOrder(o.ids.NewID(), req.PortfolioID, req.Symbol, req.Side, req.Price, req.Quantity, time.Now())
	if err != nil {
		o.fail(corr, "", err)
		return nil, corr, err
	}
	o.setState(corr, SagaValidated, "")
	o.mu.Lock()
	o.sagas[corr].OrderID = ord.ID
	o.mu.Unlock()
	o.bus.Publish(o.event(eventbus.OrderValidated, corr, MatchingPayload{OrderID: ord.ID}))

	// Reservation step.
	var res *domain.Reservation
	if req.Side == domain.Buy {
		res, err = o.ledger.ReserveCash(req.PortfolioID, req.Price.Mul(req.Quantity), ord.ID)
	} else {
		res, err = o.ledger.ReserveAsset(req.PortfolioID, req.Symbol, req.Quantity, ord.ID)
	}
	if err != nil {
		o.fail(corr, ord.ID, err)
		return nil, corr, err
	}
	o.mu.Lock()
	o.orders[ord.ID] = ord
	o.resByOrder[ord.ID] = res.ID
	o.mu.Unlock()
	o.setState(corr, SagaReserved, "")
	o.bus.Publish(o.event(eventbus.ReservationCreated, corr, ReservationPayload{ReservationID: res.ID, OrderID: ord.ID}))

	if o.repo != nil {
		if err := o.repo.SaveOrder(ctx, ord); err != nil {
			log.WithError(err).WithField("order_id", ord.ID).Warn("persist order failed")
		}
		if err := o.repo.SaveReservation(ctx, res); err != nil {
			log.WithError(err).WithField("reservation_id", res.ID).Warn("persist reservation failed")
		}
	}

	// Matching step: asynchronous hand-off, the saga does not block on the
	// match outcome.
	o.setState(corr, SagaMatchingInitiated, "")
	o.bus.Publish(o.event(eventbus.MatchingInitiated, corr, MatchingPayload{OrderID: ord.ID}))

	log.WithFields(logrus.Fields{
		"correlation_id": corr,
		"order_id":       ord.ID,
		"symbol":         ord.Symbol.Code,
		"side":           ord.Side,
	}).Info("order accepted")
	return ord, corr, nil
}

// fail terminates a new-order saga, releasing its reservation if one exists.
func (o *Orchestrator) fail(corr, orderID string, cause error) {
	if orderID != "" {
		o.mu.Lock()
		resID, ok := o.resByOrder[orderID]
		o.mu.Unlock()
		if ok {
			_ = o.ledger.Release(resID)
		}
	}
	o.setState(corr, SagaFailed, cause.Error())
	o.bus.Publish(o.event(eventbus.OrderCreationFailed, corr, FailurePayload{OrderID: orderID, Reason: cause.Error()}))
}

// onMatchingInitiated feeds the order into its book and emits one
// OrderMatched event per produced match.
func (o *Orchestrator) onMatchingInitiated(ctx context.Context, evt eventbus.Event) error {
	p, ok := evt.Payload.(MatchingPayload)
	if !ok {
		return errors.Errorf("matching initiated: unexpected payload %T", evt.Payload)
	}

	o.mu.Lock()
	ord := o.orders[p.OrderID]
	o.mu.Unlock()
	if ord == nil {
		return errors.Wrap(domain.ErrOrderNotFound, p.OrderID)
	}
	if ord.IsTerminal() {
		// redelivered after the order already finished
		return nil
	}

	book := o.books.Get(ord.Symbol)
	matches, err := book.AddOrder(ord)
	if err != nil {
		o.fail(evt.CorrelationID, ord.ID, err)
		return &domain.EngineError{Op: "matching", Cause: err}
	}
	o.setState(evt.CorrelationID, SagaDone, "")

	for _, m := range matches {
		o.mu.Lock()
		buyRes := o.resByOrder[m.Buy.ID]
		sellRes := o.resByOrder[m.Sell.ID]
		o.mu.Unlock()
		o.bus.Publish(o.event(eventbus.OrderMatched, m.ID, MatchPayload{
			MatchID:             m.ID,
			BuyOrderID:          m.Buy.ID,
			SellOrderID:         m.Sell.ID,
			BuyerPortfolioID:    m.Buy.PortfolioID,
			SellerPortfolioID:   m.Sell.PortfolioID,
			BuyerReservationID:  buyRes,
			SellerReservationID: sellRes,
			Symbol:              m.Symbol,
			Quantity:            m.Quantity,
			Price:               m.Price,
		}))
	}

	o.refreshDepth(ctx, book)
	return nil
}

func (o *Orchestrator) refreshDepth(ctx context.Context, book *OrderBook) {
	if o.cache == nil {
		return
	}
	if err := o.cache.SetDepth(ctx, book.Symbol().Code, book.Depth(0)); err != nil {
		log.WithError(err).WithField("symbol", book.Symbol().Code).Warn("depth cache update failed")
	}
}

// CancelOrder removes a resting order and releases its reservation.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) error {
	o.mu.Lock()
	ord := o.orders[orderID]
	resID := o.resByOrder[orderID]
	o.mu.Unlock()
	if ord == nil {
		return domain.ErrOrderNotFound
	}

	book := o.books.Get(ord.Symbol)
	if err := book.CancelOrder(orderID); err != nil {
		return err
	}
	if resID != "" {
		_ = o.ledger.Release(resID)
	}
	if o.repo != nil {
		if err := o.repo.SaveOrder(ctx, ord); err != nil {
			log.WithError(err).WithField("order_id", orderID).Warn("persist cancel failed")
		}
	}
	o.refreshDepth(ctx, book)
	return nil
}

// GetOrder looks an order up in memory, falling back to the repository.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o.mu.Lock()
	ord := o.orders[orderID]
	o.mu.Unlock()
	if ord != nil {
		return ord, nil
	}
	if o.repo != nil {
		return o.repo.FindOrder(ctx, orderID)
	}
	return nil, domain.ErrOrderNotFound
}

// Depth answers a depth query, preferring the cache; readers tolerate
// slightly stale data rather than blocking matching.
func (o *Orchestrator) Depth(ctx context.Context, symbol string, levels int) (*domain.MarketDepth, error) {
	if o.cache != nil {
		if d, err := o.cache.GetDepth(ctx, symbol); err == nil && d != nil {
			return d, nil
		}
	}
	book, ok := o.books.Lookup(symbol)
	if !ok {
		return nil, domain.ErrUnknownSymbol
	}
	return book.Depth(levels), nil
}

func (o *Orchestrator) TransactionsForOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	if o.repo == nil {
		return nil, nil
	}
	return o.repo.TransactionsForOrder(ctx, orderID)
}
