package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/eventbus"
)

// onOrderMatched runs the settlement saga for one match: commit both sides'
// reservations, move cash and asset between the portfolios, record the
// immutable transaction and emit completion events. The match already
// removed the quantity from the book, so a failure here never re-inserts it;
// it is surfaced as a settlement failure for reconciliation.
func (o *Orchestrator) onOrderMatched(ctx context.Context, evt eventbus.Event) (err error) {
	p, ok := evt.Payload.(MatchPayload)
	if !ok {
		return errors.Errorf("order matched: unexpected payload %T", evt.Payload)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &domain.EngineError{Op: "settlement", Cause: errors.Errorf("panic: %v", r)}
			o.setState(p.MatchID, SagaFailed, err.Error())
		}
	}()

	// Dedupe by match id: redelivered events must not settle twice.
	o.mu.Lock()
	if _, done := o.settled[p.MatchID]; done {
		o.mu.Unlock()
		return nil
	}
	s := &Saga{ID: p.MatchID, MatchID: p.MatchID, State: SagaMatchDetected, UpdatedAt: time.Now()}
	o.sagas[p.MatchID] = s
	o.mu.Unlock()

	o.bus.Publish(o.event(eventbus.SettlementInitiated, p.MatchID, SettlementPayload{MatchID: p.MatchID}))
	o.setState(p.MatchID, SagaSettlementInitiated, "")

	cost := p.Price.Mul(p.Quantity)

	// Commit the buyer's cash hold for the executed cost.
	if _, err := o.ledger.Commit(p.BuyerReservationID, cost.Amount); err != nil {
		// No money moved yet: release the seller's still-valid hold and
		// surface the failure. The affected order needs cancellation or
		// re-queue, not a silent half-settled trade.
		_ = o.ledger.Release(p.SellerReservationID)
		o.setState(p.MatchID, SagaFailed, err.Error())
		return errors.Wrapf(err, "settle match %s: commit buyer reservation", p.MatchID)
	}

	// Commit the seller's asset hold for the executed quantity.
	if _, err := o.ledger.Commit(p.SellerReservationID, p.Quantity); err != nil {
		// The buyer side already settled; compensate by refunding the
		// debited cash before surfacing the failure.
		o.ledger.Deposit(p.BuyerPortfolioID, cost)
		o.setState(p.MatchID, SagaFailed, err.Error())
		return errors.Wrapf(err, "settle match %s: commit seller reservation", p.MatchID)
	}

	// Credit the counterparties.
	o.ledger.CreditAsset(p.BuyerPortfolioID, p.Symbol, p.Quantity)
	o.ledger.Deposit(p.SellerPortfolioID, cost)
	o.setState(p.MatchID, SagaReservationsCommitted, "")

	tx := &domain.Transaction{
		ID:                  o.ids.NewID(),
		MatchID:             p.MatchID,
		BuyOrderID:          p.BuyOrderID,
		SellOrderID:         p.SellOrderID,
		BuyerPortfolioID:    p.BuyerPortfolioID,
		SellerPortfolioID:   p.SellerPortfolioID,
		BuyerReservationID:  p.BuyerReservationID,
		SellerReservationID: p.SellerReservationID,
		Symbol:              p.Symbol,
		Quantity:            p.Quantity,
		Price:               p.Price,
		ExecutedAt:          evt.Timestamp,
	}
	if o.repo != nil {
		if err := o.repo.SaveTransaction(ctx, tx); err != nil {
			log.WithError(err).WithField("transaction_id", tx.ID).Warn("persist transaction failed")
		}
	}

	o.mu.Lock()
	o.settled[p.MatchID] = tx.ID
	o.mu.Unlock()
	o.setState(p.MatchID, SagaTransactionCreated, "")
	o.bus.Publish(o.event(eventbus.TransactionCreated, p.MatchID, tx))

	o.releaseLeftovers(ctx, p.BuyOrderID, p.SellOrderID)

	o.setState(p.MatchID, SagaCompleted, "")
	o.bus.Publish(o.event(eventbus.SettlementCompleted, p.MatchID, SettlementPayload{MatchID: p.MatchID}))

	log.WithFields(logrus.Fields{
		"correlation_id": p.MatchID,
		"transaction_id": tx.ID,
		"symbol":         p.Symbol.Code,
		"quantity":       p.Quantity,
		"price":          p.Price,
	}).Info("settlement completed")
	return nil
}

// releaseLeftovers drops whatever is still held for orders that reached a
// terminal state, e.g. cash over-reserved at the limit price when the
// execution price was better. Release is idempotent, so visiting a fully
// committed reservation is harmless.
func (o *Orchestrator) releaseLeftovers(ctx context.Context, orderIDs ...string) {
	for _, id := range orderIDs {
		o.mu.Lock()
		ord := o.orders[id]
		resID := o.resByOrder[id]
		o.mu.Unlock()
		if ord == nil {
			continue
		}
		if o.repo != nil {
			if err := o.repo.SaveOrder(ctx, ord); err != nil {
				log.WithError(err).WithField("order_id", id).Warn("persist settled order failed")
			}
		}
		if !ord.IsTerminal() || resID == "" {
			continue
		}
		_ = o.ledger.Release(resID)
		if o.repo != nil {
			if err := o.repo.DeleteReservation(ctx, resID); err != nil {
				log.WithError(err).WithField("reservation_id", resID).Warn("delete reservation failed")
			}
		}
	}
}
