package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohamedBounakhla/marketcore/internal/adapter/in_memory"
	"github.com/mohamedBounakhla/marketcore/internal/domain"
	"github.com/mohamedBounakhla/marketcore/internal/eventbus"
)

func newTestOrchestrator() (*Orchestrator, *eventbus.Bus, *in_memory.MemoryRepo) {
	bus := eventbus.New(64)
	supplier := &seqIDs{}
	repo := in_memory.NewMemoryRepo()
	orch := NewOrchestrator(NewBooks(supplier), NewLedger(supplier, 0), bus, supplier, repo, in_memory.NewCache())
	return orch, bus, repo
}

// recorder collects published events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) record(ctx context.Context, evt eventbus.Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *recorder) byType(t eventbus.Type) []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestEndToEndMatchAndSettlement(t *testing.T) {
	orch, bus, repo := newTestOrchestrator()
	ledger := orch.Ledger()
	rec := &recorder{}
	for _, typ := range []eventbus.Type{eventbus.OrderMatched, eventbus.TransactionCreated, eventbus.SettlementCompleted} {
		bus.Subscribe(typ, rec.record)
	}
	ctx := context.Background()

	ledger.CreditAsset("seller", domain.BTCUSD, dec("1"))
	ledger.Deposit("buyer", usd("50000"))

	sellOrd, _, err := orch.PlaceOrder(ctx, OrderRequest{
		PortfolioID: "seller",
		Symbol:      domain.BTCUSD,
		Side:        domain.Sell,
		Price:       usd("50000"),
		Quantity:    dec("1"),
	})
	if err != nil {
		t.Fatalf("place sell: %v", err)
	}
	bus.Flush()

	buyOrd, corr, err := orch.PlaceOrder(ctx, OrderRequest{
		PortfolioID: "buyer",
		Symbol:      domain.BTCUSD,
		Side:        domain.Buy,
		Price:       usd("50000"),
		Quantity:    dec("1"),
	})
	if err != nil {
		t.Fatalf("place buy: %v", err)
	}
	bus.Flush()

	// exactly one match at the seller's price
	matched := rec.byType(eventbus.OrderMatched)
	if len(matched) != 1 {
		t.Fatalf("want 1 OrderMatched, got %d", len(matched))
	}
	mp := matched[0].Payload.(MatchPayload)
	if !mp.Price.Amount.Equal(dec("50000")) || !mp.Quantity.Equal(dec("1")) {
		t.Fatalf("bad match: %s x %s", mp.Quantity, mp.Price.Amount)
	}

	if buyOrd.Status != domain.Filled || sellOrd.Status != domain.Filled {
		t.Fatalf("both orders should be FILLED, got %s / %s", buyOrd.Status, sellOrd.Status)
	}

	// balances actually moved: reservations were committed, not released
	if !ledger.CashBalance("buyer", "USD").IsZero() {
		t.Errorf("buyer cash should be 0, got %s", ledger.CashBalance("buyer", "USD"))
	}
	if !ledger.Holdings("buyer", "BTC").Equal(dec("1")) {
		t.Errorf("buyer should hold 1 BTC, got %s", ledger.Holdings("buyer", "BTC"))
	}
	if !ledger.CashBalance("seller", "USD").Equal(dec("50000")) {
		t.Errorf("seller cash should be 50000, got %s", ledger.CashBalance("seller", "USD"))
	}
	if !ledger.Holdings("seller", "BTC").IsZero() {
		t.Errorf("seller should hold 0 BTC, got %s", ledger.Holdings("seller", "BTC"))
	}
	if len(ledger.ActiveReservations("buyer")) != 0 || len(ledger.ActiveReservations("seller")) != 0 {
		t.Error("no reservation should stay active after settlement")
	}

	// one immutable transaction recorded
	txs, err := repo.TransactionsForOrder(context.Background(), buyOrd.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("want 1 transaction, got %d", len(txs))
	}
	if txs[0].MatchID != mp.MatchID {
		t.Errorf("transaction should reference the match, got %s", txs[0].MatchID)
	}

	if len(rec.byType(eventbus.SettlementCompleted)) != 1 {
		t.Error("want 1 SettlementCompleted event")
	}
	if saga, ok := orch.SagaStatus(mp.MatchID); !ok || saga.State != SagaCompleted {
		t.Errorf("settlement saga should be COMPLETED, got %+v", saga)
	}
	if saga, ok := orch.SagaStatus(corr); !ok || saga.State != SagaDone {
		t.Errorf("order saga should be DONE, got %+v", saga)
	}
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	orch, bus, _ := newTestOrchestrator()
	rec := &recorder{}
	bus.Subscribe(eventbus.OrderCreationFailed, rec.record)

	_, _, err := orch.PlaceOrder(context.Background(), OrderRequest{
		PortfolioID: "pauper",
		Symbol:      domain.BTCUSD,
		Side:        domain.Buy,
		Price:       usd("50000"),
		Quantity:    dec("1"),
	})
	if err == nil {
		t.Fatal("want insufficient funds failure")
	}
	bus.Flush()

	failures := rec.byType(eventbus.OrderCreationFailed)
	if len(failures) != 1 {
		t.Fatalf("want 1 OrderCreationFailed event, got %d", len(failures))
	}
	fp := failures[0].Payload.(FailurePayload)
	if fp.Reason != domain.ErrInsufficientFunds.Error() {
		t.Errorf("want insufficient funds reason, got %q", fp.Reason)
	}
}

// A buy reserved at its limit but executed at a better resting price keeps
// only the executed cost; the leftover hold is released on settlement.
func TestPriceImprovementReleasesLeftoverHold(t *testing.T) {
	orch, bus, _ := newTestOrchestrator()
	ledger := orch.Ledger()
	ctx := context.Background()

	ledger.CreditAsset("seller", domain.BTCUSD, dec("1"))
	ledger.Deposit("buyer", usd("51000"))

	if _, _, err := orch.PlaceOrder(ctx, OrderRequest{
		PortfolioID: "seller", Symbol: domain.BTCUSD, Side: domain.Sell,
		Price: usd("50000"), Quantity: dec("1"),
	}); err != nil {
		t.Fatalf("place sell: %v", err)
	}
	bus.Flush()

	if _, _, err := orch.PlaceOrder(ctx, OrderRequest{
		PortfolioID: "buyer", Symbol: domain.BTCUSD, Side: domain.Buy,
		Price: usd("51000"), Quantity: dec("1"),
	}); err != nil {
		t.Fatalf("place buy: %v", err)
	}
	bus.Flush()

	if !ledger.CashBalance("buyer", "USD").Equal(dec("1000")) {
		t.Fatalf("buyer should keep 1000, got %s", ledger.CashBalance("buyer", "USD"))
	}
	if !ledger.AvailableCash("buyer", "USD").Equal(dec("1000")) {
		t.Fatalf("leftover hold not released, available %s", ledger.AvailableCash("buyer", "USD"))
	}
}

// If the seller's reservation is gone by settlement time, the already
// committed buyer side is refunded and no transaction is created.
func TestSettlementCompensatesOnCommitFailure(t *testing.T) {
	orch, _, repo := newTestOrchestrator()
	ledger := orch.Ledger()
	ctx := context.Background()

	ledger.Deposit("buyer", usd("50000"))
	buyRes, err := ledger.ReserveCash("buyer", usd("50000"), "buy-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	evt := eventbus.Event{
		ID: "evt-1", Type: eventbus.OrderMatched, CorrelationID: "m-1", Timestamp: time.Now(),
		Payload: MatchPayload{
			MatchID:             "m-1",
			BuyOrderID:          "buy-1",
			SellOrderID:         "sell-1",
			BuyerPortfolioID:    "buyer",
			SellerPortfolioID:   "seller",
			BuyerReservationID:  buyRes.ID,
			SellerReservationID: "already-swept",
			Symbol:              domain.BTCUSD,
			Quantity:            dec("1"),
			Price:               usd("50000"),
		},
	}
	if err := orch.onOrderMatched(ctx, evt); err == nil {
		t.Fatal("settlement should surface the commit failure")
	}

	if !ledger.CashBalance("buyer", "USD").Equal(dec("50000")) {
		t.Fatalf("buyer must be refunded, got %s", ledger.CashBalance("buyer", "USD"))
	}
	if txs, _ := repo.TransactionsForOrder(ctx, "buy-1"); len(txs) != 0 {
		t.Fatalf("no transaction should exist, got %d", len(txs))
	}
	if saga, ok := orch.SagaStatus("m-1"); !ok || saga.State != SagaFailed {
		t.Errorf("settlement saga should be FAILED, got %+v", saga)
	}
}

// Redelivered OrderMatched events settle exactly once.
func TestSettlementDedupesRedelivery(t *testing.T) {
	orch, _, _ := newTestOrchestrator()
	ledger := orch.Ledger()
	ctx := context.Background()

	ledger.Deposit("buyer", usd("50000"))
	ledger.CreditAsset("seller", domain.BTCUSD, dec("1"))
	buyRes, _ := ledger.ReserveCash("buyer", usd("50000"), "buy-1")
	sellRes, _ := ledger.ReserveAsset("seller", domain.BTCUSD, dec("1"), "sell-1")

	evt := eventbus.Event{
		ID: "evt-1", Type: eventbus.OrderMatched, CorrelationID: "m-1", Timestamp: time.Now(),
		Payload: MatchPayload{
			MatchID:             "m-1",
			BuyOrderID:          "buy-1",
			SellOrderID:         "sell-1",
			BuyerPortfolioID:    "buyer",
			SellerPortfolioID:   "seller",
			BuyerReservationID:  buyRes.ID,
			SellerReservationID: sellRes.ID,
			Symbol:              domain.BTCUSD,
			Quantity:            dec("1"),
			Price:               usd("50000"),
		},
	}
	if err := orch.onOrderMatched(ctx, evt); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := orch.onOrderMatched(ctx, evt); err != nil {
		t.Fatalf("redelivery must be a no-op, got %v", err)
	}

	if !ledger.CashBalance("seller", "USD").Equal(dec("50000")) {
		t.Fatalf("seller credited more than once: %s", ledger.CashBalance("seller", "USD"))
	}
	if !ledger.Holdings("buyer", "BTC").Equal(dec("1")) {
		t.Fatalf("buyer credited more than once: %s", ledger.Holdings("buyer", "BTC"))
	}
}

func TestCancelOrderReleasesReservation(t *testing.T) {
	orch, bus, _ := newTestOrchestrator()
	ledger := orch.Ledger()
	ctx := context.Background()

	ledger.Deposit("buyer", usd("50000"))
	ord, _, err := orch.PlaceOrder(ctx, OrderRequest{
		PortfolioID: "buyer", Symbol: domain.BTCUSD, Side: domain.Buy,
		Price: usd("50000"), Quantity: dec("1"),
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	bus.Flush()

	if err := orch.CancelOrder(ctx, ord.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ord.Status != domain.Cancelled {
		t.Fatalf("want CANCELLED, got %s", ord.Status)
	}
	if !ledger.AvailableCash("buyer", "USD").Equal(dec("50000")) {
		t.Fatalf("hold not released, available %s", ledger.AvailableCash("buyer", "USD"))
	}
	if err := orch.CancelOrder(ctx, "nope"); err == nil {
		t.Fatal("cancel of unknown order should fail")
	}
}
