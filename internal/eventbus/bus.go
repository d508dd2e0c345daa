package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Type is the kind of an event.
type Type string

const (
	OrderValidated      Type = "order_validated"
	ReservationCreated  Type = "reservation_created"
	MatchingInitiated   Type = "matching_initiated"
	OrderMatched        Type = "order_matched"
	SettlementInitiated Type = "settlement_initiated"
	TransactionCreated  Type = "transaction_created"
	SettlementCompleted Type = "settlement_completed"
	OrderCreationFailed Type = "order_creation_failed"
)

// Event carries a correlation id shared by everything belonging to one saga
// instance.
type Event struct {
	ID            string      `json:"id"`
	Type          Type        `json:"type"`
	CorrelationID string      `json:"correlation_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Payload       interface{} `json:"payload"`
}

// Handler consumes one event. Delivery is at-least-once: handlers must be
// idempotent under redelivery. A returned error is logged, not retried here.
type Handler func(ctx context.Context, evt Event) error

// Bus is an in-process asynchronous pub/sub transport. Events of one type are
// dispatched by a single goroutine, so same-type emission order is preserved;
// no ordering holds across types.
type Bus struct {
	mu       sync.Mutex
	buffer   int
	handlers map[Type][]Handler
	queues   map[Type]chan Event
	pending  sync.WaitGroup
	closed   bool
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		buffer:   buffer,
		handlers: make(map[Type][]Handler),
		queues:   make(map[Type]chan Event),
	}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish is fire-and-forget; it enqueues and returns.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	q := b.queueFor(evt.Type)
	b.pending.Add(1)
	b.mu.Unlock()
	q <- evt
}

func (b *Bus) PublishAll(evts ...Event) {
	for _, evt := range evts {
		b.Publish(evt)
	}
}

// queueFor lazily starts the per-type dispatch goroutine. Caller holds b.mu.
func (b *Bus) queueFor(t Type) chan Event {
	q, ok := b.queues[t]
	if !ok {
		q = make(chan Event, b.buffer)
		b.queues[t] = q
		go b.dispatch(q)
	}
	return q
}

func (b *Bus) dispatch(q chan Event) {
	for evt := range q {
		b.mu.Lock()
		hs := append([]Handler(nil), b.handlers[evt.Type]...)
		b.mu.Unlock()
		for _, h := range hs {
			if err := h(context.Background(), evt); err != nil {
				log.WithFields(logrus.Fields{
					"event":          evt.Type,
					"correlation_id": evt.CorrelationID,
				}).WithError(err).Error("event handler failed")
			}
		}
		b.pending.Done()
	}
}

// Flush blocks until every published event has been handled. Intended for
// tests and shutdown.
func (b *Bus) Flush() {
	b.pending.Wait()
}

func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.pending.Wait()
	b.mu.Lock()
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()
}
