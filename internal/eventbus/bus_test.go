package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSameTypeOrderPreserved(t *testing.T) {
	b := New(8)
	defer b.Close()

	var mu sync.Mutex
	var got []string
	b.Subscribe(OrderValidated, func(ctx context.Context, evt Event) error {
		mu.Lock()
		got = append(got, evt.ID)
		mu.Unlock()
		return nil
	})

	const n = 100
	for i := 0; i < n; i++ {
		b.Publish(Event{ID: fmt.Sprintf("e-%d", i), Type: OrderValidated})
	}
	b.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != n {
		t.Fatalf("want %d deliveries, got %d", n, len(got))
	}
	for i, id := range got {
		if want := fmt.Sprintf("e-%d", i); id != want {
			t.Fatalf("delivery %d out of order: got %s want %s", i, id, want)
		}
	}
}

func TestAllSubscribersReceive(t *testing.T) {
	b := New(8)
	defer b.Close()

	var first, second int32
	b.Subscribe(OrderMatched, func(ctx context.Context, evt Event) error {
		atomic.AddInt32(&first, 1)
		return nil
	})
	b.Subscribe(OrderMatched, func(ctx context.Context, evt Event) error {
		atomic.AddInt32(&second, 1)
		return nil
	})

	b.Publish(Event{ID: "m-1", Type: OrderMatched})
	b.Flush()

	if first != 1 || second != 1 {
		t.Fatalf("want both subscribers hit once, got %d / %d", first, second)
	}
}

func TestHandlerErrorDoesNotStopDispatch(t *testing.T) {
	b := New(8)
	defer b.Close()

	var delivered int32
	b.Subscribe(TransactionCreated, func(ctx context.Context, evt Event) error {
		return fmt.Errorf("boom")
	})
	b.Subscribe(TransactionCreated, func(ctx context.Context, evt Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	b.Publish(Event{ID: "t-1", Type: TransactionCreated})
	b.Publish(Event{ID: "t-2", Type: TransactionCreated})
	b.Flush()

	if delivered != 2 {
		t.Fatalf("want 2 deliveries past the failing handler, got %d", delivered)
	}
}

// Handlers may publish follow-up events; Flush waits for the whole cascade.
func TestFlushWaitsForCascade(t *testing.T) {
	b := New(8)
	defer b.Close()

	var settled int32
	b.Subscribe(MatchingInitiated, func(ctx context.Context, evt Event) error {
		b.Publish(Event{ID: "m-1", Type: OrderMatched})
		return nil
	})
	b.Subscribe(OrderMatched, func(ctx context.Context, evt Event) error {
		atomic.AddInt32(&settled, 1)
		return nil
	})

	b.Publish(Event{ID: "i-1", Type: MatchingInitiated})
	b.Flush()

	if settled != 1 {
		t.Fatalf("flush returned before the follow-up event was handled")
	}
}

func TestPublishAfterCloseIsNoOp(t *testing.T) {
	b := New(8)

	var delivered int32
	b.Subscribe(OrderValidated, func(ctx context.Context, evt Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	b.Publish(Event{ID: "v-1", Type: OrderValidated})
	b.Close()
	b.Publish(Event{ID: "v-2", Type: OrderValidated})
	b.Close() // idempotent

	if delivered != 1 {
		t.Fatalf("want only the pre-close event delivered, got %d", delivered)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := New(8)
	defer b.Close()

	done := make(chan Event, 1)
	b.Subscribe(SettlementCompleted, func(ctx context.Context, evt Event) error {
		done <- evt
		return nil
	})

	b.Publish(Event{ID: "s-1", Type: SettlementCompleted})
	b.Flush()

	evt := <-done
	if evt.Timestamp.IsZero() {
		t.Fatal("zero timestamp should be stamped on publish")
	}
}
