package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/motorent/rentord/model"
)

// --- Subscriptions and filtering ---

func TestEnhancedBus_FilterMatching(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		evt    model.Event
		want   bool
	}{
		{
			name: "nil filter matches everything",
			evt:  model.Event{Type: model.EventSagaFailed, Source: "anywhere"},
			want: true,
		},
		{
			name:   "source match",
			filter: &Filter{Source: "contracts"},
			evt:    model.Event{Type: model.EventContractActivated, Source: "contracts"},
			want:   true,
		},
		{
			name:   "source mismatch",
			filter: &Filter{Source: "contracts"},
			evt:    model.Event{Type: model.EventContractActivated, Source: "invoices"},
			want:   false,
		},
		{
			name:   "priority and category must both match",
			filter: &Filter{Priority: model.PriorityHigh, Category: model.CategoryContracts},
			evt:    model.Event{Type: model.EventContractActivated, Priority: model.PriorityHigh, Category: model.CategoryContracts},
			want:   true,
		},
		{
			name:   "priority mismatch rejects",
			filter: &Filter{Priority: model.PriorityUrgent},
			evt:    model.Event{Type: model.EventContractActivated, Priority: model.PriorityHigh},
			want:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.matches(tc.evt); got != tc.want {
				t.Errorf("matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEnhancedBus_SubscribeAndUnsubscribe(t *testing.T) {
	bus := NewEnhancedBus(nil, WithBackoffBase(time.Millisecond))

	var calls atomic.Int32
	id := bus.Subscribe(model.EventContractActivated, func(context.Context, model.Event) error {
		calls.Add(1)
		return nil
	}, nil)

	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated})
	bus.Drain()
	if calls.Load() != 1 {
		t.Fatalf("invocations = %d, want 1", calls.Load())
	}

	bus.Unsubscribe(id)
	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated})
	bus.Drain()
	if calls.Load() != 1 {
		t.Errorf("invocations after unsubscribe = %d, want 1", calls.Load())
	}

	// Unknown IDs are ignored.
	bus.Unsubscribe("no-such-subscription")
}

func TestEnhancedBus_FilteredSubscriptionSkipsNonMatching(t *testing.T) {
	bus := NewEnhancedBus(nil, WithBackoffBase(time.Millisecond))

	var high atomic.Int32
	bus.Subscribe(model.EventWildcard, func(context.Context, model.Event) error {
		high.Add(1)
		return nil
	}, &Filter{Priority: model.PriorityHigh})

	// SAGA_FAILED is registered as high priority, CONTRACT_ACTIVATED as low.
	bus.Emit(context.Background(), model.Event{Type: model.EventSagaFailed})
	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated})
	bus.Drain()

	if high.Load() != 1 {
		t.Errorf("high-only subscriber invocations = %d, want 1", high.Load())
	}
}

// --- Enrichment ---

func TestEnhancedBus_EnrichesPriorityAndCategory(t *testing.T) {
	bus := NewEnhancedBus(nil)

	bus.Emit(context.Background(), model.Event{Type: model.EventSagaFailed, Source: "saga"})
	bus.Emit(context.Background(), model.Event{Type: "SOMETHING_UNREGISTERED"})
	bus.Drain()

	events := bus.History(nil, 10)
	if len(events) != 2 {
		t.Fatalf("history length = %d, want 2", len(events))
	}

	// Most recent first: the unregistered event defaults to low/general.
	if events[0].Priority != model.PriorityLow || events[0].Category != model.CategoryGeneral {
		t.Errorf("unregistered event enriched as %s/%s, want low/general", events[0].Priority, events[0].Category)
	}
	if events[1].Priority != model.PriorityHigh || events[1].Category != model.CategorySaga {
		t.Errorf("saga failure enriched as %s/%s, want high/saga", events[1].Priority, events[1].Category)
	}
	if events[1].ID == "" || events[1].Timestamp.IsZero() {
		t.Error("event ID or timestamp not filled in")
	}
}

// --- Retry and failure reporting ---

func TestEnhancedBus_RetriesThenEmitsFailureEvent(t *testing.T) {
	bus := NewEnhancedBus(nil, WithMaxRetries(2), WithBackoffBase(time.Millisecond))

	var attempts atomic.Int32
	bus.Subscribe(model.EventContractActivated, func(context.Context, model.Event) error {
		attempts.Add(1)
		return errors.New("downstream unavailable")
	}, nil)

	var failures atomic.Int32
	var reported atomic.Value
	bus.Subscribe(model.EventHandlerFailed, func(_ context.Context, evt model.Event) error {
		failures.Add(1)
		reported.Store(evt)
		return nil
	}, nil)

	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated})
	bus.Drain()

	// Initial attempt plus two retries.
	if attempts.Load() != 3 {
		t.Errorf("handler invocations = %d, want 3", attempts.Load())
	}
	if failures.Load() != 1 {
		t.Fatalf("failure events = %d, want 1", failures.Load())
	}

	evt := reported.Load().(model.Event)
	payload, ok := evt.Payload.(model.HandlerFailedPayload)
	if !ok {
		t.Fatalf("failure payload type = %T, want HandlerFailedPayload", evt.Payload)
	}
	if payload.FailedEventType != model.EventContractActivated {
		t.Errorf("failure payload event type = %q, want %q", payload.FailedEventType, model.EventContractActivated)
	}
	if payload.Attempts != 3 {
		t.Errorf("failure payload attempts = %d, want 3", payload.Attempts)
	}
}

func TestEnhancedBus_FailureEventIsNeverRetried(t *testing.T) {
	bus := NewEnhancedBus(nil, WithMaxRetries(3), WithBackoffBase(time.Millisecond))

	var failureAttempts atomic.Int32
	bus.Subscribe(model.EventHandlerFailed, func(context.Context, model.Event) error {
		failureAttempts.Add(1)
		return errors.New("failure handler is also broken")
	}, nil)

	bus.Subscribe(model.EventContractCancelled, func(context.Context, model.Event) error {
		return errors.New("boom")
	}, nil)

	bus.Emit(context.Background(), model.Event{Type: model.EventContractCancelled})
	bus.Drain()

	// Single attempt, and no second-order failure event.
	if failureAttempts.Load() != 1 {
		t.Errorf("failure handler invocations = %d, want 1", failureAttempts.Load())
	}
	if got := len(bus.History(&HistoryFilter{Type: model.EventHandlerFailed}, 10)); got != 1 {
		t.Errorf("failure events in history = %d, want 1", got)
	}
}

func TestEnhancedBus_SuccessfulRetryStopsEarly(t *testing.T) {
	bus := NewEnhancedBus(nil, WithMaxRetries(5), WithBackoffBase(time.Millisecond))

	var attempts atomic.Int32
	bus.Subscribe(model.EventSagaCompleted, func(context.Context, model.Event) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	bus.Emit(context.Background(), model.Event{Type: model.EventSagaCompleted})
	bus.Drain()

	if attempts.Load() != 2 {
		t.Errorf("handler invocations = %d, want 2", attempts.Load())
	}
	if got := len(bus.History(&HistoryFilter{Type: model.EventHandlerFailed}, 10)); got != 0 {
		t.Errorf("failure events in history = %d, want 0", got)
	}
}

func TestEnhancedBus_DeliveryOutlivesEmitterContext(t *testing.T) {
	bus := NewEnhancedBus(nil, WithMaxRetries(2), WithBackoffBase(5*time.Millisecond))

	// A context-respecting handler that needs the full retry budget.
	var attempts atomic.Int32
	bus.Subscribe(model.EventContractCompleted, func(ctx context.Context, _ model.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	bus.Emit(ctx, model.Event{Type: model.EventContractCompleted})
	cancel()
	bus.Drain()

	if attempts.Load() != 3 {
		t.Errorf("handler invocations = %d, want 3", attempts.Load())
	}
	if got := len(bus.History(&HistoryFilter{Type: model.EventHandlerFailed}, 10)); got != 0 {
		t.Errorf("failure events in history = %d, want 0", got)
	}
}

// --- History ---

func TestEnhancedBus_HistoryIsBounded(t *testing.T) {
	bus := NewEnhancedBus(nil, WithHistoryLimit(5))

	for i := 0; i < 8; i++ {
		bus.Emit(context.Background(), model.Event{
			Type:   model.EventContractActivated,
			Source: fmt.Sprintf("emitter-%d", i),
		})
	}
	bus.Drain()

	if got := bus.HistorySize(); got != 5 {
		t.Fatalf("history size = %d, want 5", got)
	}

	events := bus.History(nil, 10)
	if events[0].Source != "emitter-7" {
		t.Errorf("newest event source = %q, want emitter-7", events[0].Source)
	}
	if events[len(events)-1].Source != "emitter-3" {
		t.Errorf("oldest retained source = %q, want emitter-3", events[len(events)-1].Source)
	}
}

func TestEnhancedBus_HistoryFilterAndLimit(t *testing.T) {
	bus := NewEnhancedBus(nil)

	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated, Source: "contracts"})
	bus.Emit(context.Background(), model.Event{Type: model.EventInvoicePaymentProcessed, Source: "invoices"})
	bus.Emit(context.Background(), model.Event{Type: model.EventContractCompleted, Source: "contracts"})
	bus.Drain()

	byCategory := bus.History(&HistoryFilter{Category: model.CategoryContracts}, 10)
	if len(byCategory) != 2 {
		t.Fatalf("contract-category events = %d, want 2", len(byCategory))
	}
	if byCategory[0].Type != model.EventContractCompleted {
		t.Errorf("newest contract event = %q, want %q", byCategory[0].Type, model.EventContractCompleted)
	}

	limited := bus.History(nil, 1)
	if len(limited) != 1 || limited[0].Type != model.EventContractCompleted {
		t.Errorf("limit=1 returned %d events, newest %q", len(limited), limited[0].Type)
	}
}
