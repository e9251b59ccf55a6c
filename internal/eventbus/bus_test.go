package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/motorent/rentord/model"
)

func TestBus_EmitDispatchesToTypeAndWildcard(t *testing.T) {
	bus := NewBus(nil)

	var typed, wild atomic.Int32
	bus.On(model.EventContractActivated, func(context.Context, model.Event) error {
		typed.Add(1)
		return nil
	})
	bus.On(model.EventWildcard, func(context.Context, model.Event) error {
		wild.Add(1)
		return nil
	})

	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated, Source: "test"})
	bus.Emit(context.Background(), model.Event{Type: model.EventContractCancelled, Source: "test"})

	if typed.Load() != 1 {
		t.Errorf("typed handler invocations = %d, want 1", typed.Load())
	}
	if wild.Load() != 2 {
		t.Errorf("wildcard handler invocations = %d, want 2", wild.Load())
	}
}

// One handler failing must not affect the other handler or the emitter.
func TestBus_HandlerFailureIsIsolated(t *testing.T) {
	bus := NewBus(nil)

	var succeeded atomic.Bool
	bus.On(model.EventContractActivated, func(context.Context, model.Event) error {
		return errors.New("boom")
	})
	bus.On(model.EventContractActivated, func(context.Context, model.Event) error {
		succeeded.Store(true)
		return nil
	})

	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated})

	if !succeeded.Load() {
		t.Error("healthy handler did not run after sibling failure")
	}
}

func TestBus_HandlerPanicIsIsolated(t *testing.T) {
	bus := NewBus(nil)

	var succeeded atomic.Bool
	bus.On(model.EventContractActivated, func(context.Context, model.Event) error {
		panic("handler exploded")
	})
	bus.On(model.EventContractActivated, func(context.Context, model.Event) error {
		succeeded.Store(true)
		return nil
	})

	// Emit must not propagate the panic.
	bus.Emit(context.Background(), model.Event{Type: model.EventContractActivated})

	if !succeeded.Load() {
		t.Error("healthy handler did not run after sibling panic")
	}
}

func TestBus_DuplicateRegistrationsAreIndependent(t *testing.T) {
	bus := NewBus(nil)

	var calls atomic.Int32
	handler := func(context.Context, model.Event) error {
		calls.Add(1)
		return nil
	}
	id1 := bus.On(model.EventSagaCompleted, handler)
	bus.On(model.EventSagaCompleted, handler)

	bus.Emit(context.Background(), model.Event{Type: model.EventSagaCompleted})
	if calls.Load() != 2 {
		t.Fatalf("invocations = %d, want 2", calls.Load())
	}

	// Removing one token leaves the other registration intact.
	bus.Off(model.EventSagaCompleted, id1)
	bus.Emit(context.Background(), model.Event{Type: model.EventSagaCompleted})
	if calls.Load() != 3 {
		t.Errorf("invocations = %d, want 3", calls.Load())
	}
}

func TestBus_OffUnknownTokenIsNoop(t *testing.T) {
	bus := NewBus(nil)
	bus.On(model.EventSagaFailed, func(context.Context, model.Event) error { return nil })
	bus.Off(model.EventSagaFailed, "no-such-token")
	bus.Off("NO_SUCH_TYPE", "no-such-token")
}

func TestBus_EmitFillsIDAndTimestamp(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	var seen model.Event
	bus.On(model.EventSagaCompleted, func(_ context.Context, evt model.Event) error {
		mu.Lock()
		seen = evt
		mu.Unlock()
		return nil
	})

	bus.Emit(context.Background(), model.Event{Type: model.EventSagaCompleted})

	mu.Lock()
	defer mu.Unlock()
	if seen.ID == "" {
		t.Error("event ID not generated")
	}
	if seen.Timestamp.IsZero() {
		t.Error("event timestamp not set")
	}
}
