// Package eventbus provides in-process publish/subscribe dispatch for domain
// events. Two implementations exist: Bus, a plain dispatcher, and
// EnhancedBus, which adds filtered subscriptions, priority enrichment,
// retry with backoff, and a bounded event history.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorent/rentord/model"
)

// Handler processes a single event. Returning an error marks the delivery as
// failed; the bus never propagates handler errors to the emitter.
type Handler func(ctx context.Context, evt model.Event) error

// Publisher is the emit-only surface of a bus, for components that publish
// but never subscribe.
type Publisher interface {
	Emit(ctx context.Context, evt model.Event)
}

// registration pairs a handler with a removal token. Go funcs are not
// comparable, so removal is by token rather than by reference.
type registration struct {
	id string
	fn Handler
}

// Bus is a plain publish/subscribe dispatcher. Handlers for one event run
// concurrently; each handler's failure is isolated and logged. Emit blocks
// until every handler has returned.
type Bus struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	handlers map[string][]registration
}

// NewBus creates a simple event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[string][]registration),
	}
}

// On registers a handler for an event type and returns a removal token.
// Duplicate registrations of the same handler are independent entries.
// Registering for model.EventWildcard receives every event.
func (b *Bus) On(eventType string, h Handler) string {
	id := uuid.New().String()

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, fn: h})
	b.mu.Unlock()

	b.logger.Debug("handler registered",
		zap.String("event_type", eventType),
		zap.String("registration_id", id),
	)
	return id
}

// Off removes a registration by its token. No-op if the token is unknown.
func (b *Bus) Off(eventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[eventType]
	for i, reg := range regs {
		if reg.id == id {
			b.handlers[eventType] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// Emit dispatches an event to all handlers registered for its type plus all
// wildcard handlers. Handlers run concurrently; Emit returns when every
// handler has finished. A handler failure or panic never affects another
// handler or the emitter.
func (b *Bus) Emit(ctx context.Context, evt model.Event) {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	regs := make([]registration, 0, len(b.handlers[evt.Type])+len(b.handlers[model.EventWildcard]))
	regs = append(regs, b.handlers[evt.Type]...)
	if evt.Type != model.EventWildcard {
		regs = append(regs, b.handlers[model.EventWildcard]...)
	}
	b.mu.RUnlock()

	b.logger.Info("event emitted",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.String("source", evt.Source),
		zap.Int("handler_count", len(regs)),
	)

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg registration) {
			defer wg.Done()
			if err := b.invoke(ctx, reg, evt); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_id", evt.ID),
					zap.String("event_type", evt.Type),
					zap.String("registration_id", reg.id),
					zap.Error(err),
				)
			}
		}(reg)
	}
	wg.Wait()
}

// invoke runs a handler, converting a panic into an error.
func (b *Bus) invoke(ctx context.Context, reg registration, evt model.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return reg.fn(ctx, evt)
}
