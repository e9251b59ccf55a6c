package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/observability"
	"github.com/motorent/rentord/model"
)

// Default tuning for the enhanced bus.
const (
	DefaultMaxRetries   = 3
	DefaultBackoffBase  = 1 * time.Second
	DefaultHistoryLimit = 1000
	defaultHistoryQuery = 100
)

// Filter restricts which events a subscription receives. All set fields must
// match.
type Filter struct {
	Type     string
	Source   string
	Priority model.Priority
	Category string
}

// matches reports whether an event passes the filter.
func (f *Filter) matches(evt model.Event) bool {
	if f == nil {
		return true
	}
	if f.Type != "" && f.Type != evt.Type {
		return false
	}
	if f.Source != "" && f.Source != evt.Source {
		return false
	}
	if f.Priority != "" && f.Priority != evt.Priority {
		return false
	}
	if f.Category != "" && f.Category != evt.Category {
		return false
	}
	return true
}

// Subscription is one registered handler on the enhanced bus.
type Subscription struct {
	ID        string
	EventType string
	Handler   Handler
	Filter    *Filter
	Active    bool
}

// HistoryFilter restricts which events History returns.
type HistoryFilter struct {
	Type     string
	Source   string
	Category string
}

// EnhancedBus is a publish/subscribe dispatcher with filtered subscriptions,
// priority/category enrichment from the event-type registry, per-handler
// retry with exponential backoff, and a bounded in-memory event history.
//
// Dispatch is asynchronous: Emit returns once the event is recorded and
// deliveries are scheduled. Drain blocks until in-flight deliveries finish;
// the composition root calls it during shutdown.
type EnhancedBus struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	metrics *observability.Metrics

	subs         map[string][]*Subscription // keyed by event type, plus wildcard
	byID         map[string]*Subscription
	history      []model.Event
	historyLimit int
	maxRetries   int
	backoffBase  time.Duration

	wg sync.WaitGroup
}

// EnhancedOption configures an EnhancedBus.
type EnhancedOption func(*EnhancedBus)

// WithMaxRetries sets the default retry budget per handler delivery.
func WithMaxRetries(n int) EnhancedOption {
	return func(b *EnhancedBus) {
		if n >= 0 {
			b.maxRetries = n
		}
	}
}

// WithBackoffBase sets the base delay for exponential backoff between retry
// attempts. Attempt n waits base * 2^n.
func WithBackoffBase(d time.Duration) EnhancedOption {
	return func(b *EnhancedBus) {
		if d > 0 {
			b.backoffBase = d
		}
	}
}

// WithHistoryLimit bounds the in-memory event history.
func WithHistoryLimit(n int) EnhancedOption {
	return func(b *EnhancedBus) {
		if n > 0 {
			b.historyLimit = n
		}
	}
}

// WithMetrics attaches Prometheus instruments to the bus.
func WithMetrics(m *observability.Metrics) EnhancedOption {
	return func(b *EnhancedBus) { b.metrics = m }
}

// NewEnhancedBus creates an enhanced event bus.
func NewEnhancedBus(logger *zap.Logger, opts ...EnhancedOption) *EnhancedBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &EnhancedBus{
		logger:       logger,
		subs:         make(map[string][]*Subscription),
		byID:         make(map[string]*Subscription),
		historyLimit: DefaultHistoryLimit,
		maxRetries:   DefaultMaxRetries,
		backoffBase:  DefaultBackoffBase,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an event type with an optional filter
// and returns the subscription ID. Subscribing to model.EventWildcard
// receives every event.
func (b *EnhancedBus) Subscribe(eventType string, h Handler, filter *Filter) string {
	sub := &Subscription{
		ID:        uuid.New().String(),
		EventType: eventType,
		Handler:   h,
		Filter:    filter,
		Active:    true,
	}

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.byID[sub.ID] = sub
	count := len(b.byID)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetActiveSubscriptions(count)
	}
	b.logger.Debug("subscription added",
		zap.String("event_type", eventType),
		zap.String("subscription_id", sub.ID),
	)
	return sub.ID
}

// Unsubscribe removes a subscription by ID. No-op if unknown.
func (b *EnhancedBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.byID[id]
	if !ok {
		return
	}
	sub.Active = false
	delete(b.byID, id)

	regs := b.subs[sub.EventType]
	for i, s := range regs {
		if s.ID == id {
			b.subs[sub.EventType] = append(regs[:i], regs[i+1:]...)
			break
		}
	}

	if b.metrics != nil {
		b.metrics.SetActiveSubscriptions(len(b.byID))
	}
}

// Emit enriches the event, records it in the bounded history, and schedules
// delivery to every matching subscription. Handler failures never propagate
// to the emitter; after the retry budget is exhausted a single
// EVENT_HANDLER_FAILED event is emitted instead.
func (b *EnhancedBus) Emit(ctx context.Context, evt model.Event) {
	// 1. Enrich from the type registry.
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	info := model.TypeInfo(evt.Type)
	if evt.Priority == "" {
		evt.Priority = info.Priority
	}
	if evt.Category == "" {
		evt.Category = info.Category
	}
	if evt.MaxRetries == 0 {
		evt.MaxRetries = b.maxRetries
	}

	// 2. Append to bounded history, dropping the oldest beyond the limit.
	b.mu.Lock()
	b.history = append(b.history, evt)
	if len(b.history) > b.historyLimit {
		b.history = b.history[len(b.history)-b.historyLimit:]
	}
	historyLen := len(b.history)

	// 3. Resolve matching subscriptions: direct type plus wildcard.
	matched := make([]*Subscription, 0, 4)
	for _, sub := range b.subs[evt.Type] {
		if sub.Active && sub.Filter.matches(evt) {
			matched = append(matched, sub)
		}
	}
	if evt.Type != model.EventWildcard {
		for _, sub := range b.subs[model.EventWildcard] {
			if sub.Active && sub.Filter.matches(evt) {
				matched = append(matched, sub)
			}
		}
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordEventEmitted(evt.Type)
		b.metrics.SetEventHistorySize(historyLen)
	}
	b.logger.Info("event emitted",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.String("source", evt.Source),
		zap.String("priority", string(evt.Priority)),
		zap.String("category", evt.Category),
		zap.Int("subscription_count", len(matched)),
	)

	// 4. Deliver asynchronously; handlers for one event run concurrently.
	// Delivery outlives the emitter's request: a cancelled or expired caller
	// context must not cut retries short or fail ctx-aware handlers.
	dctx := context.WithoutCancel(ctx)
	for _, sub := range matched {
		b.wg.Add(1)
		go func(sub *Subscription) {
			defer b.wg.Done()
			b.deliver(dctx, sub, evt)
		}(sub)
	}
}

// Drain blocks until all in-flight deliveries have finished.
func (b *EnhancedBus) Drain() {
	b.wg.Wait()
}

// deliver invokes a handler with retry. Failure events get a single attempt
// so a failing failure-handler cannot recurse.
func (b *EnhancedBus) deliver(ctx context.Context, sub *Subscription, evt model.Event) {
	retries := evt.MaxRetries
	if evt.Type == model.EventHandlerFailed {
		retries = 0
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if b.metrics != nil {
				b.metrics.RecordHandlerRetry(evt.Type)
			}
			b.logger.Warn("retrying event handler",
				zap.String("event_id", evt.ID),
				zap.String("event_type", evt.Type),
				zap.String("subscription_id", sub.ID),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			// Exponential backoff: base * 2^(attempt-1) before retry n.
			delay := b.backoffBase << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				b.reportFailure(ctx, sub, evt, lastErr, attempts)
				return
			}
		}

		attempts++
		lastErr = b.invoke(ctx, sub, evt)
		if lastErr == nil {
			return
		}
	}

	b.reportFailure(ctx, sub, evt, lastErr, attempts)
}

// invoke runs a subscription handler, converting a panic into an error.
func (b *EnhancedBus) invoke(ctx context.Context, sub *Subscription, evt model.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return sub.Handler(ctx, evt)
}

// reportFailure logs an exhausted delivery and emits the synthetic failure
// event. The failure event skips the failing handler's own subscription type
// by construction: it has its own type and is delivered with one attempt.
func (b *EnhancedBus) reportFailure(ctx context.Context, sub *Subscription, evt model.Event, cause error, attempts int) {
	if b.metrics != nil {
		b.metrics.RecordHandlerFailure(evt.Type)
	}
	b.logger.Error("event handler exhausted retries",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.String("subscription_id", sub.ID),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)

	if evt.Type == model.EventHandlerFailed {
		// Never emit a failure event for a failure event.
		return
	}

	b.Emit(ctx, model.Event{
		Type:   model.EventHandlerFailed,
		Source: "eventbus",
		Payload: model.HandlerFailedPayload{
			SubscriptionID:  sub.ID,
			EventID:         evt.ID,
			FailedEventType: evt.Type,
			Error:           cause.Error(),
			Attempts:        attempts,
		},
	})
}

// History returns recorded events, most recent first, optionally filtered.
// A non-positive limit defaults to 100.
func (b *EnhancedBus) History(filter *HistoryFilter, limit int) []model.Event {
	if limit <= 0 {
		limit = defaultHistoryQuery
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Event, 0, limit)
	for i := len(b.history) - 1; i >= 0 && len(out) < limit; i-- {
		evt := b.history[i]
		if filter != nil {
			if filter.Type != "" && filter.Type != evt.Type {
				continue
			}
			if filter.Source != "" && filter.Source != evt.Source {
				continue
			}
			if filter.Category != "" && filter.Category != evt.Category {
				continue
			}
		}
		out = append(out, evt)
	}
	return out
}

// HistorySize returns the current number of recorded events.
func (b *EnhancedBus) HistorySize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.history)
}
