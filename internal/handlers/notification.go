package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/eventbus"
	"github.com/motorent/rentord/internal/observability"
	"github.com/motorent/rentord/model"
)

// DefaultQueueLimit bounds the pending notification queue.
const DefaultQueueLimit = 5000

// NotificationHandler maps domain events to human-readable notification
// records and queues them for a downstream delivery mechanism. Delivery
// itself is outside this service; the queue is drained by whatever consumes
// Pending.
type NotificationHandler struct {
	logger     *zap.Logger
	metrics    *observability.Metrics
	queueLimit int

	mu      sync.Mutex
	pending []model.Notification
}

// NewNotificationHandler creates a notification handler. queueLimit <= 0
// falls back to the default.
func NewNotificationHandler(logger *zap.Logger, metrics *observability.Metrics, queueLimit int) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueLimit <= 0 {
		queueLimit = DefaultQueueLimit
	}
	return &NotificationHandler{logger: logger, metrics: metrics, queueLimit: queueLimit}
}

// Handlers returns the event-type to handler mapping for bus registration.
func (h *NotificationHandler) Handlers() map[string]eventbus.Handler {
	return map[string]eventbus.Handler{
		model.EventContractActivated:       h.onContractActivated,
		model.EventContractCompleted:       h.onContractCompleted,
		model.EventContractCancelled:       h.onContractCancelled,
		model.EventAdditionalChargesNeeded: h.onChargesNeeded,
		model.EventSagaFailed:              h.onSagaFailed,
		model.EventHandlerFailed:           h.onHandlerFailed,
	}
}

func (h *NotificationHandler) onContractActivated(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.ContractActivatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.enqueue(evt, model.Notification{
		Kind:     model.NotificationKindInfo,
		Title:    "Contract activated",
		Message:  fmt.Sprintf("Contract %s is now active on vehicle %s.", payload.ContractID, payload.VehicleID),
		Priority: model.PriorityLow,
	})
	return nil
}

func (h *NotificationHandler) onContractCompleted(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.ContractCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.enqueue(evt, model.Notification{
		Kind:     model.NotificationKindInfo,
		Title:    "Contract completed",
		Message:  fmt.Sprintf("Contract %s completed, final invoice %s issued.", payload.ContractID, payload.InvoiceID),
		Priority: model.PriorityLow,
	})
	return nil
}

func (h *NotificationHandler) onContractCancelled(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.ContractCancelledPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.enqueue(evt, model.Notification{
		Kind:     model.NotificationKindAlert,
		Title:    "Contract cancelled",
		Message:  fmt.Sprintf("Contract %s was cancelled: %s", payload.ContractID, payload.Reason),
		Priority: model.PriorityMedium,
		Audience: model.AudienceManagers,
	})
	return nil
}

func (h *NotificationHandler) onChargesNeeded(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.AdditionalChargesNeededPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.enqueue(evt, model.Notification{
		Kind:     model.NotificationKindReminder,
		Title:    "Additional charges pending",
		Message:  fmt.Sprintf("%d additional charge(s) on contract %s need invoicing.", len(payload.Charges), payload.ContractID),
		Priority: model.PriorityMedium,
		Audience: model.AudienceManagers,
	})
	return nil
}

func (h *NotificationHandler) onSagaFailed(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.SagaFailedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.enqueue(evt, model.Notification{
		Kind:     model.NotificationKindAlert,
		Title:    "Transaction rolled back",
		Message:  fmt.Sprintf("%s failed at step %q: %s", payload.SagaName, payload.StepName, payload.Error),
		Priority: model.PriorityHigh,
		Audience: model.AudienceManagers,
	})
	return nil
}

func (h *NotificationHandler) onHandlerFailed(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.HandlerFailedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.enqueue(evt, model.Notification{
		Kind:     model.NotificationKindAlert,
		Title:    "Event handler failing",
		Message:  fmt.Sprintf("Handler for %s failed %d time(s): %s", payload.FailedEventType, payload.Attempts, payload.Error),
		Priority: model.PriorityUrgent,
		Audience: model.AudienceAdmins,
	})
	return nil
}

// enqueue stamps and queues a notification, dropping the oldest beyond the
// queue limit.
func (h *NotificationHandler) enqueue(evt model.Event, n model.Notification) {
	n.ID = uuid.New().String()
	n.EventID = evt.ID
	n.EventType = evt.Type
	n.CreatedAt = time.Now().UTC()

	h.mu.Lock()
	h.pending = append(h.pending, n)
	if len(h.pending) > h.queueLimit {
		h.pending = h.pending[len(h.pending)-h.queueLimit:]
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordNotificationQueued(string(n.Priority))
	}
	h.logger.Debug("notification queued",
		zap.String("kind", n.Kind),
		zap.String("title", n.Title),
		zap.String("priority", string(n.Priority)),
		zap.String("audience", n.Audience),
	)
}

// Pending returns a copy of the queued notifications, optionally restricted
// to an audience. Audience-restricted records are excluded from the
// unrestricted view.
func (h *NotificationHandler) Pending(audience string) []model.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]model.Notification, 0, len(h.pending))
	for _, n := range h.pending {
		if n.Audience != "" && n.Audience != audience {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Drain removes and returns every queued notification.
func (h *NotificationHandler) Drain() []model.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.pending
	h.pending = nil
	return out
}
