package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/motorent/rentord/internal/eventbus"
	"github.com/motorent/rentord/model"
)

func TestNotificationHandler_MapsEventsToRecords(t *testing.T) {
	ctx := context.Background()
	handler := NewNotificationHandler(nil, nil, 0)
	handlers := handler.Handlers()

	if err := handlers[model.EventContractActivated](ctx, model.Event{
		ID:      "evt-1",
		Type:    model.EventContractActivated,
		Payload: model.ContractActivatedPayload{ContractID: "c1", VehicleID: "v1"},
	}); err != nil {
		t.Fatalf("activated handler: %v", err)
	}
	if err := handlers[model.EventSagaFailed](ctx, model.Event{
		ID:   "evt-2",
		Type: model.EventSagaFailed,
		Payload: model.SagaFailedPayload{
			SagaName: "contract_activation",
			StepName: "update_vehicle_status",
			Error:    "vehicle gone",
		},
	}); err != nil {
		t.Fatalf("saga failed handler: %v", err)
	}

	all := handler.Pending(model.AudienceManagers)
	if len(all) != 2 {
		t.Fatalf("pending for managers = %d, want 2", len(all))
	}

	info := all[0]
	if info.Kind != model.NotificationKindInfo || info.Priority != model.PriorityLow {
		t.Errorf("info record = %+v", info)
	}
	if info.EventID != "evt-1" {
		t.Errorf("EventID = %q, want evt-1", info.EventID)
	}

	alert := all[1]
	if alert.Kind != model.NotificationKindAlert || alert.Priority != model.PriorityHigh {
		t.Errorf("alert record = %+v", alert)
	}
	if !strings.Contains(alert.Message, "vehicle gone") {
		t.Errorf("alert message = %q, want root cause included", alert.Message)
	}
}

func TestNotificationHandler_AudienceRestriction(t *testing.T) {
	ctx := context.Background()
	handler := NewNotificationHandler(nil, nil, 0)
	handlers := handler.Handlers()

	// Unrestricted info plus a managers-only alert and an admins-only alert.
	if err := handlers[model.EventContractCompleted](ctx, model.Event{
		Type:    model.EventContractCompleted,
		Payload: model.ContractCompletedPayload{ContractID: "c1", InvoiceID: "inv-1"},
	}); err != nil {
		t.Fatalf("completed handler: %v", err)
	}
	if err := handlers[model.EventContractCancelled](ctx, model.Event{
		Type:    model.EventContractCancelled,
		Payload: model.ContractCancelledPayload{ContractID: "c1", Reason: "no show"},
	}); err != nil {
		t.Fatalf("cancelled handler: %v", err)
	}
	if err := handlers[model.EventHandlerFailed](ctx, model.Event{
		Type:    model.EventHandlerFailed,
		Payload: model.HandlerFailedPayload{FailedEventType: model.EventContractActivated, Attempts: 3, Error: "boom"},
	}); err != nil {
		t.Fatalf("handler failed handler: %v", err)
	}

	if got := len(handler.Pending("")); got != 1 {
		t.Errorf("unrestricted view = %d records, want 1", got)
	}
	if got := len(handler.Pending(model.AudienceManagers)); got != 2 {
		t.Errorf("managers view = %d records, want 2", got)
	}
	admins := handler.Pending(model.AudienceAdmins)
	if len(admins) != 2 {
		t.Fatalf("admins view = %d records, want 2", len(admins))
	}
	// The handler-failure alert is urgent and admins-only.
	var urgent *model.Notification
	for i := range admins {
		if admins[i].Priority == model.PriorityUrgent {
			urgent = &admins[i]
		}
	}
	if urgent == nil || urgent.Audience != model.AudienceAdmins {
		t.Errorf("urgent admin alert missing, got %+v", admins)
	}
}

func TestNotificationHandler_QueueIsBoundedAndDrainable(t *testing.T) {
	ctx := context.Background()
	handler := NewNotificationHandler(nil, nil, 3)
	activated := handler.Handlers()[model.EventContractActivated]

	for i := 0; i < 5; i++ {
		if err := activated(ctx, model.Event{
			Type:    model.EventContractActivated,
			Payload: model.ContractActivatedPayload{ContractID: "c1"},
		}); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}

	drained := handler.Drain()
	if len(drained) != 3 {
		t.Errorf("drained = %d records, want bounded to 3", len(drained))
	}
	if got := len(handler.Pending("")); got != 0 {
		t.Errorf("pending after drain = %d, want 0", got)
	}
}

func TestRegister_SubscribesAllMappings(t *testing.T) {
	bus := eventbus.NewEnhancedBus(nil)
	notifications := NewNotificationHandler(nil, nil, 0)
	analytics := NewAnalyticsHandler(nil, 0)

	ids := Register(bus, notifications.Handlers(), analytics.Handlers())

	want := len(notifications.Handlers()) + len(analytics.Handlers())
	if len(ids) != want {
		t.Fatalf("subscriptions = %d, want %d", len(ids), want)
	}

	// Events flow through to the handlers once registered.
	bus.Emit(context.Background(), model.Event{
		Type:    model.EventContractActivated,
		Payload: model.ContractActivatedPayload{ContractID: "c1", VehicleID: "v1"},
	})
	bus.Drain()

	if got := len(notifications.Pending("")); got != 1 {
		t.Errorf("pending notifications = %d, want 1", got)
	}
	period := time.Now().UTC().Format("2006-01")
	if got := analytics.KPIValue(KPIActiveContracts, period); got != 1 {
		t.Errorf("active contracts = %.0f, want 1", got)
	}
}
