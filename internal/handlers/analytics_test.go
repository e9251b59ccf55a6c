package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/motorent/rentord/model"
)

func TestAnalyticsHandler_ContractKPIs(t *testing.T) {
	ctx := context.Background()
	handler := NewAnalyticsHandler(nil, 0)
	handler.now = func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	}
	handlers := handler.Handlers()

	activate := model.Event{Type: model.EventContractActivated, Payload: model.ContractActivatedPayload{ContractID: "c1"}}
	if err := handlers[model.EventContractActivated](ctx, activate); err != nil {
		t.Fatalf("activated handler: %v", err)
	}
	if err := handlers[model.EventContractActivated](ctx, activate); err != nil {
		t.Fatalf("activated handler: %v", err)
	}
	if err := handlers[model.EventContractCompleted](ctx, model.Event{
		Type:    model.EventContractCompleted,
		Payload: model.ContractCompletedPayload{ContractID: "c1"},
	}); err != nil {
		t.Fatalf("completed handler: %v", err)
	}

	if got := handler.KPIValue(KPIActiveContracts, "2026-09"); got != 1 {
		t.Errorf("active contracts = %.0f, want 1", got)
	}
	if got := handler.KPIValue(KPICompletedContracts, "2026-09"); got != 1 {
		t.Errorf("completed contracts = %.0f, want 1", got)
	}
	if got := handler.KPIValue(KPIActiveContracts, "2026-08"); got != 0 {
		t.Errorf("prior period reads %.0f, want 0", got)
	}
}

func TestAnalyticsHandler_CancelOnlyReleasesActiveContracts(t *testing.T) {
	ctx := context.Background()
	handler := NewAnalyticsHandler(nil, 0)
	handler.now = func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	}
	handlers := handler.Handlers()

	if err := handlers[model.EventContractActivated](ctx, model.Event{
		Type:    model.EventContractActivated,
		Payload: model.ContractActivatedPayload{ContractID: "c1"},
	}); err != nil {
		t.Fatalf("activated handler: %v", err)
	}

	// A pending contract cancelled before pickup never counted as active.
	if err := handlers[model.EventContractCancelled](ctx, model.Event{
		Type:    model.EventContractCancelled,
		Payload: model.ContractCancelledPayload{ContractID: "c2", Reason: "no show", WasActive: false},
	}); err != nil {
		t.Fatalf("cancelled handler: %v", err)
	}
	if got := handler.KPIValue(KPIActiveContracts, "2026-09"); got != 1 {
		t.Errorf("active contracts = %.0f, want 1 after pending cancellation", got)
	}

	if err := handlers[model.EventContractCancelled](ctx, model.Event{
		Type:    model.EventContractCancelled,
		Payload: model.ContractCancelledPayload{ContractID: "c1", Reason: "breakdown", WasActive: true},
	}); err != nil {
		t.Fatalf("cancelled handler: %v", err)
	}
	if got := handler.KPIValue(KPIActiveContracts, "2026-09"); got != 0 {
		t.Errorf("active contracts = %.0f, want 0 after active cancellation", got)
	}
	if got := handler.KPIValue(KPICancelledContracts, "2026-09"); got != 2 {
		t.Errorf("cancelled contracts = %.0f, want 2", got)
	}
}

func TestAnalyticsHandler_RevenueAccumulates(t *testing.T) {
	ctx := context.Background()
	handler := NewAnalyticsHandler(nil, 0)
	handler.now = func() time.Time {
		return time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	}

	pay := handler.Handlers()[model.EventInvoicePaymentProcessed]
	for _, amount := range []float64{40, 60, 25} {
		err := pay(ctx, model.Event{
			Type:    model.EventInvoicePaymentProcessed,
			Payload: model.InvoicePaymentProcessedPayload{Amount: amount},
		})
		if err != nil {
			t.Fatalf("payment handler: %v", err)
		}
	}

	if got := handler.KPIValue(KPIRevenueCollected, "2026-09"); got != 125 {
		t.Errorf("revenue = %.2f, want 125", got)
	}
	if handler.SampleCount() != 3 {
		t.Errorf("samples = %d, want 3", handler.SampleCount())
	}
}

func TestAnalyticsHandler_SampleWindowIsBounded(t *testing.T) {
	ctx := context.Background()
	handler := NewAnalyticsHandler(nil, 10)

	activate := handler.Handlers()[model.EventContractActivated]
	for i := 0; i < 25; i++ {
		if err := activate(ctx, model.Event{Type: model.EventContractActivated, Payload: model.ContractActivatedPayload{}}); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}

	if handler.SampleCount() != 10 {
		t.Errorf("samples = %d, want bounded to 10", handler.SampleCount())
	}
	// The KPI is unaffected by the window bound.
	period := time.Now().UTC().Format("2006-01")
	if got := handler.KPIValue(KPIActiveContracts, period); got != 25 {
		t.Errorf("active contracts = %.0f, want 25", got)
	}
}

func TestAnalyticsHandler_KPISnapshot(t *testing.T) {
	ctx := context.Background()
	handler := NewAnalyticsHandler(nil, 0)

	if err := handler.Handlers()[model.EventInvoiceWithChargesCreated](ctx, model.Event{
		Type:    model.EventInvoiceWithChargesCreated,
		Payload: model.InvoiceWithChargesCreatedPayload{Total: 145},
	}); err != nil {
		t.Fatalf("handler: %v", err)
	}

	kpis := handler.KPIs()
	if len(kpis) != 1 {
		t.Fatalf("kpis = %d, want 1", len(kpis))
	}
	if kpis[0].Name != KPIChargesBilled || kpis[0].Value != 145 {
		t.Errorf("kpi = %+v", kpis[0])
	}
	if kpis[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}
