package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/eventbus"
	"github.com/motorent/rentord/model"
)

// DefaultMaxSamples bounds the rolling sample window.
const DefaultMaxSamples = 10000

// KPI names.
const (
	KPIActiveContracts    = "active_contracts"
	KPICompletedContracts = "completed_contracts"
	KPICancelledContracts = "cancelled_contracts"
	KPIRevenueCollected   = "revenue_collected"
	KPIChargesBilled      = "charges_billed"
)

// KPI is an incrementally maintained metric keyed by name and period.
type KPI struct {
	Name      string    `json:"name"`
	Period    string    `json:"period"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sample is one observed event, kept in a bounded rolling window.
type Sample struct {
	EventType string    `json:"event_type"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalyticsHandler maintains a process-local, non-durable analytics cache:
// a bounded window of recent samples plus derived KPIs. It is not a
// time-series store; restart loses everything.
type AnalyticsHandler struct {
	logger     *zap.Logger
	maxSamples int

	mu      sync.RWMutex
	samples []Sample
	kpis    map[string]*KPI // key: name|period
	now     func() time.Time
}

// NewAnalyticsHandler creates an analytics handler. maxSamples <= 0 falls
// back to the default window size.
func NewAnalyticsHandler(logger *zap.Logger, maxSamples int) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &AnalyticsHandler{
		logger:     logger,
		maxSamples: maxSamples,
		kpis:       make(map[string]*KPI),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handlers returns the event-type to handler mapping for bus registration.
func (h *AnalyticsHandler) Handlers() map[string]eventbus.Handler {
	return map[string]eventbus.Handler{
		model.EventContractActivated:         h.onContractActivated,
		model.EventContractCompleted:         h.onContractCompleted,
		model.EventContractCancelled:         h.onContractCancelled,
		model.EventInvoicePaymentProcessed:   h.onPaymentProcessed,
		model.EventInvoiceWithChargesCreated: h.onChargesInvoiced,
	}
}

func (h *AnalyticsHandler) onContractActivated(_ context.Context, evt model.Event) error {
	h.record(evt.Type, 1)
	h.bump(KPIActiveContracts, 1)
	return nil
}

func (h *AnalyticsHandler) onContractCompleted(_ context.Context, evt model.Event) error {
	h.record(evt.Type, 1)
	h.bump(KPIActiveContracts, -1)
	h.bump(KPICompletedContracts, 1)
	return nil
}

func (h *AnalyticsHandler) onContractCancelled(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.ContractCancelledPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.record(evt.Type, 1)
	// Only a running rental was counted as active.
	if payload.WasActive {
		h.bump(KPIActiveContracts, -1)
	}
	h.bump(KPICancelledContracts, 1)
	return nil
}

func (h *AnalyticsHandler) onPaymentProcessed(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.InvoicePaymentProcessedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.record(evt.Type, payload.Amount)
	h.bump(KPIRevenueCollected, payload.Amount)
	return nil
}

func (h *AnalyticsHandler) onChargesInvoiced(_ context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.InvoiceWithChargesCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	h.record(evt.Type, payload.Total)
	h.bump(KPIChargesBilled, payload.Total)
	return nil
}

// record appends a sample, dropping the oldest beyond the window.
func (h *AnalyticsHandler) record(eventType string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, Sample{
		EventType: eventType,
		Value:     value,
		Timestamp: h.now(),
	})
	if len(h.samples) > h.maxSamples {
		h.samples = h.samples[len(h.samples)-h.maxSamples:]
	}
}

// bump applies an incremental delta to the current-period KPI.
func (h *AnalyticsHandler) bump(name string, delta float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	period := now.Format("2006-01")
	key := name + "|" + period
	kpi, exists := h.kpis[key]
	if !exists {
		kpi = &KPI{Name: name, Period: period}
		h.kpis[key] = kpi
	}
	kpi.Value += delta
	kpi.UpdatedAt = now
}

// KPIs returns a snapshot of all current KPIs.
func (h *AnalyticsHandler) KPIs() []KPI {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]KPI, 0, len(h.kpis))
	for _, kpi := range h.kpis {
		out = append(out, *kpi)
	}
	return out
}

// KPIValue returns the current value of a KPI for a period. Missing KPIs
// read as zero.
func (h *AnalyticsHandler) KPIValue(name, period string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if kpi, exists := h.kpis[name+"|"+period]; exists {
		return kpi.Value
	}
	return 0
}

// SampleCount returns the number of samples in the rolling window.
func (h *AnalyticsHandler) SampleCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}
