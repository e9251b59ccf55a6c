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

// Chart-of-accounts codes for rental bookkeeping.
const (
	accountReceivables   = "1200-receivables"
	accountCash          = "1000-cash"
	accountRentalRevenue = "4000-rental-revenue"
	accountChargeRevenue = "4100-charge-revenue"
)

// LedgerSink receives double-entry records. The hosted accounting backend
// implements it; tests substitute a fake.
type LedgerSink interface {
	CreateEntry(ctx context.Context, entry model.LedgerEntry) error
}

// AccountingHandler projects billing events into ledger entries and an audit
// trail. It runs outside the saga boundary: a failure here is retried by the
// bus and then reported, never compensated.
type AccountingHandler struct {
	sink    LedgerSink
	bus     eventbus.Publisher
	logger  *zap.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	audit []model.AuditRecord
}

// NewAccountingHandler creates an accounting handler.
func NewAccountingHandler(sink LedgerSink, bus eventbus.Publisher, logger *zap.Logger, metrics *observability.Metrics) *AccountingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountingHandler{sink: sink, bus: bus, logger: logger, metrics: metrics}
}

// Handlers returns the event-type to handler mapping for bus registration.
func (h *AccountingHandler) Handlers() map[string]eventbus.Handler {
	return map[string]eventbus.Handler{
		model.EventInvoicePaymentProcessed:   h.onPaymentProcessed,
		model.EventContractCompleted:         h.onContractCompleted,
		model.EventInvoiceWithChargesCreated: h.onChargesInvoiced,
	}
}

func (h *AccountingHandler) onPaymentProcessed(ctx context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.InvoicePaymentProcessedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}

	entry := model.LedgerEntry{
		ID:            uuid.New().String(),
		EntityType:    "payment",
		EntityID:      payload.PaymentID,
		Amount:        payload.Amount,
		DebitAccount:  accountCash,
		CreditAccount: accountReceivables,
		Description:   fmt.Sprintf("payment against invoice %s", payload.InvoiceID),
		CreatedAt:     time.Now().UTC(),
	}
	return h.book(ctx, evt, entry, "payment_recorded", "", payload.Status)
}

func (h *AccountingHandler) onContractCompleted(ctx context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.ContractCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}

	entry := model.LedgerEntry{
		ID:            uuid.New().String(),
		EntityType:    "invoice",
		EntityID:      payload.InvoiceID,
		DebitAccount:  accountReceivables,
		CreditAccount: accountRentalRevenue,
		Description:   fmt.Sprintf("final invoice for contract %s", payload.ContractID),
		CreatedAt:     time.Now().UTC(),
	}
	return h.book(ctx, evt, entry, "invoice_issued", model.ContractStatusActive, model.ContractStatusCompleted)
}

func (h *AccountingHandler) onChargesInvoiced(ctx context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(model.InvoiceWithChargesCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}

	entry := model.LedgerEntry{
		ID:            uuid.New().String(),
		EntityType:    "invoice",
		EntityID:      payload.InvoiceID,
		Amount:        payload.Total,
		DebitAccount:  accountReceivables,
		CreditAccount: accountChargeRevenue,
		Description:   fmt.Sprintf("%d additional charge(s) for contract %s", len(payload.ChargeIDs), payload.ContractID),
		CreatedAt:     time.Now().UTC(),
	}
	return h.book(ctx, evt, entry, "charges_invoiced", model.ChargeStatusPending, model.ChargeStatusInvoiced)
}

// book writes the ledger entry, records the audit trail, and publishes the
// accounting broadcast for real-time listeners.
func (h *AccountingHandler) book(ctx context.Context, evt model.Event, entry model.LedgerEntry, action, before, after string) error {
	if err := h.sink.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}
	if h.metrics != nil {
		h.metrics.RecordLedgerEntry(entry.EntityType)
	}

	h.mu.Lock()
	h.audit = append(h.audit, model.AuditRecord{
		ID:         uuid.New().String(),
		EventID:    evt.ID,
		EventType:  evt.Type,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     action,
		Actor:      "system",
		Before:     before,
		After:      after,
		Timestamp:  time.Now().UTC(),
	})
	h.mu.Unlock()

	h.logger.Info("ledger entry booked",
		zap.String("entry_id", entry.ID),
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID),
		zap.Float64("amount", entry.Amount),
	)

	h.bus.Emit(ctx, model.Event{
		Type:   model.EventAccountingUpdated,
		Source: "accounting",
		Payload: model.AccountingUpdatedPayload{
			EntryID:    entry.ID,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Amount:     entry.Amount,
		},
	})
	return nil
}

// AuditTrail returns a copy of the recorded audit records.
func (h *AccountingHandler) AuditTrail() []model.AuditRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.AuditRecord, len(h.audit))
	copy(out, h.audit)
	return out
}

// MemoryLedger is an in-memory LedgerSink for tests and single-process use.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []model.LedgerEntry
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// CreateEntry appends an entry.
func (l *MemoryLedger) CreateEntry(_ context.Context, entry model.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of all recorded entries.
func (l *MemoryLedger) Entries() []model.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
