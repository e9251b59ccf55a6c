package model

import "time"

// Domain event types. This vocabulary is a stable contract: handlers and
// downstream consumers match on these strings.
const (
	EventContractActivated         = "CONTRACT_ACTIVATED"
	EventContractCompleted         = "CONTRACT_COMPLETED"
	EventContractCancelled         = "CONTRACT_CANCELLED"
	EventInvoicePaymentProcessed   = "INVOICE_PAYMENT_PROCESSED"
	EventInvoiceWithChargesCreated = "INVOICE_WITH_CHARGES_CREATED"
	EventAdditionalChargesNeeded   = "ADDITIONAL_CHARGES_NEEDED"
	EventAccountingUpdated         = "ACCOUNTING_UPDATED"
)

// Saga lifecycle event types, emitted by the executor.
const (
	EventStepCompleted  = "STEP_COMPLETED"
	EventStepRolledBack = "STEP_ROLLED_BACK"
	EventSagaCompleted  = "SAGA_COMPLETED"
	EventSagaFailed     = "SAGA_FAILED"
)

// EventHandlerFailed is emitted by the enhanced bus when a subscriber has
// exhausted its retries. It is never itself retried.
const EventHandlerFailed = "EVENT_HANDLER_FAILED"

// EventWildcard subscribes a handler to every event type.
const EventWildcard = "*"

// Priority levels for events and derived notifications.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Event categories.
const (
	CategoryContracts  = "contracts"
	CategoryInvoices   = "invoices"
	CategorySaga       = "saga"
	CategoryAccounting = "accounting"
	CategorySystem     = "system"
	CategoryGeneral    = "general"
)

// EventTypeInfo is the registered priority and category for an event type.
type EventTypeInfo struct {
	Priority Priority
	Category string
}

// eventTypeRegistry maps each known event type to its priority and category.
// Types are classified here explicitly rather than inferred from the type
// name, so adding a new type cannot silently change an existing one's
// routing.
var eventTypeRegistry = map[string]EventTypeInfo{
	EventContractActivated:         {Priority: PriorityLow, Category: CategoryContracts},
	EventContractCompleted:         {Priority: PriorityLow, Category: CategoryContracts},
	EventContractCancelled:         {Priority: PriorityMedium, Category: CategoryContracts},
	EventInvoicePaymentProcessed:   {Priority: PriorityLow, Category: CategoryInvoices},
	EventInvoiceWithChargesCreated: {Priority: PriorityLow, Category: CategoryInvoices},
	EventAdditionalChargesNeeded:   {Priority: PriorityMedium, Category: CategoryInvoices},
	EventAccountingUpdated:         {Priority: PriorityLow, Category: CategoryAccounting},
	EventStepCompleted:             {Priority: PriorityLow, Category: CategorySaga},
	EventStepRolledBack:            {Priority: PriorityMedium, Category: CategorySaga},
	EventSagaCompleted:             {Priority: PriorityLow, Category: CategorySaga},
	EventSagaFailed:                {Priority: PriorityHigh, Category: CategorySaga},
	EventHandlerFailed:             {Priority: PriorityHigh, Category: CategorySystem},
}

// TypeInfo returns the registered priority and category for an event type.
// Unknown types get low priority and the general category.
func TypeInfo(eventType string) EventTypeInfo {
	if info, ok := eventTypeRegistry[eventType]; ok {
		return info
	}
	return EventTypeInfo{Priority: PriorityLow, Category: CategoryGeneral}
}

// KnownEventType reports whether the type is part of the registered
// vocabulary.
func KnownEventType(eventType string) bool {
	_, ok := eventTypeRegistry[eventType]
	return ok
}

// EventPayload is implemented by every event payload type. The returned
// string must match the Event.Type the payload is carried under, which keeps
// the payload shape statically tied to the type tag.
type EventPayload interface {
	EventType() string
}

// Event is a domain event published through the bus. ID, Timestamp, Priority
// and Category are filled in at emission time when left zero.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Payload    EventPayload      `json:"payload,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Source     string            `json:"source"`
	Priority   Priority          `json:"priority,omitempty"`
	Category   string            `json:"category,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	RetryCount int               `json:"retry_count,omitempty"`
	MaxRetries int               `json:"max_retries,omitempty"`
}

// --- Payloads ---

// ContractActivatedPayload accompanies CONTRACT_ACTIVATED.
type ContractActivatedPayload struct {
	ContractID string `json:"contract_id"`
	VehicleID  string `json:"vehicle_id"`
}

func (ContractActivatedPayload) EventType() string { return EventContractActivated }

// ContractCompletedPayload accompanies CONTRACT_COMPLETED.
type ContractCompletedPayload struct {
	ContractID string `json:"contract_id"`
	InvoiceID  string `json:"invoice_id"`
}

func (ContractCompletedPayload) EventType() string { return EventContractCompleted }

// ContractCancelledPayload accompanies CONTRACT_CANCELLED. WasActive
// distinguishes cancellation of a running rental from one that never
// started; consumers tracking active counts need the difference.
type ContractCancelledPayload struct {
	ContractID string `json:"contract_id"`
	Reason     string `json:"reason"`
	WasActive  bool   `json:"was_active"`
}

func (ContractCancelledPayload) EventType() string { return EventContractCancelled }

// InvoicePaymentProcessedPayload accompanies INVOICE_PAYMENT_PROCESSED.
type InvoicePaymentProcessedPayload struct {
	InvoiceID string  `json:"invoice_id"`
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

func (InvoicePaymentProcessedPayload) EventType() string { return EventInvoicePaymentProcessed }

// InvoiceWithChargesCreatedPayload accompanies INVOICE_WITH_CHARGES_CREATED.
type InvoiceWithChargesCreatedPayload struct {
	InvoiceID  string   `json:"invoice_id"`
	ContractID string   `json:"contract_id"`
	ChargeIDs  []string `json:"charge_ids"`
	Total      float64  `json:"total"`
}

func (InvoiceWithChargesCreatedPayload) EventType() string { return EventInvoiceWithChargesCreated }

// AdditionalChargesNeededPayload accompanies ADDITIONAL_CHARGES_NEEDED.
// Charges are deferred to a handler rather than folded into the completion
// saga.
type AdditionalChargesNeededPayload struct {
	ContractID string                    `json:"contract_id"`
	InvoiceID  string                    `json:"invoice_id"`
	Charges    []AdditionalChargeRequest `json:"charges"`
}

func (AdditionalChargesNeededPayload) EventType() string { return EventAdditionalChargesNeeded }

// AccountingUpdatedPayload accompanies ACCOUNTING_UPDATED, the broadcast the
// accounting handler publishes after writing a ledger entry.
type AccountingUpdatedPayload struct {
	EntryID    string  `json:"entry_id"`
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	Amount     float64 `json:"amount"`
}

func (AccountingUpdatedPayload) EventType() string { return EventAccountingUpdated }

// StepCompletedPayload accompanies STEP_COMPLETED.
type StepCompletedPayload struct {
	SagaID    string `json:"saga_id"`
	SagaName  string `json:"saga_name"`
	StepIndex int    `json:"step_index"`
	StepName  string `json:"step_name"`
}

func (StepCompletedPayload) EventType() string { return EventStepCompleted }

// StepRolledBackPayload accompanies STEP_ROLLED_BACK.
type StepRolledBackPayload struct {
	SagaID    string `json:"saga_id"`
	SagaName  string `json:"saga_name"`
	StepIndex int    `json:"step_index"`
	StepName  string `json:"step_name"`
}

func (StepRolledBackPayload) EventType() string { return EventStepRolledBack }

// SagaCompletedPayload accompanies SAGA_COMPLETED.
type SagaCompletedPayload struct {
	SagaID   string `json:"saga_id"`
	SagaName string `json:"saga_name"`
	Steps    int    `json:"steps"`
}

func (SagaCompletedPayload) EventType() string { return EventSagaCompleted }

// SagaFailedPayload accompanies SAGA_FAILED. Error is always the original
// forward failure, never a rollback error.
type SagaFailedPayload struct {
	SagaID    string `json:"saga_id"`
	SagaName  string `json:"saga_name"`
	StepIndex int    `json:"step_index"`
	StepName  string `json:"step_name"`
	Error     string `json:"error"`
}

func (SagaFailedPayload) EventType() string { return EventSagaFailed }

// HandlerFailedPayload accompanies EVENT_HANDLER_FAILED.
type HandlerFailedPayload struct {
	SubscriptionID  string `json:"subscription_id"`
	EventID         string `json:"event_id"`
	FailedEventType string `json:"event_type"`
	Error           string `json:"error"`
	Attempts        int    `json:"attempts"`
}

func (HandlerFailedPayload) EventType() string { return EventHandlerFailed }
