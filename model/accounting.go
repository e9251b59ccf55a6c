package model

import "time"

// LedgerEntry is a double-entry ledger record created by the accounting
// handler. Account codes follow the chart of accounts of the hosted
// accounting backend.
type LedgerEntry struct {
	ID            string    `json:"id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Amount        float64   `json:"amount"`
	DebitAccount  string    `json:"debit_account"`
	CreditAccount string    `json:"credit_account"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuditRecord traces an accounting-relevant event to the action taken.
type AuditRecord struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Before     string    `json:"before,omitempty"`
	After      string    `json:"after,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
