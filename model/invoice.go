package model

import "time"

// Invoice status constants.
const (
	InvoiceStatusIssued        = "issued"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusCancelled     = "cancelled"
)

// Additional charge status constants.
const (
	ChargeStatusPending  = "pending"
	ChargeStatusInvoiced = "invoiced"
)

// Invoice is a rental or charge invoice. OutstandingAmount is the unpaid
// remainder of TotalAmount.
type Invoice struct {
	ID                string        `json:"id"`
	ContractID        string        `json:"contract_id"`
	CustomerID        string        `json:"customer_id"`
	Status            string        `json:"status"`
	TotalAmount       float64       `json:"total_amount"`
	OutstandingAmount float64       `json:"outstanding_amount"`
	Lines             []InvoiceLine `json:"lines,omitempty"`
	IssuedAt          time.Time     `json:"issued_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// InvoiceLine is a single invoice line item.
type InvoiceLine struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// Payment is a recorded payment against an invoice.
type Payment struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paid_at"`
}

// AdditionalCharge is a chargeable extra (damage, fuel, late return) raised
// against a contract and later consolidated into an invoice.
type AdditionalCharge struct {
	ID          string    `json:"id"`
	ContractID  string    `json:"contract_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	InvoiceID   string    `json:"invoice_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdditionalChargeRequest describes one charge to raise.
type AdditionalChargeRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ProcessPaymentRequest starts the invoice payment saga.
type ProcessPaymentRequest struct {
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
}

// InvoiceWithChargesRequest starts the invoice-with-additional-charges saga.
type InvoiceWithChargesRequest struct {
	ContractID string                    `json:"contract_id"`
	CustomerID string                    `json:"customer_id"`
	Charges    []AdditionalChargeRequest `json:"charges"`
}
