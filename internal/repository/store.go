package repository

import (
	"context"

	"github.com/motorent/rentord/model"
)

// ContractStore persists rental contracts and the vehicles they bind.
type ContractStore interface {
	// GetContract retrieves a contract by ID. Returns NOT_FOUND if absent.
	GetContract(ctx context.Context, id string) (model.Contract, error)

	// UpdateContractStatus changes only the status of a contract.
	UpdateContractStatus(ctx context.Context, id, status string) error

	// UpdateContract persists a full contract record, including pickup and
	// return details.
	UpdateContract(ctx context.Context, contract model.Contract) error

	// GetVehicle retrieves a vehicle by ID. Returns NOT_FOUND if absent.
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)

	// UpdateVehicleStatus changes the status of a vehicle.
	UpdateVehicleStatus(ctx context.Context, id, status string) error
}

// InvoiceStore persists invoices, payments and additional charges.
type InvoiceStore interface {
	// GetInvoice retrieves an invoice by ID. Returns NOT_FOUND if absent.
	GetInvoice(ctx context.Context, id string) (model.Invoice, error)

	// CreateInvoice persists a new invoice. Returns CONFLICT on a duplicate
	// ID.
	CreateInvoice(ctx context.Context, invoice model.Invoice) error

	// UpdateInvoiceStatus sets the status and outstanding amount of an
	// invoice.
	UpdateInvoiceStatus(ctx context.Context, id, status string, outstanding float64) error

	// DeleteInvoice removes an invoice.
	DeleteInvoice(ctx context.Context, id string) error

	// CreatePayment persists a payment record.
	CreatePayment(ctx context.Context, payment model.Payment) error

	// DeletePayment removes a payment record, used by compensation.
	DeletePayment(ctx context.Context, id string) error

	// CreateCharge persists an additional charge.
	CreateCharge(ctx context.Context, charge model.AdditionalCharge) error

	// UpdateChargeStatus sets the status of a charge and, when invoiced,
	// links it to the invoice. An empty invoiceID clears the link.
	UpdateChargeStatus(ctx context.Context, id, status, invoiceID string) error

	// DeleteCharge removes an additional charge.
	DeleteCharge(ctx context.Context, id string) error
}

// Store is the full persistence surface the orchestrators depend on.
type Store interface {
	ContractStore
	InvoiceStore

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
