package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/motorent/rentord/model"
)

// MemoryStore is an in-memory Store for testing and single-process use.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[string]model.Contract
	vehicles  map[string]model.Vehicle
	invoices  map[string]model.Invoice
	payments  map[string]model.Payment
	charges   map[string]model.AdditionalCharge
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]model.Contract),
		vehicles:  make(map[string]model.Vehicle),
		invoices:  make(map[string]model.Invoice),
		payments:  make(map[string]model.Payment),
		charges:   make(map[string]model.AdditionalCharge),
	}
}

// SeedContract inserts or replaces a contract, for tests and fixtures.
func (s *MemoryStore) SeedContract(contract model.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[contract.ID] = contract
}

// SeedVehicle inserts or replaces a vehicle.
func (s *MemoryStore) SeedVehicle(vehicle model.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[vehicle.ID] = vehicle
}

// SeedInvoice inserts or replaces an invoice.
func (s *MemoryStore) SeedInvoice(invoice model.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[invoice.ID] = invoice
}

// GetContract retrieves a contract by ID.
func (s *MemoryStore) GetContract(_ context.Context, id string) (model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contract, exists := s.contracts[id]
	if !exists {
		return model.Contract{}, model.NewNotFoundError(
			fmt.Sprintf("contract %q not found", id),
		)
	}
	return contract, nil
}

// UpdateContractStatus changes only the status of a contract.
func (s *MemoryStore) UpdateContractStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contract, exists := s.contracts[id]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("contract %q not found", id))
	}
	contract.Status = status
	contract.UpdatedAt = time.Now().UTC()
	s.contracts[id] = contract
	return nil
}

// UpdateContract persists a full contract record.
func (s *MemoryStore) UpdateContract(_ context.Context, contract model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[contract.ID]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("contract %q not found", contract.ID))
	}
	contract.UpdatedAt = time.Now().UTC()
	s.contracts[contract.ID] = contract
	return nil
}

// GetVehicle retrieves a vehicle by ID.
func (s *MemoryStore) GetVehicle(_ context.Context, id string) (model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicle, exists := s.vehicles[id]
	if !exists {
		return model.Vehicle{}, model.NewNotFoundError(
			fmt.Sprintf("vehicle %q not found", id),
		)
	}
	return vehicle, nil
}

// UpdateVehicleStatus changes the status of a vehicle.
func (s *MemoryStore) UpdateVehicleStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vehicle, exists := s.vehicles[id]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("vehicle %q not found", id))
	}
	vehicle.Status = status
	vehicle.UpdatedAt = time.Now().UTC()
	s.vehicles[id] = vehicle
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *MemoryStore) GetInvoice(_ context.Context, id string) (model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, exists := s.invoices[id]
	if !exists {
		return model.Invoice{}, model.NewNotFoundError(
			fmt.Sprintf("invoice %q not found", id),
		)
	}
	return invoice, nil
}

// CreateInvoice persists a new invoice.
func (s *MemoryStore) CreateInvoice(_ context.Context, invoice model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[invoice.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("invoice %q already exists", invoice.ID),
		)
	}
	s.invoices[invoice.ID] = invoice
	return nil
}

// UpdateInvoiceStatus sets the status and outstanding amount of an invoice.
func (s *MemoryStore) UpdateInvoiceStatus(_ context.Context, id, status string, outstanding float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, exists := s.invoices[id]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("invoice %q not found", id))
	}
	invoice.Status = status
	invoice.OutstandingAmount = outstanding
	invoice.UpdatedAt = time.Now().UTC()
	s.invoices[id] = invoice
	return nil
}

// DeleteInvoice removes an invoice.
func (s *MemoryStore) DeleteInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[id]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("invoice %q not found", id))
	}
	delete(s.invoices, id)
	return nil
}

// CreatePayment persists a payment record.
func (s *MemoryStore) CreatePayment(_ context.Context, payment model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[payment.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("payment %q already exists", payment.ID),
		)
	}
	s.payments[payment.ID] = payment
	return nil
}

// DeletePayment removes a payment record.
func (s *MemoryStore) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[id]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("payment %q not found", id))
	}
	delete(s.payments, id)
	return nil
}

// GetPayment retrieves a payment by ID, for tests and read endpoints.
func (s *MemoryStore) GetPayment(_ context.Context, id string) (model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, exists := s.payments[id]
	if !exists {
		return model.Payment{}, model.NewNotFoundError(
			fmt.Sprintf("payment %q not found", id),
		)
	}
	return payment, nil
}

// CreateCharge persists an additional charge.
func (s *MemoryStore) CreateCharge(_ context.Context, charge model.AdditionalCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charges[charge.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("charge %q already exists", charge.ID),
		)
	}
	s.charges[charge.ID] = charge
	return nil
}

// UpdateChargeStatus sets the status of a charge and its invoice link.
func (s *MemoryStore) UpdateChargeStatus(_ context.Context, id, status, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charge, exists := s.charges[id]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("charge %q not found", id))
	}
	charge.Status = status
	charge.InvoiceID = invoiceID
	s.charges[id] = charge
	return nil
}

// DeleteCharge removes an additional charge.
func (s *MemoryStore) DeleteCharge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charges[id]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("charge %q not found", id))
	}
	delete(s.charges, id)
	return nil
}

// GetCharge retrieves a charge by ID, for tests and read endpoints.
func (s *MemoryStore) GetCharge(_ context.Context, id string) (model.AdditionalCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	charge, exists := s.charges[id]
	if !exists {
		return model.AdditionalCharge{}, model.NewNotFoundError(
			fmt.Sprintf("charge %q not found", id),
		)
	}
	return charge, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}
