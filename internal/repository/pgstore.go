package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorent/rentord/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// GetContract retrieves a contract by ID.
func (s *PgStore) GetContract(ctx context.Context, id string) (model.Contract, error) {
	var contract model.Contract
	var pickupJSON, returnJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, vehicle_id, status, daily_rate,
		       start_date, end_date, actual_end_date,
		       pickup_details, return_details, notes,
		       created_at, updated_at
		FROM contracts
		WHERE id = $1`,
		id,
	).Scan(
		&contract.ID, &contract.CustomerID, &contract.VehicleID, &contract.Status, &contract.DailyRate,
		&contract.StartDate, &contract.EndDate, &contract.ActualEndDate,
		&pickupJSON, &returnJSON, &contract.Notes,
		&contract.CreatedAt, &contract.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Contract{}, model.NewNotFoundError(
			fmt.Sprintf("contract %q not found", id),
		)
	}
	if err != nil {
		return model.Contract{}, fmt.Errorf("query contract: %w", err)
	}

	if pickupJSON != nil {
		if err := json.Unmarshal(pickupJSON, &contract.Pickup); err != nil {
			return model.Contract{}, fmt.Errorf("unmarshal pickup details: %w", err)
		}
	}
	if returnJSON != nil {
		if err := json.Unmarshal(returnJSON, &contract.Return); err != nil {
			return model.Contract{}, fmt.Errorf("unmarshal return details: %w", err)
		}
	}
	return contract, nil
}

// UpdateContractStatus changes only the status of a contract.
func (s *PgStore) UpdateContractStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE contracts SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("contract %q not found", id))
	}
	return nil
}

// UpdateContract persists a full contract record.
func (s *PgStore) UpdateContract(ctx context.Context, contract model.Contract) error {
	pickupJSON, err := marshalNullable(contract.Pickup)
	if err != nil {
		return fmt.Errorf("marshal pickup details: %w", err)
	}
	returnJSON, err := marshalNullable(contract.Return)
	if err != nil {
		return fmt.Errorf("marshal return details: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE contracts SET
			status = $1,
			actual_end_date = $2,
			pickup_details = $3,
			return_details = $4,
			notes = $5,
			updated_at = $6
		WHERE id = $7`,
		contract.Status, contract.ActualEndDate,
		pickupJSON, returnJSON, contract.Notes,
		time.Now().UTC(), contract.ID,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("contract %q not found", contract.ID))
	}
	return nil
}

// GetVehicle retrieves a vehicle by ID.
func (s *PgStore) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var vehicle model.Vehicle

	err := s.pool.QueryRow(ctx, `
		SELECT id, registration, model, status, mileage, updated_at
		FROM vehicles
		WHERE id = $1`,
		id,
	).Scan(
		&vehicle.ID, &vehicle.Registration, &vehicle.Model,
		&vehicle.Status, &vehicle.Mileage, &vehicle.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Vehicle{}, model.NewNotFoundError(
			fmt.Sprintf("vehicle %q not found", id),
		)
	}
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("query vehicle: %w", err)
	}
	return vehicle, nil
}

// UpdateVehicleStatus changes the status of a vehicle.
func (s *PgStore) UpdateVehicleStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vehicles SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update vehicle status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("vehicle %q not found", id))
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *PgStore) GetInvoice(ctx context.Context, id string) (model.Invoice, error) {
	var invoice model.Invoice
	var linesJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, contract_id, customer_id, status,
		       total_amount, outstanding_amount, lines,
		       issued_at, updated_at
		FROM invoices
		WHERE id = $1`,
		id,
	).Scan(
		&invoice.ID, &invoice.ContractID, &invoice.CustomerID, &invoice.Status,
		&invoice.TotalAmount, &invoice.OutstandingAmount, &linesJSON,
		&invoice.IssuedAt, &invoice.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return model.Invoice{}, model.NewNotFoundError(
			fmt.Sprintf("invoice %q not found", id),
		)
	}
	if err != nil {
		return model.Invoice{}, fmt.Errorf("query invoice: %w", err)
	}

	if linesJSON != nil {
		if err := json.Unmarshal(linesJSON, &invoice.Lines); err != nil {
			return model.Invoice{}, fmt.Errorf("unmarshal invoice lines: %w", err)
		}
	}
	return invoice, nil
}

// CreateInvoice inserts a new invoice.
func (s *PgStore) CreateInvoice(ctx context.Context, invoice model.Invoice) error {
	linesJSON, err := json.Marshal(invoice.Lines)
	if err != nil {
		return fmt.Errorf("marshal invoice lines: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO invoices (
			id, contract_id, customer_id, status,
			total_amount, outstanding_amount, lines,
			issued_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		invoice.ID, invoice.ContractID, invoice.CustomerID, invoice.Status,
		invoice.TotalAmount, invoice.OutstandingAmount, linesJSON,
		invoice.IssuedAt, invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// UpdateInvoiceStatus sets the status and outstanding amount of an invoice.
func (s *PgStore) UpdateInvoiceStatus(ctx context.Context, id, status string, outstanding float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices SET status = $1, outstanding_amount = $2, updated_at = $3
		WHERE id = $4`,
		status, outstanding, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("invoice %q not found", id))
	}
	return nil
}

// DeleteInvoice removes an invoice.
func (s *PgStore) DeleteInvoice(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("invoice %q not found", id))
	}
	return nil
}

// CreatePayment inserts a payment record.
func (s *PgStore) CreatePayment(ctx context.Context, payment model.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, paid_at)
		VALUES ($1, $2, $3, $4, $5)`,
		payment.ID, payment.InvoiceID, payment.Amount, payment.Method, payment.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// DeletePayment removes a payment record.
func (s *PgStore) DeletePayment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("payment %q not found", id))
	}
	return nil
}

// CreateCharge inserts an additional charge.
func (s *PgStore) CreateCharge(ctx context.Context, charge model.AdditionalCharge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO additional_charges (
			id, contract_id, description, amount, status, invoice_id, created_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		charge.ID, charge.ContractID, charge.Description, charge.Amount,
		charge.Status, charge.InvoiceID, charge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

// UpdateChargeStatus sets the status of a charge and its invoice link.
func (s *PgStore) UpdateChargeStatus(ctx context.Context, id, status, invoiceID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE additional_charges SET status = $1, invoice_id = NULLIF($2, '')
		WHERE id = $3`,
		status, invoiceID, id,
	)
	if err != nil {
		return fmt.Errorf("update charge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("charge %q not found", id))
	}
	return nil
}

// DeleteCharge removes an additional charge.
func (s *PgStore) DeleteCharge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM additional_charges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("charge %q not found", id))
	}
	return nil
}

// HealthCheck pings the connection pool.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// marshalNullable marshals a value to JSON, mapping a nil pointer to SQL NULL.
func marshalNullable[T any](p *T) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}
