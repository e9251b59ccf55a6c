package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/repository"
	"github.com/motorent/rentord/internal/saga"
	"github.com/motorent/rentord/model"
)

const (
	SagaInvoicePayment     = "invoice_payment"
	SagaInvoiceWithCharges = "invoice_with_charges"
)

// InvoiceOrchestrator expresses invoice mutations as compensable sagas.
type InvoiceOrchestrator struct {
	store    repository.Store
	executor *saga.Executor
	bus      saga.Publisher
	logger   *zap.Logger
}

// NewInvoiceOrchestrator creates an invoice orchestrator.
func NewInvoiceOrchestrator(store repository.Store, executor *saga.Executor, bus saga.Publisher, logger *zap.Logger) *InvoiceOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceOrchestrator{store: store, executor: executor, bus: bus, logger: logger}
}

// ProcessPayment records a payment against an invoice and recomputes its
// status: outstanding <= 0 becomes paid, anything below the total becomes
// partially paid.
func (o *InvoiceOrchestrator) ProcessPayment(ctx context.Context, req model.ProcessPaymentRequest) model.OrchestrationResult {
	var (
		invoice model.Invoice
		payment model.Payment
	)

	steps := []model.TransactionStep{
		{
			Name: "validate_invoice",
			Execute: func(ctx context.Context) error {
				if req.Amount <= 0 {
					return model.NewBadRequestError("payment amount must be positive")
				}
				var err error
				invoice, err = o.store.GetInvoice(ctx, req.InvoiceID)
				if err != nil {
					return err
				}
				if invoice.Status == model.InvoiceStatusPaid {
					return model.NewAlreadyProcessedError(
						fmt.Sprintf("invoice %q is already paid", invoice.ID),
					)
				}
				if req.Amount > invoice.OutstandingAmount {
					return model.NewAmountExceededError(
						fmt.Sprintf("payment %.2f exceeds outstanding %.2f on invoice %q",
							req.Amount, invoice.OutstandingAmount, invoice.ID),
					)
				}
				return nil
			},
		},
		{
			Name: "create_payment",
			Execute: func(ctx context.Context) error {
				payment = model.Payment{
					ID:        uuid.New().String(),
					InvoiceID: invoice.ID,
					Amount:    req.Amount,
					Method:    req.Method,
					PaidAt:    time.Now().UTC(),
				}
				return o.store.CreatePayment(ctx, payment)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.DeletePayment(ctx, payment.ID)
			},
		},
		{
			// Deleting the payment is the compensation for this step too,
			// so it carries no rollback of its own.
			Name: "update_invoice_status",
			Execute: func(ctx context.Context) error {
				outstanding := invoice.OutstandingAmount - req.Amount
				status := invoice.Status
				switch {
				case outstanding <= 0:
					outstanding = 0
					status = model.InvoiceStatusPaid
				case outstanding < invoice.TotalAmount:
					status = model.InvoiceStatusPartiallyPaid
				}
				if err := o.store.UpdateInvoiceStatus(ctx, invoice.ID, status, outstanding); err != nil {
					return err
				}
				invoice.Status = status
				invoice.OutstandingAmount = outstanding
				return nil
			},
		},
	}

	result := o.executor.ExecuteWithRollback(ctx, SagaInvoicePayment, steps)
	if result.Success {
		result.Data = invoice
		o.bus.Emit(ctx, model.Event{
			Type:   model.EventInvoicePaymentProcessed,
			Source: SagaInvoicePayment,
			Payload: model.InvoicePaymentProcessedPayload{
				InvoiceID: invoice.ID,
				PaymentID: payment.ID,
				Amount:    req.Amount,
				Status:    invoice.Status,
			},
		})
	}
	return result
}

// CreateWithAdditionalCharges persists a batch of charges and one
// consolidated invoice covering them, then links each charge to the invoice.
func (o *InvoiceOrchestrator) CreateWithAdditionalCharges(ctx context.Context, req model.InvoiceWithChargesRequest) model.OrchestrationResult {
	var (
		created []model.AdditionalCharge
		invoice model.Invoice
	)

	steps := []model.TransactionStep{
		{
			Name: "validate_request",
			Execute: func(ctx context.Context) error {
				if len(req.Charges) == 0 {
					return model.NewBadRequestError("at least one charge is required")
				}
				for i, charge := range req.Charges {
					if charge.Amount <= 0 {
						return model.NewBadRequestError(
							fmt.Sprintf("charge %d amount must be positive", i),
						)
					}
				}
				return nil
			},
		},
		{
			Name: "create_charges",
			Execute: func(ctx context.Context) error {
				now := time.Now().UTC()
				for _, chargeReq := range req.Charges {
					charge := model.AdditionalCharge{
						ID:          uuid.New().String(),
						ContractID:  req.ContractID,
						Description: chargeReq.Description,
						Amount:      chargeReq.Amount,
						Status:      model.ChargeStatusPending,
						CreatedAt:   now,
					}
					if err := o.store.CreateCharge(ctx, charge); err != nil {
						return err
					}
					created = append(created, charge)
				}
				return nil
			},
			// The forward action may have created only some of the charges.
			Rollback: func(ctx context.Context) error {
				var firstErr error
				for _, charge := range created {
					if err := o.store.DeleteCharge(ctx, charge.ID); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		},
		{
			Name: "create_invoice",
			Execute: func(ctx context.Context) error {
				invoice = buildChargeInvoice(req, created)
				return o.store.CreateInvoice(ctx, invoice)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.DeleteInvoice(ctx, invoice.ID)
			},
		},
		{
			Name: "link_charges",
			Execute: func(ctx context.Context) error {
				for _, charge := range created {
					if err := o.store.UpdateChargeStatus(ctx, charge.ID, model.ChargeStatusInvoiced, invoice.ID); err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(ctx context.Context) error {
				var firstErr error
				for _, charge := range created {
					if err := o.store.UpdateChargeStatus(ctx, charge.ID, model.ChargeStatusPending, ""); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		},
	}

	result := o.executor.ExecuteWithRollback(ctx, SagaInvoiceWithCharges, steps)
	if result.Success {
		result.Data = invoice
		chargeIDs := make([]string, len(created))
		for i, charge := range created {
			chargeIDs[i] = charge.ID
		}
		o.bus.Emit(ctx, model.Event{
			Type:   model.EventInvoiceWithChargesCreated,
			Source: SagaInvoiceWithCharges,
			Payload: model.InvoiceWithChargesCreatedPayload{
				InvoiceID:  invoice.ID,
				ContractID: req.ContractID,
				ChargeIDs:  chargeIDs,
				Total:      invoice.TotalAmount,
			},
		})
	}
	return result
}

// buildChargeInvoice consolidates a batch of charges into one invoice.
func buildChargeInvoice(req model.InvoiceWithChargesRequest, charges []model.AdditionalCharge) model.Invoice {
	lines := make([]model.InvoiceLine, len(charges))
	var total float64
	for i, charge := range charges {
		lines[i] = model.InvoiceLine{
			Description: charge.Description,
			Quantity:    1,
			UnitPrice:   charge.Amount,
			Amount:      charge.Amount,
		}
		total += charge.Amount
	}

	now := time.Now().UTC()
	return model.Invoice{
		ID:                uuid.New().String(),
		ContractID:        req.ContractID,
		CustomerID:        req.CustomerID,
		Status:            model.InvoiceStatusIssued,
		Lines:             lines,
		TotalAmount:       total,
		OutstandingAmount: total,
		IssuedAt:          now,
		UpdatedAt:         now,
	}
}
