package orchestration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/repository"
	"github.com/motorent/rentord/internal/saga"
	"github.com/motorent/rentord/model"
)

// Saga names, stable labels in logs and metrics.
const (
	SagaContractActivation = "contract_activation"
	SagaContractCompletion = "contract_completion"
	SagaContractCancel     = "contract_cancellation"
)

// ContractOrchestrator expresses contract transitions as compensable sagas.
// It never catches saga failures itself: it returns whatever result the
// executor produced and only emits the business success event when the saga
// succeeded.
type ContractOrchestrator struct {
	store    repository.Store
	executor *saga.Executor
	bus      saga.Publisher
	logger   *zap.Logger
}

// NewContractOrchestrator creates a contract orchestrator.
func NewContractOrchestrator(store repository.Store, executor *saga.Executor, bus saga.Publisher, logger *zap.Logger) *ContractOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractOrchestrator{store: store, executor: executor, bus: bus, logger: logger}
}

// Activate transitions a pending contract to active, marking the vehicle as
// rented and recording pickup details.
func (o *ContractOrchestrator) Activate(ctx context.Context, req model.ActivateContractRequest) model.OrchestrationResult {
	var contract model.Contract

	steps := []model.TransactionStep{
		{
			// Pure read, no rollback.
			Name: "validate_contract",
			Execute: func(ctx context.Context) error {
				var err error
				contract, err = o.store.GetContract(ctx, req.ContractID)
				if err != nil {
					return err
				}
				if contract.Status != model.ContractStatusPending {
					return model.NewInvalidStatusError(
						fmt.Sprintf("contract %q is %q, must be pending to activate", contract.ID, contract.Status),
					)
				}
				return nil
			},
		},
		{
			Name: "update_vehicle_status",
			Execute: func(ctx context.Context) error {
				return o.store.UpdateVehicleStatus(ctx, contract.VehicleID, model.VehicleStatusRented)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.UpdateVehicleStatus(ctx, contract.VehicleID, model.VehicleStatusAvailable)
			},
		},
		{
			Name: "activate_contract",
			Execute: func(ctx context.Context) error {
				contract.Status = model.ContractStatusActive
				contract.Pickup = &req.Pickup
				return o.store.UpdateContract(ctx, contract)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.UpdateContractStatus(ctx, contract.ID, model.ContractStatusPending)
			},
		},
	}

	result := o.executor.ExecuteWithRollback(ctx, SagaContractActivation, steps)
	if result.Success {
		result.Data = contract
		o.bus.Emit(ctx, model.Event{
			Type:   model.EventContractActivated,
			Source: SagaContractActivation,
			Payload: model.ContractActivatedPayload{
				ContractID: contract.ID,
				VehicleID:  contract.VehicleID,
			},
		})
	}
	return result
}

// Complete transitions an active contract to completed: the vehicle returns
// to the fleet, return details are recorded, and a final rental invoice is
// generated. Additional charges supplied by the caller are deferred to a
// handler via ADDITIONAL_CHARGES_NEEDED rather than folded into this saga.
func (o *ContractOrchestrator) Complete(ctx context.Context, req model.CompleteContractRequest) model.OrchestrationResult {
	var (
		contract model.Contract
		invoice  model.Invoice
	)

	steps := []model.TransactionStep{
		{
			Name: "validate_contract",
			Execute: func(ctx context.Context) error {
				var err error
				contract, err = o.store.GetContract(ctx, req.ContractID)
				if err != nil {
					return err
				}
				if contract.Status != model.ContractStatusActive {
					return model.NewInvalidStatusError(
						fmt.Sprintf("contract %q is %q, must be active to complete", contract.ID, contract.Status),
					)
				}
				return nil
			},
		},
		{
			Name: "update_vehicle_status",
			Execute: func(ctx context.Context) error {
				return o.store.UpdateVehicleStatus(ctx, contract.VehicleID, model.VehicleStatusAvailable)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.UpdateVehicleStatus(ctx, contract.VehicleID, model.VehicleStatusRented)
			},
		},
		{
			Name: "complete_contract",
			Execute: func(ctx context.Context) error {
				actualEnd := req.ActualEndDate
				contract.Status = model.ContractStatusCompleted
				contract.ActualEndDate = &actualEnd
				contract.Return = &req.Return
				return o.store.UpdateContract(ctx, contract)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.UpdateContractStatus(ctx, contract.ID, model.ContractStatusActive)
			},
		},
		{
			Name: "generate_final_invoice",
			Execute: func(ctx context.Context) error {
				invoice = buildRentalInvoice(contract, req.ActualEndDate)
				return o.store.CreateInvoice(ctx, invoice)
			},
			Rollback: func(ctx context.Context) error {
				return o.store.DeleteInvoice(ctx, invoice.ID)
			},
		},
	}

	result := o.executor.ExecuteWithRollback(ctx, SagaContractCompletion, steps)
	if result.Success {
		result.Data = invoice
		o.bus.Emit(ctx, model.Event{
			Type:   model.EventContractCompleted,
			Source: SagaContractCompletion,
			Payload: model.ContractCompletedPayload{
				ContractID: contract.ID,
				InvoiceID:  invoice.ID,
			},
		})
		if len(req.AdditionalCharges) > 0 {
			o.bus.Emit(ctx, model.Event{
				Type:   model.EventAdditionalChargesNeeded,
				Source: SagaContractCompletion,
				Payload: model.AdditionalChargesNeededPayload{
					ContractID: contract.ID,
					InvoiceID:  invoice.ID,
					Charges:    req.AdditionalCharges,
				},
			})
		}
	}
	return result
}

// Cancel transitions a pending or active contract to cancelled with a
// reason. The vehicle reverts to available only when the contract was
// active, since a pending contract never claimed it.
func (o *ContractOrchestrator) Cancel(ctx context.Context, req model.CancelContractRequest) model.OrchestrationResult {
	var (
		contract  model.Contract
		wasActive bool
	)

	steps := []model.TransactionStep{
		{
			Name: "validate_contract",
			Execute: func(ctx context.Context) error {
				var err error
				contract, err = o.store.GetContract(ctx, req.ContractID)
				if err != nil {
					return err
				}
				switch contract.Status {
				case model.ContractStatusCompleted, model.ContractStatusCancelled:
					return model.NewInvalidStatusError(
						fmt.Sprintf("contract %q is already %q", contract.ID, contract.Status),
					)
				}
				wasActive = contract.Status == model.ContractStatusActive
				return nil
			},
		},
		{
			Name: "release_vehicle",
			Execute: func(ctx context.Context) error {
				if !wasActive {
					return nil
				}
				return o.store.UpdateVehicleStatus(ctx, contract.VehicleID, model.VehicleStatusAvailable)
			},
			Rollback: func(ctx context.Context) error {
				if !wasActive {
					return nil
				}
				return o.store.UpdateVehicleStatus(ctx, contract.VehicleID, model.VehicleStatusRented)
			},
		},
		{
			Name: "cancel_contract",
			Execute: func(ctx context.Context) error {
				priorStatus := contract.Status
				contract.Status = model.ContractStatusCancelled
				contract.Notes = appendNote(contract.Notes, "cancelled: "+req.Reason)
				if err := o.store.UpdateContract(ctx, contract); err != nil {
					contract.Status = priorStatus
					return err
				}
				return nil
			},
			Rollback: func(ctx context.Context) error {
				status := model.ContractStatusPending
				if wasActive {
					status = model.ContractStatusActive
				}
				return o.store.UpdateContractStatus(ctx, contract.ID, status)
			},
		},
	}

	result := o.executor.ExecuteWithRollback(ctx, SagaContractCancel, steps)
	if result.Success {
		result.Data = contract
		o.bus.Emit(ctx, model.Event{
			Type:   model.EventContractCancelled,
			Source: SagaContractCancel,
			Payload: model.ContractCancelledPayload{
				ContractID: contract.ID,
				Reason:     req.Reason,
				WasActive:  wasActive,
			},
		})
	}
	return result
}

// buildRentalInvoice prices the rental period at the contract's daily rate.
// Partial days round up; a same-day return bills one day.
func buildRentalInvoice(contract model.Contract, actualEnd time.Time) model.Invoice {
	days := int(math.Ceil(actualEnd.Sub(contract.StartDate).Hours() / 24))
	if days < 1 {
		days = 1
	}
	total := float64(days) * contract.DailyRate

	now := time.Now().UTC()
	return model.Invoice{
		ID:         uuid.New().String(),
		ContractID: contract.ID,
		CustomerID: contract.CustomerID,
		Status:     model.InvoiceStatusIssued,
		Lines: []model.InvoiceLine{
			{
				Description: fmt.Sprintf("vehicle rental, %d day(s)", days),
				Quantity:    days,
				UnitPrice:   contract.DailyRate,
				Amount:      total,
			},
		},
		TotalAmount:       total,
		OutstandingAmount: total,
		IssuedAt:          now,
		UpdatedAt:         now,
	}
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "; " + note
}
