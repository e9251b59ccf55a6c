package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/observability"
	"github.com/motorent/rentord/model"
)

// Publisher is the event-emission surface the executor needs. Both bus
// implementations satisfy it.
type Publisher interface {
	Emit(ctx context.Context, evt model.Event)
}

// Executor runs a sequence of transaction steps with automatic reverse-order
// compensation. Steps execute strictly in order; there is no parallel step
// execution.
type Executor struct {
	bus     Publisher
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewExecutor creates a saga executor. The metrics argument may be nil.
func NewExecutor(bus Publisher, logger *zap.Logger, metrics *observability.Metrics) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{bus: bus, logger: logger, metrics: metrics}
}

// ExecuteWithRollback runs the named saga. On the first step failure it
// invokes Rollback on every step from the failed one down to the first, in
// reverse order. A rollback failure is logged and swallowed; the reported
// error is always the forward failure.
func (e *Executor) ExecuteWithRollback(ctx context.Context, name string, steps []model.TransactionStep) model.OrchestrationResult {
	sg := &model.Saga{
		ID:        uuid.New().String(),
		Name:      name,
		Steps:     steps,
		StartedAt: time.Now().UTC(),
	}
	ctx, span := observability.StartSpan(ctx, "saga."+name,
		observability.AttrSagaID.String(sg.ID),
		observability.AttrSagaName.String(sg.Name),
	)

	logger := observability.SagaLogger(ctx, e.logger, sg.ID, sg.Name)
	logger.Info("saga started", zap.Int("step_count", len(steps)))
	start := time.Now()

	for i, step := range steps {
		sg.CurrentStep = i

		stepStart := time.Now()
		err := e.runStep(ctx, step)
		if e.metrics != nil {
			e.metrics.RecordSagaStep(sg.Name, step.Name, time.Since(stepStart))
		}
		if err != nil {
			logger.Error("saga step failed",
				zap.Int("step_index", i),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)
			// Compensation must still run when the forward failure was the
			// context itself expiring.
			rolledBack := e.rollback(context.WithoutCancel(ctx), sg, logger)
			sg.RolledBack = true

			e.bus.Emit(ctx, model.Event{
				Type:   model.EventSagaFailed,
				Source: sg.Name,
				Payload: model.SagaFailedPayload{
					SagaID:    sg.ID,
					SagaName:  sg.Name,
					StepIndex: i,
					StepName:  step.Name,
					Error:     err.Error(),
				},
			})
			if e.metrics != nil {
				e.metrics.RecordSagaExecution(sg.Name, "failed", time.Since(start))
			}
			observability.EndSpanWithError(span, err)
			return model.OrchestrationResult{
				Success:         false,
				SagaID:          sg.ID,
				Error:           err.Error(),
				RolledBackSteps: rolledBack,
			}
		}

		logger.Debug("saga step completed",
			zap.Int("step_index", i),
			zap.String("step_name", step.Name),
		)
		e.bus.Emit(ctx, model.Event{
			Type:   model.EventStepCompleted,
			Source: sg.Name,
			Payload: model.StepCompletedPayload{
				SagaID:    sg.ID,
				SagaName:  sg.Name,
				StepIndex: i,
				StepName:  step.Name,
			},
		})
	}

	sg.Completed = true
	logger.Info("saga completed", zap.Duration("elapsed", time.Since(start)))
	e.bus.Emit(ctx, model.Event{
		Type:   model.EventSagaCompleted,
		Source: sg.Name,
		Payload: model.SagaCompletedPayload{
			SagaID:   sg.ID,
			SagaName: sg.Name,
			Steps:    len(steps),
		},
	})
	if e.metrics != nil {
		e.metrics.RecordSagaExecution(sg.Name, "completed", time.Since(start))
	}
	span.End()
	return model.OrchestrationResult{Success: true, SagaID: sg.ID}
}

// runStep executes a single step, converting a panic into an error so a
// misbehaving step still triggers compensation.
func (e *Executor) runStep(ctx context.Context, step model.TransactionStep) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step %s panic: %v", step.Name, rec)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return step.Execute(ctx)
}

// rollback compensates steps from the current one down to the first. The
// failed step's own rollback runs too, so rollback actions must tolerate a
// missing forward effect. Returns the names of steps rolled back without
// error.
func (e *Executor) rollback(ctx context.Context, sg *model.Saga, logger *zap.Logger) []string {
	rolledBack := make([]string, 0, sg.CurrentStep+1)
	for i := sg.CurrentStep; i >= 0; i-- {
		step := sg.Steps[i]
		if step.Rollback == nil {
			continue
		}
		if e.metrics != nil {
			e.metrics.RecordSagaRollback(sg.Name)
		}
		if err := e.runRollback(ctx, step); err != nil {
			logger.Error("rollback step failed",
				zap.Int("step_index", i),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)
			continue
		}
		rolledBack = append(rolledBack, step.Name)
		logger.Info("step rolled back",
			zap.Int("step_index", i),
			zap.String("step_name", step.Name),
		)
		e.bus.Emit(ctx, model.Event{
			Type:   model.EventStepRolledBack,
			Source: sg.Name,
			Payload: model.StepRolledBackPayload{
				SagaID:    sg.ID,
				SagaName:  sg.Name,
				StepIndex: i,
				StepName:  step.Name,
			},
		})
	}
	return rolledBack
}

func (e *Executor) runRollback(ctx context.Context, step model.TransactionStep) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rollback %s panic: %v", step.Name, rec)
		}
	}()
	return step.Rollback(ctx)
}
