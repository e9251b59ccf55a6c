package model

import (
	"context"
	"time"
)

// TransactionStep is one unit of work in a saga. Execute performs the
// forward action; Rollback is its semantic inverse. A nil Rollback marks a
// pure read (validation) step with nothing to compensate.
//
// Rollback must tolerate being called when the forward action had partial or
// no effect: on failure the executor compensates from the failed step
// downward, including the step that failed.
type TransactionStep struct {
	Name     string
	Execute  func(ctx context.Context) error
	Rollback func(ctx context.Context) error
}

// Saga is the in-memory execution record for one orchestrated transaction.
// It is created per invocation, never shared, and never persisted: an
// in-flight saga is lost on process crash.
type Saga struct {
	ID          string
	Name        string
	Steps       []TransactionStep
	CurrentStep int
	Completed   bool
	RolledBack  bool
	StartedAt   time.Time
}

// OrchestrationResult is the structured outcome of a saga execution. The
// saga boundary is the outermost place raw errors are caught: callers never
// see a raw error from an orchestrator method, only this envelope.
type OrchestrationResult struct {
	Success         bool     `json:"success"`
	SagaID          string   `json:"saga_id"`
	Error           string   `json:"error,omitempty"`
	RolledBackSteps []string `json:"rolled_back_steps,omitempty"`
	Data            any      `json:"data,omitempty"`
}
