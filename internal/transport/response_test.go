package transport

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/motorent/rentord/model"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", model.NewNotFoundError("contract missing"), 404},
		{"bad request", model.NewBadRequestError("bad input"), 400},
		{"conflict", model.NewConflictError("duplicate"), 409},
		{"invalid status", model.NewInvalidStatusError("must be pending"), 422},
		{"amount exceeded", model.NewAmountExceededError("too much"), 422},
		{"already processed", model.NewAlreadyProcessedError("paid"), 409},
		{"plain error", errors.New("boom"), 500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}

			var body struct {
				Error *model.ErrorEnvelope `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error == nil || body.Error.Code == "" {
				t.Error("error envelope missing from body")
			}
		})
	}
}

func TestWriteResult_StatusReflectsOutcome(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteResult(rec, model.OrchestrationResult{Success: true, SagaID: "s1"})
	if rec.Code != 200 {
		t.Errorf("success status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	WriteResult(rec, model.OrchestrationResult{Success: false, Error: "step failed"})
	if rec.Code != 422 {
		t.Errorf("failure status = %d, want 422", rec.Code)
	}
}
