package model

import "testing"

func TestErrorEnvelope_Error(t *testing.T) {
	err := NewNotFoundError("contract \"c1\" not found")
	want := "NOT_FOUND: contract \"c1\" not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConstructors_codes(t *testing.T) {
	tests := []struct {
		name string
		err  *ErrorEnvelope
		code string
	}{
		{"bad request", NewBadRequestError("x"), ErrBadRequest},
		{"not found", NewNotFoundError("x"), ErrNotFound},
		{"conflict", NewConflictError("x"), ErrConflict},
		{"internal", NewInternalError(), ErrInternalError},
		{"invalid status", NewInvalidStatusError("x"), ErrInvalidStatus},
		{"amount exceeded", NewAmountExceededError("x"), ErrAmountExceeded},
		{"already processed", NewAlreadyProcessedError("x"), ErrAlreadyProcessed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
		})
	}
}

func TestNewValidationError_details(t *testing.T) {
	err := NewValidationError([]FieldError{
		{Field: "amount", Code: "min", Message: "must be positive"},
	})
	if err.Code != ErrValidationError {
		t.Errorf("code = %s", err.Code)
	}
	if len(err.Details) != 1 || err.Details[0].Field != "amount" {
		t.Errorf("details = %+v", err.Details)
	}
}
