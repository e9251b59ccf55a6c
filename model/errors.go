package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest       = "BAD_REQUEST"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrValidationError  = "VALIDATION_ERROR"
	ErrInternalError    = "INTERNAL_ERROR"
	ErrStoreUnavailable = "STORE_UNAVAILABLE"
)

// Saga-specific error codes.
const (
	ErrSagaStepFailed   = "SAGA_STEP_FAILED"
	ErrInvalidStatus    = "INVALID_STATUS"
	ErrAmountExceeded   = "AMOUNT_EXCEEDED"
	ErrAlreadyProcessed = "ALREADY_PROCESSED"
)

// ErrorEnvelope is the standard error value returned by stores and
// orchestration steps. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewInvalidStatusError returns an INVALID_STATUS error. Used by validation
// steps when an entity is not in the status the transition requires.
func NewInvalidStatusError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidStatus, Message: msg}
}

// NewAmountExceededError returns an AMOUNT_EXCEEDED error.
func NewAmountExceededError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrAmountExceeded, Message: msg}
}

// NewAlreadyProcessedError returns an ALREADY_PROCESSED error.
func NewAlreadyProcessedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrAlreadyProcessed, Message: msg}
}
