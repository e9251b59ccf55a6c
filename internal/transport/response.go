// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the orchestration API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/motorent/rentord/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:       http.StatusBadRequest,
	model.ErrNotFound:         http.StatusNotFound,
	model.ErrConflict:         http.StatusConflict,
	model.ErrValidationError:  http.StatusUnprocessableEntity,
	model.ErrInvalidStatus:    http.StatusUnprocessableEntity,
	model.ErrAmountExceeded:   http.StatusUnprocessableEntity,
	model.ErrAlreadyProcessed: http.StatusConflict,
	model.ErrSagaStepFailed:   http.StatusInternalServerError,
	model.ErrStoreUnavailable: http.StatusServiceUnavailable,
	model.ErrInternalError:    http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. If err is not an *ErrorEnvelope, a generic 500 is
// returned.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// DecodeJSON decodes a request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewBadRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

// WriteResult writes an OrchestrationResult. A failed saga is still a
// well-formed response: callers treat success=false as the only failure
// signal, so the status code reflects whether the request itself was
// processed.
func WriteResult(w http.ResponseWriter, result model.OrchestrationResult) {
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	WriteJSON(w, status, result)
}
