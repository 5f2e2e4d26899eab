package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YelzhanWeb/pickup/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrStaleVersion, http.StatusConflict, "stale_version"},
	{domain.ErrSlotFull, http.StatusConflict, "slot_full"},
	{domain.ErrMissingCancellationReason, http.StatusUnprocessableEntity, "missing_cancellation_reason"},
	{domain.ErrBeforeMinimumLeadTime, http.StatusUnprocessableEntity, "before_minimum_lead_time"},
	{domain.ErrOutsideBusinessHours, http.StatusUnprocessableEntity, "outside_business_hours"},
	{domain.ErrInvalidOrder, http.StatusUnprocessableEntity, "invalid_order"},
	{domain.ErrUnknownStatus, http.StatusBadRequest, "unknown_status"},
}

// statusFor maps a service error to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, message, code string, statusCode int, validationErrors []ValidationError) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:  message,
		Code:   code,
		Errors: validationErrors,
	})
}

// respondServiceError writes err using statusFor. Internal errors are not echoed.
func respondServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	respondError(w, message, code, status, nil)
}
