package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

type TransitionHandler struct {
	service interfaces.LifecycleService
	logger  logger.Logger
}

func NewTransitionHandler(service interfaces.LifecycleService, logger logger.Logger) *TransitionHandler {
	return &TransitionHandler{
		service: service,
		logger:  logger,
	}
}

type TransitionRequest struct {
	Target             string  `json:"target"`
	Actor              *string `json:"actor,omitempty"`
	Notes              string  `json:"notes,omitempty"`
	CancellationReason string  `json:"cancellation_reason,omitempty"`
	ExpectedVersion    *int64  `json:"expected_version,omitempty"`
}

type AllowedTransitionsResponse struct {
	OrderID string          `json:"order_id"`
	Status  domain.Status   `json:"status"`
	Version int64           `json:"version"`
	Allowed []domain.Status `json:"allowed"`
}

func (h *TransitionHandler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	order, allowed, err := h.service.AllowedTransitions(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if allowed == nil {
		allowed = []domain.Status{}
	}
	respondJSON(w, http.StatusOK, AllowedTransitionsResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Version: order.Version,
		Allowed: allowed,
	})
}

func (h *TransitionHandler) Transition(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	orderID := r.PathValue("id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", "invalid_body", http.StatusBadRequest, nil)
		return
	}

	target, err := domain.ParseStatus(req.Target)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out, err := h.service.Transition(r.Context(), interfaces.TransitionCommand{
		OrderID:            orderID,
		Target:             target,
		Actor:              req.Actor,
		Notes:              req.Notes,
		CancellationReason: req.CancellationReason,
		ExpectedVersion:    req.ExpectedVersion,
	})
	if err != nil {
		h.logger.Debug("transition_failed", err.Error(), requestID, map[string]interface{}{
			"order_id": orderID,
			"target":   target,
		})
		respondServiceError(w, err)
		return
	}

	if len(out.DeliveryFailures) > 0 {
		h.logger.Warn("transition_delivery_degraded", fmt.Sprintf("%d notification(s) not delivered", len(out.DeliveryFailures)), requestID, map[string]interface{}{
			"order_id": orderID,
		})
	}

	respondJSON(w, http.StatusOK, newTransitionResponse(out))
}
