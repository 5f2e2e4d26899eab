package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

type OrderHandler struct {
	service interfaces.CheckoutService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.CheckoutService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

type CreateOrderRequest struct {
	CustomerName string  `json:"customer_name"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	PickupTime   string  `json:"pickup_time"`
	Actor        *string `json:"actor,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

func (h *OrderHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.service.AvailableSlots(r.Context())
	if err != nil {
		h.logger.Error("slots_failed", "Failed to list slots", requestIDFrom(r.Context()), nil, err)
		respondServiceError(w, err)
		return
	}

	resp := make([]SlotResponse, len(slots))
	for i, s := range slots {
		resp[i] = SlotResponse{Time: s.Time, Label: s.Label, Available: s.Available}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", "invalid_body", http.StatusBadRequest, nil)
		return
	}

	pickup, validationErrors := validateCreateOrderRequest(req)
	if len(validationErrors) > 0 {
		h.logger.Debug("validation_failed", "Order request validation failed", requestID, map[string]interface{}{
			"errors": validationErrors,
		})
		respondError(w, "Validation failed", "validation_failed", http.StatusBadRequest, validationErrors)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), interfaces.CheckoutCommand{
		CustomerName: strings.TrimSpace(req.CustomerName),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		PickupTime:   pickup,
		Actor:        req.Actor,
		Notes:        req.Notes,
	})
	if err != nil {
		h.logger.Debug("order_creation_failed", err.Error(), requestID, nil)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, newOrderResponse(order))
}

func validateCreateOrderRequest(req CreateOrderRequest) (time.Time, []ValidationError) {
	var errs []ValidationError

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		errs = append(errs, ValidationError{Field: "customer_name", Message: "customer name is required"})
	} else if len([]rune(name)) > 100 {
		errs = append(errs, ValidationError{Field: "customer_name", Message: "customer name must not exceed 100 characters"})
	}

	if email := strings.TrimSpace(req.Email); email != "" && !strings.Contains(email, "@") {
		errs = append(errs, ValidationError{Field: "email", Message: "email must contain @"})
	}

	var pickup time.Time
	if req.PickupTime == "" {
		errs = append(errs, ValidationError{Field: "pickup_time", Message: "pickup time is required"})
	} else {
		t, err := time.Parse(time.RFC3339, req.PickupTime)
		if err != nil {
			errs = append(errs, ValidationError{Field: "pickup_time", Message: "pickup time must be RFC 3339"})
		}
		pickup = t
	}

	return pickup, errs
}
