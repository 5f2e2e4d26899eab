package http

import (
	"time"

	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

type CustomerResponse struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type OrderResponse struct {
	ID                   string               `json:"id"`
	Status               domain.Status        `json:"status"`
	Customer             CustomerResponse     `json:"customer"`
	PickupTime           time.Time            `json:"pickup_time"`
	EstimatedPrepMinutes int                  `json:"estimated_prep_minutes"`
	CancellationReason   *string              `json:"cancellation_reason,omitempty"`
	Timestamps           map[string]time.Time `json:"timestamps"`
	NotificationSent     bool                 `json:"notification_sent"`
	ReminderSent         bool                 `json:"reminder_sent"`
	Version              int64                `json:"version"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func newOrderResponse(o domain.Order) OrderResponse {
	timestamps := make(map[string]time.Time)
	for _, s := range domain.Statuses() {
		if at, ok := o.Timestamps.Get(s); ok {
			timestamps[string(s)] = at
		}
	}

	return OrderResponse{
		ID:     o.ID,
		Status: o.Status,
		Customer: CustomerResponse{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
		},
		PickupTime:           o.PickupTime,
		EstimatedPrepMinutes: o.EstimatedPrepMinutes,
		CancellationReason:   o.CancellationReason,
		Timestamps:           timestamps,
		NotificationSent:     o.NotificationSent,
		ReminderSent:         o.ReminderSent,
		Version:              o.Version,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

type HistoryEntryResponse struct {
	ID         int64          `json:"id"`
	OldStatus  *domain.Status `json:"old_status"`
	NewStatus  domain.Status  `json:"new_status"`
	Actor      *string        `json:"actor,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func newHistoryResponse(entries []domain.HistoryEntry) []HistoryEntryResponse {
	resp := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = HistoryEntryResponse{
			ID:         e.ID,
			OldStatus:  e.OldStatus,
			NewStatus:  e.NewStatus,
			Actor:      e.Actor,
			Notes:      e.Notes,
			OccurredAt: e.OccurredAt,
		}
	}
	return resp
}

type SlotResponse struct {
	Time      time.Time `json:"time"`
	Label     string    `json:"label"`
	Available bool      `json:"available"`
}

type EffectResponse struct {
	Kind      domain.EffectKind `json:"kind"`
	Recipient string            `json:"recipient"`
	Message   string            `json:"message"`
}

type DeliveryFailureResponse struct {
	Kind  domain.EffectKind `json:"kind"`
	Error string            `json:"error"`
}

type TransitionResponse struct {
	Order            OrderResponse             `json:"order"`
	Entry            HistoryEntryResponse      `json:"entry"`
	Effects          []EffectResponse          `json:"effects"`
	DeliveryFailures []DeliveryFailureResponse `json:"delivery_failures,omitempty"`
}

func newTransitionResponse(out *interfaces.TransitionOutcome) TransitionResponse {
	resp := TransitionResponse{
		Order:   newOrderResponse(out.Order),
		Entry:   newHistoryResponse([]domain.HistoryEntry{out.Entry})[0],
		Effects: make([]EffectResponse, len(out.Effects)),
	}
	for i, e := range out.Effects {
		resp.Effects[i] = EffectResponse{
			Kind:      e.Kind,
			Recipient: e.Recipient.Name,
			Message:   e.Payload.Message,
		}
	}
	for _, f := range out.DeliveryFailures {
		resp.DeliveryFailures = append(resp.DeliveryFailures, DeliveryFailureResponse{Kind: f.Kind, Error: f.Error})
	}
	return resp
}
