package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/pickup/internal/domain"
)

// Сообщения RabbitMQ
type NotificationMessage struct {
	Kind       domain.EffectKind `json:"kind"`
	OrderID    string            `json:"order_id"`
	Recipient  Recipient         `json:"recipient"`
	Status     domain.Status     `json:"status"`
	PickupTime time.Time         `json:"pickup_time"`
	Reason     string            `json:"reason,omitempty"`
	Message    string            `json:"message"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func NewNotificationMessage(effect domain.OutboundEffect) NotificationMessage {
	return NotificationMessage{
		Kind:    effect.Kind,
		OrderID: effect.OrderID,
		Recipient: Recipient{
			Name:  effect.Recipient.Name,
			Email: effect.Recipient.Email,
			Phone: effect.Recipient.Phone,
		},
		Status:     effect.Payload.Status,
		PickupTime: effect.Payload.PickupTime,
		Reason:     effect.Payload.Reason,
		Message:    effect.Payload.Message,
		OccurredAt: effect.Payload.OccurredAt,
	}
}

// NotificationGateway performs delivery of outbound effects. Failures wrap domain.ErrDelivery.
type NotificationGateway interface {
	Send(ctx context.Context, effect domain.OutboundEffect) error
}

type NotificationConsumer interface {
	ConsumeNotifications(ctx context.Context, handler NotificationHandler) error
}

type NotificationHandler func(ctx context.Context, body []byte) error
