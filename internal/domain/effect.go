package domain

import (
	"fmt"
	"time"
)

type EffectKind string

const (
	EffectReady     EffectKind = "ready"
	EffectCancelled EffectKind = "cancelled"
	EffectReminder  EffectKind = "reminder"
	EffectConfirmed EffectKind = "confirmed"
	EffectPreparing EffectKind = "preparing"
)

// TracksDelivery reports whether acknowledging the effect flips a flag on the order.
func (k EffectKind) TracksDelivery() bool {
	return k == EffectReady || k == EffectReminder
}

// OutboundEffect is a notification request. The engine decides that it must fire;
// a NotificationGateway decides how.
type OutboundEffect struct {
	Kind      EffectKind
	OrderID   string
	Recipient Customer
	Payload   NotificationPayload
}

type NotificationPayload struct {
	Status     Status
	PickupTime time.Time
	Reason     string
	Message    string
	OccurredAt time.Time
}

func effectFor(kind EffectKind, order Order, now time.Time) OutboundEffect {
	payload := NotificationPayload{
		Status:     order.Status,
		PickupTime: order.PickupTime,
		OccurredAt: now,
	}

	pickup := order.PickupTime.Format("3:04 PM")
	switch kind {
	case EffectReady:
		payload.Message = fmt.Sprintf("Order %s is ready for pickup.", order.ID)
	case EffectReminder:
		payload.Message = fmt.Sprintf("Order %s is still waiting for you at the counter.", order.ID)
	case EffectCancelled:
		if order.CancellationReason != nil {
			payload.Reason = *order.CancellationReason
		}
		payload.Message = fmt.Sprintf("Order %s was cancelled: %s", order.ID, payload.Reason)
	case EffectConfirmed:
		payload.Message = fmt.Sprintf("Order %s is confirmed for pickup at %s.", order.ID, pickup)
	case EffectPreparing:
		payload.Message = fmt.Sprintf("Order %s is being prepared for %s.", order.ID, pickup)
	}

	return OutboundEffect{
		Kind:      kind,
		OrderID:   order.ID,
		Recipient: order.Customer,
		Payload:   payload,
	}
}
