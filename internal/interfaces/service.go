package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/pickup/internal/domain"
)

// Команды для сервисов
type CheckoutCommand struct {
	CustomerName string
	Email        string
	Phone        string
	PickupTime   time.Time
	Actor        *string
	Notes        string
}

type TransitionCommand struct {
	OrderID            string
	Target             domain.Status
	Actor              *string
	Notes              string
	CancellationReason string
	// ExpectedVersion pins the caller's view of the order. When set, a mismatch fails
	// with domain.ErrStaleVersion instead of being retried.
	ExpectedVersion *int64
}

type TransitionOutcome struct {
	Order            domain.Order
	Entry            domain.HistoryEntry
	Effects          []domain.OutboundEffect
	DeliveryFailures []DeliveryFailure
}

type DeliveryFailure struct {
	Kind  domain.EffectKind
	Error string
}

// Интерфейсы Сервисов (Business Logic)
type CheckoutService interface {
	AvailableSlots(ctx context.Context) ([]domain.TimeSlot, error)
	CreateOrder(ctx context.Context, cmd CheckoutCommand) (domain.Order, error)
}

type LifecycleService interface {
	AllowedTransitions(ctx context.Context, orderID string) (domain.Order, []domain.Status, error)
	Transition(ctx context.Context, cmd TransitionCommand) (*TransitionOutcome, error)
}

type TrackingService interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error)
}
