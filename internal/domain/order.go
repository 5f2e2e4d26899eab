package domain

import (
	"fmt"
	"strings"
	"time"
)

// Order is the aggregate root of the pickup lifecycle.
// Status and the fields derived from it change only through the Machine.
type Order struct {
	ID                   string
	Status               Status
	Customer             Customer
	PickupTime           time.Time
	EstimatedPrepMinutes int
	CancellationReason   *string
	Timestamps           StatusTimestamps
	NotificationSent     bool
	ReminderSent         bool
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Customer holds whatever contact details checkout collected.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// HasContact reports whether the customer can be reached at all.
func (c Customer) HasContact() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Phone) != ""
}

// StatusTimestamps records when each status was first entered. Every field is write-once.
type StatusTimestamps struct {
	ConfirmedAt        *time.Time
	StartedPreparingAt *time.Time
	ReadyAt            *time.Time
	PickedUpAt         *time.Time
	CancelledAt        *time.Time
}

func (ts *StatusTimestamps) field(status Status) **time.Time {
	switch status {
	case StatusConfirmed:
		return &ts.ConfirmedAt
	case StatusPreparing:
		return &ts.StartedPreparingAt
	case StatusReady:
		return &ts.ReadyAt
	case StatusPickedUp:
		return &ts.PickedUpAt
	case StatusCancelled:
		return &ts.CancelledAt
	default:
		return nil
	}
}

// Get returns when status was entered, if it was.
func (ts StatusTimestamps) Get(status Status) (time.Time, bool) {
	slot := ts.field(status)
	if slot == nil || *slot == nil {
		return time.Time{}, false
	}
	return **slot, true
}

func (ts *StatusTimestamps) stamp(status Status, at time.Time) error {
	slot := ts.field(status)
	if slot == nil {
		return nil
	}
	if *slot != nil {
		return fmt.Errorf("%w: %s", ErrTimestampAlreadySet, status)
	}
	t := at
	*slot = &t
	return nil
}

// NewOrderParams is everything checkout knows when it creates an order.
type NewOrderParams struct {
	ID                   string
	Customer             Customer
	PickupTime           time.Time
	EstimatedPrepMinutes int
	Actor                *string
	Notes                string
}

// NewOrder creates a pending order together with its creation history entry.
func NewOrder(p NewOrderParams, now time.Time) (Order, HistoryEntry, error) {
	order := Order{
		ID:                   p.ID,
		Status:               StatusPending,
		Customer:             p.Customer,
		PickupTime:           p.PickupTime,
		EstimatedPrepMinutes: p.EstimatedPrepMinutes,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	order.Customer.Name = strings.TrimSpace(order.Customer.Name)

	if err := order.Validate(); err != nil {
		return Order{}, HistoryEntry{}, err
	}

	entry := HistoryEntry{
		OrderID:    order.ID,
		OldStatus:  nil,
		NewStatus:  StatusPending,
		Actor:      p.Actor,
		Notes:      p.Notes,
		OccurredAt: now,
	}

	return order, entry, nil
}

// Validate applies business validation rules
func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidOrder)
	}

	if len(o.Customer.Name) < 1 || len(o.Customer.Name) > 100 {
		return fmt.Errorf("%w: customer name must be 1-100 characters", ErrInvalidOrder)
	}

	if o.Customer.Email != "" && !strings.Contains(o.Customer.Email, "@") {
		return fmt.Errorf("%w: customer email is malformed", ErrInvalidOrder)
	}

	if o.PickupTime.IsZero() {
		return fmt.Errorf("%w: pickup time is required", ErrInvalidOrder)
	}

	if o.EstimatedPrepMinutes < 0 {
		return fmt.Errorf("%w: estimated prep minutes must not be negative", ErrInvalidOrder)
	}

	if !o.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, o.Status)
	}

	return nil
}
