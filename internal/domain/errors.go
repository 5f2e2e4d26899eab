package domain

import "errors"

var (
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrMissingCancellationReason = errors.New("cancellation reason is required")
	ErrStaleVersion              = errors.New("order was modified concurrently")
	ErrBeforeMinimumLeadTime     = errors.New("pickup time is before the minimum lead time")
	ErrOutsideBusinessHours      = errors.New("pickup time is outside business hours")
	ErrDelivery                  = errors.New("notification delivery failed")

	ErrOrderNotFound       = errors.New("order not found")
	ErrUnknownStatus       = errors.New("unknown order status")
	ErrTimestampAlreadySet = errors.New("status timestamp already set")
	ErrAlreadyAcknowledged = errors.New("notification already acknowledged")
	ErrReminderNotDue      = errors.New("reminder not due")
	ErrNotReady            = errors.New("order is no longer ready for pickup")
	ErrSlotFull            = errors.New("pickup slot is full")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidSchedule     = errors.New("invalid schedule config")
)
