package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/YelzhanWeb/pickup/internal/clock"
)

// Machine applies transitions to order snapshots. It holds no order state and never
// does I/O; persisting the result is the caller's job.
type Machine struct {
	clock    clock.Clock
	notifyOn map[Status]EffectKind
}

type MachineOption func(*Machine)

// WithNotifyOn also emits a notification when an order enters confirmed or preparing.
// Other statuses are ignored: ready and cancelled always have their own rules.
func WithNotifyOn(statuses ...Status) MachineOption {
	return func(m *Machine) {
		for _, s := range statuses {
			switch s {
			case StatusConfirmed:
				m.notifyOn[s] = EffectConfirmed
			case StatusPreparing:
				m.notifyOn[s] = EffectPreparing
			}
		}
	}
}

func NewMachine(clk clock.Clock, opts ...MachineOption) *Machine {
	m := &Machine{
		clock:    clk,
		notifyOn: make(map[Status]EffectKind),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now exposes the machine's clock so callers stamp creation with the same source.
func (m *Machine) Now() time.Time {
	return m.clock.Now()
}

// AllowedTransitions returns the statuses directly reachable from the order's status.
func (m *Machine) AllowedTransitions(order Order) []Status {
	return order.Status.Next()
}

type TransitionRequest struct {
	Target             Status
	Actor              *string
	Notes              string
	CancellationReason string
}

type TransitionResult struct {
	Order   Order
	Entry   HistoryEntry
	Effects []OutboundEffect
}

// ApplyTransition validates req against the graph and returns the next snapshot.
// The input order is never modified.
func (m *Machine) ApplyTransition(order Order, req TransitionRequest) (TransitionResult, error) {
	if !order.Status.CanTransitionTo(req.Target) {
		return TransitionResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, req.Target)
	}

	reason := strings.TrimSpace(req.CancellationReason)
	if req.Target == StatusCancelled && reason == "" {
		return TransitionResult{}, ErrMissingCancellationReason
	}

	now := m.clock.Now()
	next := order

	if err := next.Timestamps.stamp(req.Target, now); err != nil {
		return TransitionResult{}, err
	}

	old := order.Status
	next.Status = req.Target
	next.Version = order.Version + 1
	next.UpdatedAt = now
	if req.Target == StatusCancelled {
		next.CancellationReason = &reason
	}

	entry := HistoryEntry{
		OrderID:    order.ID,
		OldStatus:  &old,
		NewStatus:  req.Target,
		Actor:      req.Actor,
		Notes:      req.Notes,
		OccurredAt: now,
	}

	return TransitionResult{
		Order:   next,
		Entry:   entry,
		Effects: m.effects(next, now),
	}, nil
}

func (m *Machine) effects(order Order, now time.Time) []OutboundEffect {
	switch order.Status {
	case StatusReady:
		return []OutboundEffect{effectFor(EffectReady, order, now)}
	case StatusCancelled:
		if order.Customer.HasContact() {
			return []OutboundEffect{effectFor(EffectCancelled, order, now)}
		}
		return nil
	}

	if kind, ok := m.notifyOn[order.Status]; ok {
		return []OutboundEffect{effectFor(kind, order, now)}
	}
	return nil
}

// ReminderDue reports whether a ready order has waited longer than threshold without a reminder.
func (m *Machine) ReminderDue(order Order, threshold time.Duration) bool {
	if order.Status != StatusReady || order.ReminderSent {
		return false
	}
	readyAt, ok := order.Timestamps.Get(StatusReady)
	if !ok {
		return false
	}
	return readyAt.Before(m.clock.Now().Add(-threshold))
}

// Reminder builds the reminder effect for an order that is due one.
// It does not change the order; ReminderSent flips on acknowledgment.
func (m *Machine) Reminder(order Order, threshold time.Duration) (OutboundEffect, error) {
	if !m.ReminderDue(order, threshold) {
		return OutboundEffect{}, fmt.Errorf("%w: order %s", ErrReminderNotDue, order.ID)
	}
	return effectFor(EffectReminder, order, m.clock.Now()), nil
}

// Acknowledge records that the gateway accepted an effect. Ready and reminder effects
// flip their flag exactly once and bump the version; other kinds leave the order as is.
// A reminder is only recorded while the order is still ready.
func (m *Machine) Acknowledge(order Order, kind EffectKind) (Order, error) {
	next := order

	switch kind {
	case EffectReady:
		if order.NotificationSent {
			return order, ErrAlreadyAcknowledged
		}
		next.NotificationSent = true
	case EffectReminder:
		if order.ReminderSent {
			return order, ErrAlreadyAcknowledged
		}
		if order.Status != StatusReady {
			return order, fmt.Errorf("%w: order %s is %s", ErrNotReady, order.ID, order.Status)
		}
		next.ReminderSent = true
	default:
		return order, nil
	}

	next.Version = order.Version + 1
	next.UpdatedAt = m.clock.Now()
	return next, nil
}
