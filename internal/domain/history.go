package domain

import "time"

// HistoryEntry is one append-only audit record of a status change.
// OldStatus is nil for the creation entry; Actor is nil for system-triggered changes.
type HistoryEntry struct {
	ID         int64
	OrderID    string
	OldStatus  *Status
	NewStatus  Status
	Actor      *string
	Notes      string
	OccurredAt time.Time
}

// IsCreation reports whether the entry records the order being created.
func (e HistoryEntry) IsCreation() bool {
	return e.OldStatus == nil
}

// VerifyHistory checks that entries form an unbroken, time-ordered walk over the transition graph
// starting at creation.
func VerifyHistory(entries []HistoryEntry) error {
	for i, e := range entries {
		if i == 0 {
			if !e.IsCreation() || e.NewStatus != StatusPending {
				return ErrInvalidTransition
			}
			continue
		}

		prev := entries[i-1]
		if e.OldStatus == nil || *e.OldStatus != prev.NewStatus {
			return ErrInvalidTransition
		}
		if !prev.NewStatus.CanTransitionTo(e.NewStatus) {
			return ErrInvalidTransition
		}
		if e.OccurredAt.Before(prev.OccurredAt) {
			return ErrInvalidTransition
		}
	}
	return nil
}
