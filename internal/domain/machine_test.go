package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/pickup/internal/clock"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func newTestOrder(t *testing.T, status Status) Order {
	t.Helper()

	order, _, err := NewOrder(NewOrderParams{
		ID:                   "order-1",
		Customer:             Customer{Name: "Dana", Email: "dana@example.com"},
		PickupTime:           testNow.Add(45 * time.Minute),
		EstimatedPrepMinutes: 30,
	}, testNow)
	require.NoError(t, err)

	// walk the graph so timestamps match a real history
	m := NewMachine(clock.NewFixed(testNow))
	path := map[Status][]Status{
		StatusPending:   {},
		StatusConfirmed: {StatusConfirmed},
		StatusPreparing: {StatusConfirmed, StatusPreparing},
		StatusReady:     {StatusConfirmed, StatusPreparing, StatusReady},
		StatusPickedUp:  {StatusConfirmed, StatusPreparing, StatusReady, StatusPickedUp},
		StatusCancelled: {StatusCancelled},
	}
	for _, s := range path[status] {
		res, err := m.ApplyTransition(order, TransitionRequest{Target: s, CancellationReason: "test"})
		require.NoError(t, err)
		order = res.Order
	}
	return order
}

func ptr[T any](v T) *T {
	return &v
}

func TestMachine_AllowedTransitions(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))

	tests := []struct {
		status   Status
		expected []Status
	}{
		{StatusPending, []Status{StatusConfirmed, StatusCancelled}},
		{StatusConfirmed, []Status{StatusPreparing, StatusCancelled}},
		{StatusPreparing, []Status{StatusReady, StatusCancelled}},
		{StatusReady, []Status{StatusPickedUp, StatusCancelled}},
		{StatusPickedUp, []Status{}},
		{StatusCancelled, []Status{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := m.AllowedTransitions(Order{Status: tt.status})
			assert.ElementsMatch(t, tt.expected, got)
		})
	}
}

func TestMachine_ApplyTransition_RejectsEdgesOutsideGraph(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))

	for _, from := range Statuses() {
		for _, to := range Statuses() {
			if from.CanTransitionTo(to) {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				order := newTestOrder(t, from)
				before := order

				_, err := m.ApplyTransition(order, TransitionRequest{Target: to, CancellationReason: "changed mind"})
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, before, order)
				assert.Equal(t, before.Version, order.Version)
			})
		}
	}
}

func TestMachine_ApplyTransition_ForwardEdges(t *testing.T) {
	later := testNow.Add(10 * time.Minute)
	m := NewMachine(clock.NewFixed(later))

	for _, from := range Statuses() {
		for _, to := range from.Next() {
			if to == StatusCancelled {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				order := newTestOrder(t, from)

				res, err := m.ApplyTransition(order, TransitionRequest{Target: to, Actor: ptr("staff-7")})
				require.NoError(t, err)

				assert.Equal(t, to, res.Order.Status)
				assert.Equal(t, order.Version+1, res.Order.Version)

				stamped, ok := res.Order.Timestamps.Get(to)
				require.True(t, ok)
				assert.Equal(t, later, stamped)
				_, wasSet := order.Timestamps.Get(to)
				assert.False(t, wasSet, "input snapshot must not be stamped")

				require.NotNil(t, res.Entry.OldStatus)
				assert.Equal(t, from, *res.Entry.OldStatus)
				assert.Equal(t, to, res.Entry.NewStatus)
				assert.Equal(t, "staff-7", *res.Entry.Actor)
				assert.Equal(t, later, res.Entry.OccurredAt)
			})
		}
	}
}

func TestMachine_ApplyTransition_PendingToPreparingIsInvalid(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))
	order := newTestOrder(t, StatusPending)

	_, err := m.ApplyTransition(order, TransitionRequest{Target: StatusPreparing})

	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMachine_ApplyTransition_Cancel(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))

	nonTerminal := []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady}

	for _, from := range nonTerminal {
		t.Run(string(from)+" without reason", func(t *testing.T) {
			order := newTestOrder(t, from)

			for _, reason := range []string{"", "   ", "\t\n"} {
				_, err := m.ApplyTransition(order, TransitionRequest{Target: StatusCancelled, CancellationReason: reason})
				require.ErrorIs(t, err, ErrMissingCancellationReason)
			}
		})

		t.Run(string(from)+" with reason", func(t *testing.T) {
			order := newTestOrder(t, from)

			res, err := m.ApplyTransition(order, TransitionRequest{
				Target:             StatusCancelled,
				Actor:              ptr("staff-1"),
				CancellationReason: "  customer called  ",
			})
			require.NoError(t, err)

			assert.Equal(t, StatusCancelled, res.Order.Status)
			require.NotNil(t, res.Order.CancellationReason)
			assert.Equal(t, "customer called", *res.Order.CancellationReason)
			require.NotNil(t, res.Order.Timestamps.CancelledAt)
			assert.Nil(t, order.CancellationReason)

			require.Len(t, res.Effects, 1)
			assert.Equal(t, EffectCancelled, res.Effects[0].Kind)
			assert.Equal(t, "customer called", res.Effects[0].Payload.Reason)
		})
	}
}

func TestMachine_ApplyTransition_CancelWithoutContactHasNoEffect(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))
	order := newTestOrder(t, StatusConfirmed)
	order.Customer = Customer{Name: "Walk In"}

	res, err := m.ApplyTransition(order, TransitionRequest{Target: StatusCancelled, CancellationReason: "no show"})

	require.NoError(t, err)
	assert.Empty(t, res.Effects)
}

func TestMachine_ApplyTransition_Effects(t *testing.T) {
	t.Run("ready always notifies", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow))
		order := newTestOrder(t, StatusPreparing)
		order.Customer = Customer{Name: "No Contact"}

		res, err := m.ApplyTransition(order, TransitionRequest{Target: StatusReady})
		require.NoError(t, err)

		require.Len(t, res.Effects, 1)
		assert.Equal(t, EffectReady, res.Effects[0].Kind)
		assert.Equal(t, order.ID, res.Effects[0].OrderID)
		assert.Equal(t, StatusReady, res.Effects[0].Payload.Status)
	})

	t.Run("picked up emits nothing", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow))
		order := newTestOrder(t, StatusReady)

		res, err := m.ApplyTransition(order, TransitionRequest{Target: StatusPickedUp, Actor: ptr("staff-2")})
		require.NoError(t, err)

		assert.Empty(t, res.Effects)
		assert.NotNil(t, res.Order.Timestamps.PickedUpAt)
	})

	t.Run("confirmed and preparing are silent by default", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow))

		res, err := m.ApplyTransition(newTestOrder(t, StatusPending), TransitionRequest{Target: StatusConfirmed})
		require.NoError(t, err)
		assert.Empty(t, res.Effects)

		res, err = m.ApplyTransition(res.Order, TransitionRequest{Target: StatusPreparing})
		require.NoError(t, err)
		assert.Empty(t, res.Effects)
	})

	t.Run("notify hook adds confirmed and preparing", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow), WithNotifyOn(StatusConfirmed, StatusPreparing, StatusPickedUp))

		res, err := m.ApplyTransition(newTestOrder(t, StatusPending), TransitionRequest{Target: StatusConfirmed})
		require.NoError(t, err)
		require.Len(t, res.Effects, 1)
		assert.Equal(t, EffectConfirmed, res.Effects[0].Kind)

		res, err = m.ApplyTransition(res.Order, TransitionRequest{Target: StatusPreparing})
		require.NoError(t, err)
		require.Len(t, res.Effects, 1)
		assert.Equal(t, EffectPreparing, res.Effects[0].Kind)

		res, err = m.ApplyTransition(newTestOrder(t, StatusReady), TransitionRequest{Target: StatusPickedUp})
		require.NoError(t, err)
		assert.Empty(t, res.Effects)
	})
}

func TestMachine_ApplyTransition_TimestampIsWriteOnce(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))
	order := newTestOrder(t, StatusPending)
	stale := testNow.Add(-time.Hour)
	order.Timestamps.ConfirmedAt = &stale

	_, err := m.ApplyTransition(order, TransitionRequest{Target: StatusConfirmed})

	require.ErrorIs(t, err, ErrTimestampAlreadySet)
	assert.Equal(t, stale, *order.Timestamps.ConfirmedAt)
}

func TestMachine_Reminder(t *testing.T) {
	threshold := 10 * time.Minute
	order := newTestOrder(t, StatusReady)

	t.Run("not due before threshold", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow.Add(threshold)))

		_, err := m.Reminder(order, threshold)
		assert.True(t, errors.Is(err, ErrReminderNotDue))
	})

	t.Run("due after threshold", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow.Add(threshold + time.Second)))

		effect, err := m.Reminder(order, threshold)
		require.NoError(t, err)
		assert.Equal(t, EffectReminder, effect.Kind)
		assert.Equal(t, order.ID, effect.OrderID)
	})

	t.Run("not due once sent", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow.Add(time.Hour)))
		sent := order
		sent.ReminderSent = true

		assert.False(t, m.ReminderDue(sent, threshold))
	})

	t.Run("not due outside ready", func(t *testing.T) {
		m := NewMachine(clock.NewFixed(testNow.Add(time.Hour)))

		assert.False(t, m.ReminderDue(newTestOrder(t, StatusPickedUp), threshold))
	})
}

func TestMachine_Acknowledge(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))
	order := newTestOrder(t, StatusReady)

	acked, err := m.Acknowledge(order, EffectReady)
	require.NoError(t, err)
	assert.True(t, acked.NotificationSent)
	assert.Equal(t, order.Version+1, acked.Version)
	assert.Equal(t, StatusReady, acked.Status)

	_, err = m.Acknowledge(acked, EffectReady)
	require.ErrorIs(t, err, ErrAlreadyAcknowledged)

	reminded, err := m.Acknowledge(acked, EffectReminder)
	require.NoError(t, err)
	assert.True(t, reminded.ReminderSent)
	assert.Equal(t, acked.Version+1, reminded.Version)

	same, err := m.Acknowledge(reminded, EffectCancelled)
	require.NoError(t, err)
	assert.Equal(t, reminded, same)
}

func TestMachine_Acknowledge_ReminderRequiresReady(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))

	for _, status := range []Status{StatusPickedUp, StatusCancelled} {
		order := newTestOrder(t, status)

		same, err := m.Acknowledge(order, EffectReminder)
		require.ErrorIs(t, err, ErrNotReady, status)
		assert.False(t, same.ReminderSent)
		assert.Equal(t, order.Version, same.Version)
	}

	acked, err := m.Acknowledge(newTestOrder(t, StatusPickedUp), EffectReady)
	require.NoError(t, err)
	assert.True(t, acked.NotificationSent)
}

func TestNewOrder(t *testing.T) {
	order, entry, err := NewOrder(NewOrderParams{
		ID:                   "order-9",
		Customer:             Customer{Name: "  Aigerim  ", Phone: "+77010000000"},
		PickupTime:           testNow.Add(time.Hour),
		EstimatedPrepMinutes: 20,
	}, testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, "Aigerim", order.Customer.Name)
	assert.Equal(t, int64(1), order.Version)
	assert.True(t, entry.IsCreation())
	assert.Nil(t, entry.Actor)
	assert.Equal(t, StatusPending, entry.NewStatus)

	_, _, err = NewOrder(NewOrderParams{ID: "order-10", Customer: Customer{Name: ""}, PickupTime: testNow}, testNow)
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, _, err = NewOrder(NewOrderParams{ID: "order-11", Customer: Customer{Name: "A"}}, testNow)
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestVerifyHistory(t *testing.T) {
	m := NewMachine(clock.NewFixed(testNow))
	order, created, err := NewOrder(NewOrderParams{
		ID:         "order-1",
		Customer:   Customer{Name: "Dana"},
		PickupTime: testNow.Add(time.Hour),
	}, testNow)
	require.NoError(t, err)

	history := []HistoryEntry{created}
	for _, s := range []Status{StatusConfirmed, StatusPreparing, StatusReady, StatusPickedUp} {
		res, err := m.ApplyTransition(order, TransitionRequest{Target: s})
		require.NoError(t, err)
		order = res.Order
		history = append(history, res.Entry)
	}

	require.NoError(t, VerifyHistory(history))

	broken := append([]HistoryEntry{}, history[0], history[2])
	assert.ErrorIs(t, VerifyHistory(broken), ErrInvalidTransition)
}
