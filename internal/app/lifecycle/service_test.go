package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/adapter/memory"
	"github.com/YelzhanWeb/pickup/internal/clock"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu   sync.Mutex
	sent []domain.OutboundEffect
	err  error
}

func (g *fakeGateway) Send(_ context.Context, effect domain.OutboundEffect) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, g.err)
	}
	g.sent = append(g.sent, effect)
	return nil
}

// racingRepo lets another writer commit right before the first compare-and-swap.
type racingRepo struct {
	*memory.OrderRepository
	once  sync.Once
	other func()
}

func (r *racingRepo) CompareAndSwap(ctx context.Context, id string, expected int64, order domain.Order, entry *domain.HistoryEntry) error {
	r.once.Do(r.other)
	return r.OrderRepository.CompareAndSwap(ctx, id, expected, order, entry)
}

func seedOrder(t *testing.T, repo interfaces.OrderRepository, customer domain.Customer) domain.Order {
	t.Helper()
	order, entry, err := domain.NewOrder(domain.NewOrderParams{
		ID:         "order-1",
		Customer:   customer,
		PickupTime: now.Add(time.Hour),
	}, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), order, entry, 0))
	return order
}

func staff(id string) *string {
	return &id
}

func newService(repo interfaces.OrderRepository, gw interfaces.NotificationGateway) *Service {
	return NewService(repo, gw, domain.NewMachine(clock.NewFixed(now)), logger.Nop(), 3)
}

func TestService_Transition_HappyPath(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	gw := &fakeGateway{}
	svc := newService(repo, gw)
	order := seedOrder(t, repo, domain.Customer{Name: "Dana", Email: "dana@example.com"})

	for _, target := range []domain.Status{domain.StatusConfirmed, domain.StatusPreparing} {
		out, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: target, Actor: staff("s-1")})
		require.NoError(t, err)
		assert.Equal(t, target, out.Order.Status)
		assert.Empty(t, out.Effects)
	}
	assert.Empty(t, gw.sent)

	out, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusReady, Actor: staff("s-1")})
	require.NoError(t, err)
	require.Len(t, out.Effects, 1)
	assert.Empty(t, out.DeliveryFailures)
	require.Len(t, gw.sent, 1)
	assert.Equal(t, domain.EffectReady, gw.sent[0].Kind)

	stored, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
	assert.Equal(t, int64(5), stored.Version, "three transitions plus one acknowledgment")
	assert.Equal(t, stored, out.Order)

	out, err = svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusPickedUp, Actor: staff("s-2")})
	require.NoError(t, err)
	assert.Empty(t, out.Effects)
	assert.NotNil(t, out.Order.Timestamps.PickedUpAt)

	history, err := repo.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.NoError(t, domain.VerifyHistory(history))
}

func TestService_Transition_ValidationErrorsLeaveOrderUntouched(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	svc := newService(repo, &fakeGateway{})
	order := seedOrder(t, repo, domain.Customer{Name: "Dana"})

	_, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusPreparing})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusCancelled, CancellationReason: " "})
	require.ErrorIs(t, err, domain.ErrMissingCancellationReason)

	_, err = svc.Transition(ctx, interfaces.TransitionCommand{OrderID: "missing", Target: domain.StatusConfirmed})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	stored, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order, stored)
}

func TestService_Transition_PinnedVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	svc := newService(repo, &fakeGateway{})
	order := seedOrder(t, repo, domain.Customer{Name: "Dana"})

	stale := order.Version - 1
	_, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusConfirmed, ExpectedVersion: &stale})
	require.ErrorIs(t, err, domain.ErrStaleVersion)

	current := order.Version
	out, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusConfirmed, ExpectedVersion: &current})
	require.NoError(t, err)
	assert.Equal(t, current+1, out.Order.Version)
}

func TestService_Transition_LostRaceWithPinnedVersionIsNotRetried(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewOrderRepository()
	order := seedOrder(t, mem, domain.Customer{Name: "Dana"})
	machine := domain.NewMachine(clock.NewFixed(now))

	repo := &racingRepo{OrderRepository: mem, other: func() {
		res, err := machine.ApplyTransition(order, domain.TransitionRequest{Target: domain.StatusConfirmed})
		require.NoError(t, err)
		require.NoError(t, mem.CompareAndSwap(ctx, order.ID, order.Version, res.Order, &res.Entry))
	}}
	svc := NewService(repo, &fakeGateway{}, machine, logger.Nop(), 3)

	version := order.Version
	_, err := svc.Transition(ctx, interfaces.TransitionCommand{
		OrderID:            order.ID,
		Target:             domain.StatusCancelled,
		CancellationReason: "customer left",
		ExpectedVersion:    &version,
	})
	require.ErrorIs(t, err, domain.ErrStaleVersion)

	stored, err := mem.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
}

func TestService_Transition_RetriesAndReevaluatesAfterLostRace(t *testing.T) {
	ctx := context.Background()

	t.Run("retry succeeds when edge is still legal", func(t *testing.T) {
		mem := memory.NewOrderRepository()
		order := seedOrder(t, mem, domain.Customer{Name: "Dana", Phone: "+7700"})
		machine := domain.NewMachine(clock.NewFixed(now))

		repo := &racingRepo{OrderRepository: mem, other: func() {
			res, err := machine.ApplyTransition(order, domain.TransitionRequest{Target: domain.StatusConfirmed})
			require.NoError(t, err)
			require.NoError(t, mem.CompareAndSwap(ctx, order.ID, order.Version, res.Order, &res.Entry))
		}}
		gw := &fakeGateway{}
		svc := NewService(repo, gw, machine, logger.Nop(), 3)

		out, err := svc.Transition(ctx, interfaces.TransitionCommand{
			OrderID:            order.ID,
			Target:             domain.StatusCancelled,
			CancellationReason: "customer left",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, out.Order.Status)

		history, err := mem.History(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, domain.StatusConfirmed, *history[2].OldStatus)
		assert.NoError(t, domain.VerifyHistory(history))
		require.Len(t, gw.sent, 1)
		assert.Equal(t, domain.EffectCancelled, gw.sent[0].Kind)
	})

	t.Run("retry fails when the other writer made the edge illegal", func(t *testing.T) {
		mem := memory.NewOrderRepository()
		order := seedOrder(t, mem, domain.Customer{Name: "Dana"})
		machine := domain.NewMachine(clock.NewFixed(now))

		repo := &racingRepo{OrderRepository: mem, other: func() {
			res, err := machine.ApplyTransition(order, domain.TransitionRequest{Target: domain.StatusCancelled, CancellationReason: "staff"})
			require.NoError(t, err)
			require.NoError(t, mem.CompareAndSwap(ctx, order.ID, order.Version, res.Order, &res.Entry))
		}}
		svc := NewService(repo, &fakeGateway{}, machine, logger.Nop(), 3)

		_, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusConfirmed})
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := mem.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, stored.Status)
	})
}

func TestService_Transition_DeliveryFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	gw := &fakeGateway{err: errors.New("broker down")}
	svc := newService(repo, gw)
	order := seedOrder(t, repo, domain.Customer{Name: "Dana"})

	for _, target := range []domain.Status{domain.StatusConfirmed, domain.StatusPreparing} {
		_, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: target})
		require.NoError(t, err)
	}

	out, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: domain.StatusReady})
	require.NoError(t, err)
	require.Len(t, out.DeliveryFailures, 1)
	assert.Equal(t, domain.EffectReady, out.DeliveryFailures[0].Kind)

	stored, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)
	assert.False(t, stored.NotificationSent)
}

func TestService_Transition_ConcurrentReadyAndCancel(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	svc := NewService(repo, &fakeGateway{}, domain.NewMachine(clock.NewFixed(now)), logger.Nop(), 1)
	order := seedOrder(t, repo, domain.Customer{Name: "Dana"})

	for _, target := range []domain.Status{domain.StatusConfirmed, domain.StatusPreparing} {
		_, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: target})
		require.NoError(t, err)
	}
	prepared, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)

	cmds := []interfaces.TransitionCommand{
		{OrderID: order.ID, Target: domain.StatusReady, ExpectedVersion: &prepared.Version},
		{OrderID: order.ID, Target: domain.StatusCancelled, CancellationReason: "out of dough", ExpectedVersion: &prepared.Version},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(cmds))
	for i, cmd := range cmds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, cmd)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrStaleVersion)
	}
	assert.Equal(t, 1, succeeded)

	history, err := repo.History(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.NoError(t, domain.VerifyHistory(history))
}

func TestService_Acknowledge_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	svc := newService(repo, &fakeGateway{})
	order := seedOrder(t, repo, domain.Customer{Name: "Dana"})

	for _, target := range []domain.Status{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady} {
		_, err := svc.Transition(ctx, interfaces.TransitionCommand{OrderID: order.ID, Target: target})
		require.NoError(t, err)
	}

	first, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, first.NotificationSent)

	again, err := svc.Acknowledge(ctx, order.ID, domain.EffectReady)
	require.NoError(t, err)
	assert.Equal(t, first.Version, again.Version)
}

func TestService_AllowedTransitions(t *testing.T) {
	repo := memory.NewOrderRepository()
	svc := newService(repo, &fakeGateway{})
	order := seedOrder(t, repo, domain.Customer{Name: "Dana"})

	got, allowed, err := svc.AllowedTransitions(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.ElementsMatch(t, []domain.Status{domain.StatusConfirmed, domain.StatusCancelled}, allowed)
}
