package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

type Service struct {
	repo        interfaces.OrderRepository
	gateway     interfaces.NotificationGateway
	machine     *domain.Machine
	logger      logger.Logger
	maxAttempts int
}

func NewService(
	repo interfaces.OrderRepository,
	gateway interfaces.NotificationGateway,
	machine *domain.Machine,
	logger logger.Logger,
	maxAttempts int,
) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		repo:        repo,
		gateway:     gateway,
		machine:     machine,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

func (s *Service) AllowedTransitions(ctx context.Context, orderID string) (domain.Order, []domain.Status, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, s.machine.AllowedTransitions(order), nil
}

// Transition applies cmd and commits it with compare-and-swap. Without a pinned
// version a lost race is retried from a fresh read, so the graph is re-checked
// against whatever the other writer did.
func (s *Service) Transition(ctx context.Context, cmd interfaces.TransitionCommand) (*interfaces.TransitionOutcome, error) {
	var (
		from   domain.Status
		result domain.TransitionResult
	)

	for attempt := 1; ; attempt++ {
		order, err := s.repo.Get(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}

		if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != order.Version {
			return nil, fmt.Errorf("%w: order %s is at version %d, caller has %d",
				domain.ErrStaleVersion, order.ID, order.Version, *cmd.ExpectedVersion)
		}

		result, err = s.machine.ApplyTransition(order, domain.TransitionRequest{
			Target:             cmd.Target,
			Actor:              cmd.Actor,
			Notes:              cmd.Notes,
			CancellationReason: cmd.CancellationReason,
		})
		if err != nil {
			s.logger.Debug("transition_rejected", err.Error(), "", map[string]interface{}{
				"order_id": order.ID,
				"from":     order.Status,
				"to":       cmd.Target,
			})
			return nil, err
		}

		err = s.repo.CompareAndSwap(ctx, order.ID, order.Version, result.Order, &result.Entry)
		if err == nil {
			from = order.Status
			break
		}

		if !errors.Is(err, domain.ErrStaleVersion) || cmd.ExpectedVersion != nil || attempt >= s.maxAttempts {
			return nil, err
		}

		s.logger.Debug("transition_retry", "Order changed underneath, re-reading", "", map[string]interface{}{
			"order_id": order.ID,
			"attempt":  attempt,
		})
	}

	s.logger.Info("order_transitioned", fmt.Sprintf("Order %s moved to %s", result.Order.ID, result.Order.Status), "", map[string]interface{}{
		"order_id": result.Order.ID,
		"from":     from,
		"to":       result.Order.Status,
		"version":  result.Order.Version,
		"effects":  len(result.Effects),
	})

	outcome := &interfaces.TransitionOutcome{
		Order:   result.Order,
		Entry:   result.Entry,
		Effects: result.Effects,
	}

	// Notification is best effort: the transition above is already committed.
	for _, effect := range result.Effects {
		if err := s.gateway.Send(ctx, effect); err != nil {
			s.logger.Error("notification_failed", "Failed to hand off notification", "", map[string]interface{}{
				"order_id": effect.OrderID,
				"kind":     effect.Kind,
			}, err)
			outcome.DeliveryFailures = append(outcome.DeliveryFailures, interfaces.DeliveryFailure{
				Kind:  effect.Kind,
				Error: err.Error(),
			})
			continue
		}

		if !effect.Kind.TracksDelivery() {
			continue
		}
		acked, err := s.Acknowledge(ctx, effect.OrderID, effect.Kind)
		if err != nil {
			s.logger.Error("notification_ack_failed", "Failed to record notification", "", map[string]interface{}{
				"order_id": effect.OrderID,
				"kind":     effect.Kind,
			}, err)
			continue
		}
		outcome.Order = acked
	}

	return outcome, nil
}

// Acknowledge flips the delivery flag for kind with the same compare-and-swap
// discipline as transitions. Acknowledging twice is not an error.
func (s *Service) Acknowledge(ctx context.Context, orderID string, kind domain.EffectKind) (domain.Order, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}

		next, err := s.machine.Acknowledge(order, kind)
		if errors.Is(err, domain.ErrAlreadyAcknowledged) {
			return order, nil
		}
		if err != nil {
			return domain.Order{}, err
		}
		if next.Version == order.Version {
			return order, nil
		}

		err = s.repo.CompareAndSwap(ctx, orderID, order.Version, next, nil)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrStaleVersion) || attempt >= s.maxAttempts {
			return domain.Order{}, err
		}
	}
}
