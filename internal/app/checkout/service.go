package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/clock"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

type Service struct {
	repo     interfaces.OrderRepository
	schedule domain.ScheduleConfig
	clock    clock.Clock
	logger   logger.Logger
	newID    func() string
}

func NewService(repo interfaces.OrderRepository, schedule domain.ScheduleConfig, clk clock.Clock, logger logger.Logger) *Service {
	return &Service{
		repo:     repo,
		schedule: schedule,
		clock:    clk,
		logger:   logger,
		newID:    func() string { return uuid.NewString() },
	}
}

// AvailableSlots lists today's remaining pickup slots with capacity applied.
func (s *Service) AvailableSlots(ctx context.Context) ([]domain.TimeSlot, error) {
	now := s.clock.Now()

	var opts []domain.SlotOption
	if s.schedule.CapacityPerSlot > 0 {
		occupancy, err := s.occupancy(ctx, now)
		if err != nil {
			return nil, err
		}
		opts = append(opts, domain.WithOccupancy(occupancy))
	}

	return domain.GenerateSlots(s.schedule, now, opts...), nil
}

func (s *Service) CreateOrder(ctx context.Context, cmd interfaces.CheckoutCommand) (domain.Order, error) {
	now := s.clock.Now()

	// 1. Время самовывоза
	if cmd.PickupTime.IsZero() {
		return domain.Order{}, fmt.Errorf("%w: pickup time is required", domain.ErrInvalidOrder)
	}
	if err := domain.ValidateRequestedTime(s.schedule, now, cmd.PickupTime); err != nil {
		s.logger.Debug("pickup_time_rejected", err.Error(), "", map[string]interface{}{
			"pickup_time": cmd.PickupTime,
		})
		return domain.Order{}, err
	}

	// 2. Доменная сущность
	order, entry, err := domain.NewOrder(domain.NewOrderParams{
		ID: s.newID(),
		Customer: domain.Customer{
			Name:  cmd.CustomerName,
			Email: cmd.Email,
			Phone: cmd.Phone,
		},
		PickupTime:           cmd.PickupTime,
		EstimatedPrepMinutes: s.schedule.PrepMinutes,
		Actor:                cmd.Actor,
		Notes:                cmd.Notes,
	}, now)
	if err != nil {
		s.logger.Error("validation_failed", "Order validation failed", "", nil, err)
		return domain.Order{}, err
	}

	// 3. Сохранение вместе с первой записью истории; вместимость слота проверяется в той же транзакции
	if err := s.repo.Create(ctx, order, entry, s.schedule.CapacityPerSlot); err != nil {
		if errors.Is(err, domain.ErrSlotFull) {
			s.logger.Debug("slot_full", err.Error(), "", map[string]interface{}{
				"pickup_time": cmd.PickupTime,
			})
			return domain.Order{}, err
		}
		s.logger.Error("db_transaction_failed", "Failed to create order", "", nil, err)
		return domain.Order{}, err
	}

	s.logger.Info("order_received", "Order created", "", map[string]interface{}{
		"order_id":    order.ID,
		"pickup_time": order.PickupTime,
	})

	return order, nil
}

func (s *Service) occupancy(ctx context.Context, now time.Time) (domain.Occupancy, error) {
	slots := domain.GenerateSlots(s.schedule, now)
	if len(slots) == 0 {
		return domain.Occupancy{}, nil
	}
	occupancy, err := s.repo.CountByPickupTime(ctx, slots[0].Time, slots[len(slots)-1].Time)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	return occupancy, nil
}
