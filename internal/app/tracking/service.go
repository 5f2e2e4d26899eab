package tracking

import (
	"context"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

type Service struct {
	orderRepo interfaces.OrderRepository
	logger    logger.Logger
}

func NewService(orderRepo interfaces.OrderRepository, logger logger.Logger) *Service {
	return &Service{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.orderRepo.Get(ctx, orderID)
}

// GetHistory returns the order's transitions oldest first, creation included.
func (s *Service) GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	entries, err := s.orderRepo.History(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := domain.VerifyHistory(entries); err != nil {
		s.logger.Warn("history_inconsistent", err.Error(), "", map[string]interface{}{
			"order_id": orderID,
			"entries":  len(entries),
		})
	}

	return entries, nil
}
