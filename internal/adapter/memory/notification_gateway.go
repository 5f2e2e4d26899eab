package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

// NotificationGateway logs effects instead of publishing them and keeps a copy
// of everything it was handed.
type NotificationGateway struct {
	logger logger.Logger
	mu     sync.Mutex
	sent   []domain.OutboundEffect
}

var _ interfaces.NotificationGateway = (*NotificationGateway)(nil)

func NewNotificationGateway(logger logger.Logger) *NotificationGateway {
	return &NotificationGateway{logger: logger}
}

func (g *NotificationGateway) Send(ctx context.Context, effect domain.OutboundEffect) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	g.sent = append(g.sent, effect)
	g.mu.Unlock()

	g.logger.Info("notification_sent", effect.Payload.Message, "", map[string]interface{}{
		"order_id":  effect.OrderID,
		"kind":      effect.Kind,
		"recipient": effect.Recipient.Name,
	})
	return nil
}

// Sent returns the effects handed off so far, oldest first.
func (g *NotificationGateway) Sent() []domain.OutboundEffect {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sent)
}
