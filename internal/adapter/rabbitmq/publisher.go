package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

const (
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications_queue"
	notificationsDLX      = "notifications_dlq"
	notificationsDLQ      = "notifications_queue_dlq"
)

type notificationGateway struct {
	conn     Connection
	logger   logger.Logger
	attempts int
	backoff  time.Duration
}

// NewNotificationGateway publishes effects to the notifications exchange,
// retrying up to attempts times. Failures wrap domain.ErrDelivery.
func NewNotificationGateway(conn Connection, logger logger.Logger, attempts int) interfaces.NotificationGateway {
	if attempts < 1 {
		attempts = 1
	}
	return &notificationGateway{
		conn:     conn,
		logger:   logger,
		attempts: attempts,
		backoff:  200 * time.Millisecond,
	}
}

func (g *notificationGateway) Send(ctx context.Context, effect domain.OutboundEffect) error {
	body, err := json.Marshal(interfaces.NewNotificationMessage(effect))
	if err != nil {
		return fmt.Errorf("%w: failed to marshal message: %v", domain.ErrDelivery, err)
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if lastErr = g.publish(ctx, string(effect.Kind), body); lastErr == nil {
			g.logger.Debug("notification_published", "Notification published to RabbitMQ", "", map[string]interface{}{
				"order_id": effect.OrderID,
				"kind":     effect.Kind,
				"attempt":  attempt,
			})
			return nil
		}

		if attempt == g.attempts {
			break
		}
		g.logger.Warn("notification_publish_retry", lastErr.Error(), "", map[string]interface{}{
			"order_id": effect.OrderID,
			"attempt":  attempt,
		})

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrDelivery, ctx.Err())
		case <-time.After(g.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("%w: after %d attempts: %v", domain.ErrDelivery, g.attempts, lastErr)
}

func (g *notificationGateway) publish(ctx context.Context, routingKey string, body []byte) error {
	ch, err := g.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := SetupNotificationTopology(ch); err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, NotificationsExchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}
