package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

// NotificationHandler is the subscriber end of the notifications queue. It
// stands in for the channel that would actually reach the customer.
type NotificationHandler struct {
	logger logger.Logger
	out    io.Writer
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		out:    os.Stdout,
	}
}

// HandleNotification returns an error for messages that cannot be decoded so the
// consumer dead-letters them.
func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var msg interfaces.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}
	if msg.OrderID == "" || msg.Kind == "" {
		err := fmt.Errorf("notification without order_id or kind")
		h.logger.Error("message_invalid", "Rejected notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received %s notification for order %s", msg.Kind, msg.OrderID),
		msg.OrderID, map[string]interface{}{
			"order_id": msg.OrderID,
			"kind":     msg.Kind,
			"status":   msg.Status,
		})

	contact := msg.Recipient.Email
	if contact == "" {
		contact = msg.Recipient.Phone
	}
	fmt.Fprintf(h.out, "Notification for %s <%s> about order %s: %s\n",
		msg.Recipient.Name, contact, msg.OrderID, msg.Message)

	return nil
}
