package kafka

import "time"

// Topics для Kafka
const (
	TopicNotifications   = "storefront.notifications"
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// NotificationEvent — шаблонное уведомление пользователю, публикуемое
// в Kafka для асинхронной доставки (email/SMS/push решает worker).
type NotificationEvent struct {
	Kind      string                 `json:"kind"`
	UserID    string                 `json:"user_id"`
	OrderID   string                 `json:"order_id"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// NewNotificationEvent создаёт событие уведомления.
func NewNotificationEvent(kind, userID, orderID string, meta map[string]interface{}) *NotificationEvent {
	return &NotificationEvent{
		Kind:      kind,
		UserID:    userID,
		OrderID:   orderID,
		Timestamp: time.Now(),
		Meta:      meta,
	}
}
