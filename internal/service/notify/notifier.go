package notify

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Publisher публикует события в message broker
type Publisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// KafkaNotifier отправляет уведомления через Kafka. Доставка
// fire-and-forget: ошибка публикации логируется, учитывается в метриках
// и не влияет на бизнес-операцию, которая породила уведомление.
type KafkaNotifier struct {
	publisher Publisher
	topic     string
	logger    *log.Entry
	metrics   *metrics.FulfillmentMetrics
}

var _ domain.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier создает notifier поверх Kafka producer
func NewKafkaNotifier(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		topic:     kafka.TopicNotifications,
		logger:    log.WithField("component", "kafka-notifier"),
		metrics:   metrics.NewFulfillmentMetrics(),
	}
}

// NewKafkaNotifierWithoutMetrics создает notifier без метрик (для тестов)
func NewKafkaNotifierWithoutMetrics(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		topic:     kafka.TopicNotifications,
		logger:    log.WithField("component", "kafka-notifier"),
	}
}

// Dispatch публикует уведомление асинхронно
func (n *KafkaNotifier) Dispatch(notification domain.Notification) {
	event := kafka.NewNotificationEvent(
		string(notification.Kind),
		notification.UserID,
		notification.OrderID,
		notification.Meta,
	)

	go func() {
		if err := n.publisher.PublishEvent(n.topic, notification.OrderID, event); err != nil {
			if n.metrics != nil {
				n.metrics.RecordNotifyFailure()
			}
			n.logger.WithError(err).WithFields(log.Fields{
				"kind":     notification.Kind,
				"user_id":  notification.UserID,
				"order_id": notification.OrderID,
			}).Error("failed to publish notification")
		}
	}()
}

// LogNotifier пишет уведомления только в лог. Используется, когда
// Kafka не сконфигурирована (локальная разработка, тесты).
type LogNotifier struct {
	logger *log.Entry
}

var _ domain.Notifier = (*LogNotifier)(nil)

// NewLogNotifier создает log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.WithField("component", "log-notifier")}
}

// Dispatch логирует уведомление
func (n *LogNotifier) Dispatch(notification domain.Notification) {
	n.logger.WithFields(log.Fields{
		"kind":     notification.Kind,
		"user_id":  notification.UserID,
		"order_id": notification.OrderID,
		"meta":     notification.Meta,
	}).Info("notification dispatched")
}
