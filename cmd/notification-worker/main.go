package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const defaultGroupID = "storefront-notification-worker"

// setupLogger настраивает формат и уровень логирования воркера.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// handleNotification рендерит уведомление покупателю. Здесь это запись в
// лог; в бою на этом месте живёт отправка письма или пуша.
func handleNotification(logger *log.Entry) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		event, err := kafka.ParseNotificationEvent(message)
		if err != nil {
			return err
		}

		logger.WithFields(log.Fields{
			"kind":     event.Kind,
			"user_id":  event.UserID,
			"order_id": event.OrderID,
			"meta":     event.Meta,
		}).Info("уведомление доставлено")
		return nil
	}
}

func main() {
	setupLogger()
	logger := log.WithField("component", "notification-worker")

	brokersRaw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokersRaw == "" {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	brokers := strings.Split(brokersRaw, ",")

	groupID := strings.TrimSpace(os.Getenv("STOREFRONT_CONSUMER_GROUP"))
	if groupID == "" {
		groupID = defaultGroupID
	}

	dlqProducer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create dlq producer, poison messages will be retried in place")
		dlqProducer = nil
	}

	consumer, err := kafka.NewConsumerWithDLQ(
		brokers,
		groupID,
		[]string{kafka.TopicNotifications},
		handleNotification(logger),
		dlqProducer,
		3,
	)
	if err != nil {
		logger.WithError(err).Fatal("failed to create kafka consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{
		"brokers":  brokers,
		"group_id": groupID,
		"topic":    kafka.TopicNotifications,
	}).Info("запускаем обработчик уведомлений")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("consumer failed to start")
	}

	<-ctx.Done()

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("consumer stopped with error")
	}
	if dlqProducer != nil {
		if err := dlqProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dlq producer")
		}
	}

	logger.Info("обработчик уведомлений остановлен")
}
