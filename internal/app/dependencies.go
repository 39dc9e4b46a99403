package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/adjustment"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/storefront/internal/service/notify"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Products  domain.ProductRepository
	Carts     domain.CartRepository
	Addresses domain.AddressRepository
	Orders    domain.OrderRepository
	Returns   domain.ReturnRepository
	Exchanges domain.ExchangeRepository
	History   domain.HistoryRepository

	Checkout   checkout.Service
	Lifecycle  lifecycle.Service
	Adjustment adjustment.Service

	Notifier      domain.Notifier
	KafkaProducer *kafka.Producer

	Logger *log.Entry

	checkoutStore domain.CheckoutStore
	postgresStore *postgres.Store
}

const defaultConnCheckTimeout = 3 * time.Second

// NewDependencies собирает зависимости приложения по конфигурации:
// PostgreSQL при заданном DSN, иначе in-memory; Kafka-уведомления при
// заданных брокерах, иначе лог.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		deps.postgresStore = store
		deps.Products = postgres.NewProductRepository(store)
		deps.Carts = postgres.NewCartRepository(store)
		deps.Addresses = postgres.NewAddressRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Returns = postgres.NewReturnRepository(store)
		deps.Exchanges = postgres.NewExchangeRepository(store)
		deps.History = postgres.NewHistoryRepository(store)
		deps.checkoutStore = postgres.NewCheckoutStore(store)
		logger.Info("postgres storage initialized")
	} else {
		store := memory.NewStore()
		deps.Products = memory.NewProductRepository(store)
		deps.Carts = memory.NewCartRepository(store)
		deps.Addresses = memory.NewAddressRepository(store)
		deps.Orders = memory.NewOrderRepository(store)
		deps.Returns = memory.NewReturnRepository(store)
		deps.Exchanges = memory.NewExchangeRepository(store)
		deps.History = memory.NewHistoryRepository(store)
		deps.checkoutStore = memory.NewCheckoutStore(store)
		logger.Warn("running with in-memory storage, data is not persisted")
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err == nil && producer != nil {
		deps.KafkaProducer = producer
		deps.Notifier = notify.NewKafkaNotifier(producer)
	} else {
		deps.Notifier = notify.NewLogNotifier()
	}

	var gateway domain.PaymentGateway
	if cfg.GatewayBaseURL != "" {
		gateway = payment.NewGateway(payment.Config{
			BaseURL: cfg.GatewayBaseURL,
			KeyID:   cfg.GatewayKeyID,
			Secret:  cfg.GatewaySecret,
		}, logger.WithField("component", "payment-gateway"))
	} else {
		gateway = payment.NewMockGateway()
		logger.Warn("payment gateway url is not set, using mock gateway")
	}

	deps.Checkout = checkout.NewService(
		deps.Products, deps.Carts, deps.Addresses, deps.checkoutStore,
		gateway, deps.Notifier, deps.History, cfg.Currency,
		logger.WithField("component", "checkout"),
	)
	deps.Lifecycle = lifecycle.NewService(
		deps.Orders, deps.History, deps.Notifier,
		logger.WithField("component", "lifecycle"),
	)
	deps.Adjustment = adjustment.NewService(
		deps.Orders, deps.Products, deps.Returns, deps.Exchanges,
		deps.Notifier, deps.History,
		logger.WithField("component", "adjustment"),
	)

	return deps, nil
}

// RegisterHealthCheckers подключает проверки хранилища и брокера.
func (d *Dependencies) RegisterHealthCheckers(handler *healthcheck.Handler) {
	if d.postgresStore != nil {
		store := d.postgresStore
		handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultConnCheckTimeout)
			defer cancel()
			return store.Ping(ctx)
		}))
	}
	if d.KafkaProducer != nil {
		producer := d.KafkaProducer
		handler.RegisterChecker("kafka", healthcheck.NewSimpleChecker("kafka", func() error {
			return producer.Healthy()
		}))
	}
}

// Close освобождает внешние ресурсы.
func (d *Dependencies) Close() {
	closeKafka(d.KafkaProducer, d.Logger)
	if d.postgresStore != nil {
		if err := d.postgresStore.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
