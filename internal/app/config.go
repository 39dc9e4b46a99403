package app

import (
	"os"
	"strings"
)

// Config описывает настройки запуска движка исполнения заказов.
type Config struct {
	APIAddr     string
	MetricsAddr string
	// PostgresDSN пустой — работаем на in-memory хранилище.
	PostgresDSN string
	// KafkaBrokers пустой — уведомления уходят в лог.
	KafkaBrokers string
	Currency     string

	GatewayBaseURL string
	GatewayKeyID   string
	GatewaySecret  string
}

// DefaultConfig возвращает базовые адреса API и HTTP-метрик.
func DefaultConfig() Config {
	return Config{
		APIAddr:     ":8080",
		MetricsAddr: ":9090",
		Currency:    "USD",
	}
}

// ConfigFromEnv читает настройки из окружения поверх значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("STOREFRONT_API_ADDR")); v != "" {
		cfg.APIAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_DSN"))
	cfg.KafkaBrokers = strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_CURRENCY")); v != "" {
		cfg.Currency = v
	}
	cfg.GatewayBaseURL = strings.TrimSpace(os.Getenv("STOREFRONT_GATEWAY_URL"))
	cfg.GatewayKeyID = strings.TrimSpace(os.Getenv("STOREFRONT_GATEWAY_KEY_ID"))
	cfg.GatewaySecret = strings.TrimSpace(os.Getenv("STOREFRONT_GATEWAY_SECRET"))

	return cfg
}
