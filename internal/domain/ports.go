package domain

import (
	"context"
	"time"
)

// PaymentIntent — ссылка на удалённое платёжное намерение шлюза.
type PaymentIntent struct {
	Ref         string
	AmountMinor int64
	Currency    string
}

// PaymentGateway описывает взаимодействие с платёжным шлюзом.
// Оба вызова выполняются строго до любых мутаций хранилища.
type PaymentGateway interface {
	// CreateIntent создаёт платёжное намерение на сумму в минимальных
	// денежных единицах. Ошибки шлюза различимы по категориям:
	// ErrGatewayRejected / ErrGatewayUnavailable / ErrGatewayInternal.
	CreateIntent(ctx context.Context, amountMinor int64, currency, receiptID string) (PaymentIntent, error)
	// VerifySignature сверяет подпись колбэка с HMAC от intentRef|paymentRef.
	// Несовпадение — ErrSignatureMismatch, никогда не игнорируется молча.
	VerifySignature(intentRef, paymentRef, signature string) error
}

// NotificationKind определяет шаблон уведомления.
type NotificationKind string

const (
	NotificationOrderConfirmed      NotificationKind = "order.confirmed"
	NotificationOrderStatusChanged  NotificationKind = "order.status_changed"
	NotificationDeliveryDateChanged NotificationKind = "order.delivery_date_changed"
	NotificationReturnDecision      NotificationKind = "return.decision"
	NotificationExchangeDecision    NotificationKind = "exchange.decision"
)

// Notification — шаблонное сообщение пользователю.
type Notification struct {
	Kind    NotificationKind
	UserID  string
	OrderID string
	Meta    map[string]interface{}
}

// Notifier отправляет уведомления по принципу fire-and-forget:
// Dispatch ничего не возвращает, сбои доставки логируются реализацией
// и никогда не влияют на вызывающую операцию.
type Notifier interface {
	Dispatch(n Notification)
}

// OrderEvent — событие истории заказа (смена статуса, решение по
// возврату/обмену, перенос даты доставки).
type OrderEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// HistoryRepository хранит события жизненного цикла заказа.
type HistoryRepository interface {
	Append(event OrderEvent) error
	List(orderID string) ([]OrderEvent, error)
}
