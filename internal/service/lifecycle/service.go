package lifecycle

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// legalFrom перечисляет разрешённые исходные статусы для каждого целевого.
// Закрытая таблица рёбер: любой переход вне её — ErrIllegalTransition.
var legalFrom = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusConfirmed:      {domain.OrderStatusPlaced},
	domain.OrderStatusPacked:         {domain.OrderStatusConfirmed},
	domain.OrderStatusShipped:        {domain.OrderStatusPacked},
	domain.OrderStatusOutForDelivery: {domain.OrderStatusShipped},
	domain.OrderStatusDelivered:      {domain.OrderStatusOutForDelivery},
	domain.OrderStatusCancelled: {
		domain.OrderStatusPlaced,
		domain.OrderStatusConfirmed,
		domain.OrderStatusPacked,
	},
}

// OrderView — заказ вместе с историей его событий.
type OrderView struct {
	Order  domain.Order
	Events []domain.OrderEvent
}

// Service управляет жизненным циклом заказа после фиксации.
type Service interface {
	// Get возвращает заказ с историей; доступ владельцу и оператору.
	Get(ctx context.Context, caller domain.Caller, orderID string) (OrderView, error)
	// ListByUser возвращает заказы пользователя.
	ListByUser(ctx context.Context, caller domain.Caller, userID string, limit int) ([]domain.Order, error)
	// List возвращает заказы всех пользователей; только оператор.
	List(ctx context.Context, caller domain.Caller, limit int) ([]domain.Order, error)
	// UpdateStatus выполняет операторский переход статуса вместе с
	// побочными эффектами (OTP, история, уведомление).
	UpdateStatus(ctx context.Context, caller domain.Caller, orderID string, to domain.OrderStatus) (domain.Order, error)
	// Cancel — пользовательская отмена, условная на {placed, confirmed, packed}.
	Cancel(ctx context.Context, caller domain.Caller, orderID string) (domain.Order, error)
	// SetDeliveryDate переносит дату доставки; только оператор.
	SetDeliveryDate(ctx context.Context, caller domain.Caller, orderID string, date time.Time) (domain.Order, error)
	// Delete — административное каскадное удаление заказа.
	Delete(ctx context.Context, caller domain.Caller, orderID string) error
}

type service struct {
	orders   domain.OrderRepository
	history  domain.HistoryRepository
	notifier domain.Notifier
	logger   *log.Entry
	metrics  *metrics.FulfillmentMetrics
	now      func() time.Time
}

var _ Service = (*service)(nil)

// NewService создаёт рабочий экземпляр машины статусов.
func NewService(
	orders domain.OrderRepository,
	history domain.HistoryRepository,
	notifier domain.Notifier,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle")
	}
	return &service{
		orders:   orders,
		history:  history,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics.NewFulfillmentMetrics(),
		now:      time.Now,
	}
}

// NewServiceWithoutMetrics создаёт машину статусов без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	history domain.HistoryRepository,
	notifier domain.Notifier,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle")
	}
	return &service{
		orders:   orders,
		history:  history,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *service) Get(ctx context.Context, caller domain.Caller, orderID string) (OrderView, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return OrderView{}, err
	}
	if !caller.Owns(order.UserID) {
		return OrderView{}, domain.ErrForbidden
	}

	events, err := s.history.List(orderID)
	if err != nil {
		return OrderView{}, fmt.Errorf("list order history: %w", err)
	}
	return OrderView{Order: order, Events: events}, nil
}

func (s *service) ListByUser(ctx context.Context, caller domain.Caller, userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if !caller.Owns(userID) {
		return nil, domain.ErrForbidden
	}
	return s.orders.ListByUser(userID, limit)
}

func (s *service) List(ctx context.Context, caller domain.Caller, limit int) ([]domain.Order, error) {
	if !caller.Operator {
		return nil, domain.ErrForbidden
	}
	return s.orders.List(limit)
}

// UpdateStatus условно переводит заказ в целевой статус. Вход в
// out_for_delivery выпускает свежий OTP, вход в delivered очищает его;
// оба эффекта применяются тем же условным обновлением, что и статус.
func (s *service) UpdateStatus(ctx context.Context, caller domain.Caller, orderID string, to domain.OrderStatus) (domain.Order, error) {
	if !caller.Operator {
		return domain.Order{}, domain.ErrForbidden
	}
	if !to.Valid() {
		return domain.Order{}, domain.ErrStatusUnknown
	}
	allowedFrom, ok := legalFrom[to]
	if !ok {
		return domain.Order{}, domain.ErrIllegalTransition
	}

	otp := ""
	if to == domain.OrderStatusOutForDelivery {
		code, err := generateOTP()
		if err != nil {
			return domain.Order{}, fmt.Errorf("generate delivery otp: %w", err)
		}
		otp = code
	}

	order, err := s.orders.Transition(orderID, allowedFrom, to, otp)
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   to,
	}).Info("order status updated")

	s.appendHistory(orderID, "status_changed", string(to))
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationOrderStatusChanged,
		UserID:  order.UserID,
		OrderID: order.ID,
		Meta:    map[string]interface{}{"status": string(to)},
	})

	return order, nil
}

// Cancel выполняет пользовательскую отмену: условное обновление
// "cancelled, только если статус ещё в {placed, confirmed, packed}".
// Проигравший гонку с отгрузкой получает ErrIllegalTransition.
func (s *service) Cancel(ctx context.Context, caller domain.Caller, orderID string) (domain.Order, error) {
	current, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.Owns(current.UserID) {
		return domain.Order{}, domain.ErrForbidden
	}

	order, err := s.orders.Transition(orderID, legalFrom[domain.OrderStatusCancelled], domain.OrderStatusCancelled, "")
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
	}
	s.logger.WithField("order_id", orderID).Info("order cancelled")

	s.appendHistory(orderID, "cancelled", "user requested")
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationOrderStatusChanged,
		UserID:  order.UserID,
		OrderID: order.ID,
		Meta:    map[string]interface{}{"status": string(domain.OrderStatusCancelled)},
	})

	return order, nil
}

func (s *service) SetDeliveryDate(ctx context.Context, caller domain.Caller, orderID string, date time.Time) (domain.Order, error) {
	if !caller.Operator {
		return domain.Order{}, domain.ErrForbidden
	}

	order, err := s.orders.SetDeliveryDate(orderID, date)
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":      orderID,
		"delivery_date": date.Format("2006-01-02"),
	}).Info("delivery date changed")

	s.appendHistory(orderID, "delivery_date_changed", date.Format("2006-01-02"))
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationDeliveryDateChanged,
		UserID:  order.UserID,
		OrderID: order.ID,
		Meta:    map[string]interface{}{"delivery_date": date.Format("2006-01-02")},
	})

	return order, nil
}

func (s *service) Delete(ctx context.Context, caller domain.Caller, orderID string) error {
	if !caller.Operator {
		return domain.ErrForbidden
	}
	if err := s.orders.Delete(orderID); err != nil {
		return err
	}
	s.logger.WithField("order_id", orderID).Info("order deleted")
	return nil
}

// appendHistory пишет событие истории заказа; сбой только логируется.
func (s *service) appendHistory(orderID, eventType, reason string) {
	if err := s.history.Append(domain.OrderEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: s.now(),
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append order history")
	}
}

// generateOTP выпускает шестизначный числовой код доставки.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
