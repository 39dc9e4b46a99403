package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// DeliveryOffsetDays — плановая дата доставки относительно момента чекаута.
const DeliveryOffsetDays = 3

// InitiateResult — ответ на инициацию gateway-оплаты: платёжное намерение
// и расчёт по корзине. Заказ на этом шаге ещё не создан.
type InitiateResult struct {
	Intent      domain.PaymentIntent
	AmountMinor int64
	Currency    string
	Lines       []domain.OrderLine
}

// ConfirmRequest — параметры подтверждения gateway-оплаты.
type ConfirmRequest struct {
	IntentRef  string
	PaymentRef string
	Signature  string
	AddressID  string
}

// Service описывает оркестрацию оформления заказа из корзины.
type Service interface {
	// Initiate проверяет сток без мутаций и создаёт платёжное намерение.
	Initiate(ctx context.Context, caller domain.Caller, addressID string) (InitiateResult, error)
	// Confirm сверяет подпись колбэка и атомарно фиксирует заказ.
	Confirm(ctx context.Context, caller domain.Caller, req ConfirmRequest) (domain.Order, error)
	// Place фиксирует заказ с оплатой при получении, минуя шлюз.
	Place(ctx context.Context, caller domain.Caller, addressID string) (domain.Order, error)
}

type service struct {
	products  domain.ProductRepository
	carts     domain.CartRepository
	addresses domain.AddressRepository
	store     domain.CheckoutStore
	gateway   domain.PaymentGateway
	notifier  domain.Notifier
	history   domain.HistoryRepository
	currency  string
	logger    *log.Entry
	metrics   *metrics.FulfillmentMetrics
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService создаёт рабочий экземпляр оркестратора чекаута.
func NewService(
	products domain.ProductRepository,
	carts domain.CartRepository,
	addresses domain.AddressRepository,
	store domain.CheckoutStore,
	gateway domain.PaymentGateway,
	notifier domain.Notifier,
	history domain.HistoryRepository,
	currency string,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &service{
		products:  products,
		carts:     carts,
		addresses: addresses,
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		history:   history,
		currency:  currency,
		logger:    logger,
		metrics:   metrics.NewFulfillmentMetrics(),
		now:       time.Now,
	}
}

// NewServiceWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewServiceWithoutMetrics(
	products domain.ProductRepository,
	carts domain.CartRepository,
	addresses domain.AddressRepository,
	store domain.CheckoutStore,
	gateway domain.PaymentGateway,
	notifier domain.Notifier,
	history domain.HistoryRepository,
	currency string,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &service{
		products:  products,
		carts:     carts,
		addresses: addresses,
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		history:   history,
		currency:  currency,
		logger:    logger,
		now:       time.Now,
	}
}

// Initiate проверяет корзину и сток в режиме чтения и запрашивает платёжное
// намерение у шлюза. До Confirm ни одна запись не мутируется.
func (s *service) Initiate(ctx context.Context, caller domain.Caller, addressID string) (InitiateResult, error) {
	if caller.UserID == "" {
		return InitiateResult{}, domain.ErrUserRequired
	}

	lines, total, err := s.priceCart(caller.UserID)
	if err != nil {
		return InitiateResult{}, err
	}

	if _, err := s.addresses.Get(caller.UserID, addressID); err != nil {
		return InitiateResult{}, err
	}

	intent, err := s.gateway.CreateIntent(ctx, total, s.currency, uuid.NewString())
	if err != nil {
		s.logger.WithError(err).WithField("user_id", caller.UserID).Warn("payment intent creation failed")
		return InitiateResult{}, err
	}

	s.logger.WithFields(log.Fields{
		"user_id":      caller.UserID,
		"intent_ref":   intent.Ref,
		"amount_minor": total,
	}).Info("checkout initiated")

	return InitiateResult{
		Intent:      intent,
		AmountMinor: total,
		Currency:    s.currency,
		Lines:       lines,
	}, nil
}

// Confirm сверяет подпись платёжного колбэка и выполняет атомарный коммит.
// Несовпадение подписи прерывает операцию до любых мутаций хранилища.
func (s *service) Confirm(ctx context.Context, caller domain.Caller, req ConfirmRequest) (domain.Order, error) {
	if caller.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	if err := s.gateway.VerifySignature(req.IntentRef, req.PaymentRef, req.Signature); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id":    caller.UserID,
			"intent_ref": req.IntentRef,
		}).Warn("payment signature verification failed")
		return domain.Order{}, err
	}

	order, err := s.commit(caller, req.AddressID, domain.PaymentMethodGateway, req.IntentRef, req.PaymentRef)
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Place фиксирует заказ с оплатой при получении.
func (s *service) Place(ctx context.Context, caller domain.Caller, addressID string) (domain.Order, error) {
	if caller.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	return s.commit(caller, addressID, domain.PaymentMethodCOD, "", "")
}

// priceCart читает корзину, валидирует сток и считает позиции будущего
// заказа. Цена фиксируется из каталога в момент вызова.
func (s *service) priceCart(userID string) ([]domain.OrderLine, int64, error) {
	cartLines, err := s.carts.ListByUser(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("list cart: %w", err)
	}
	if len(cartLines) == 0 {
		return nil, 0, domain.ErrEmptyCart
	}

	lines := make([]domain.OrderLine, 0, len(cartLines))
	var total int64
	for _, cl := range cartLines {
		if errs := cl.Validate(); len(errs) > 0 {
			return nil, 0, errs[0]
		}
		product, err := s.products.Get(cl.ProductID)
		if err != nil {
			return nil, 0, err
		}
		if product.OutOfStock || product.Quantity < cl.Qty {
			return nil, 0, fmt.Errorf("product %s: %w", cl.ProductID, domain.ErrInsufficientStock)
		}

		lines = append(lines, domain.OrderLine{
			ID:             uuid.NewString(),
			ProductID:      cl.ProductID,
			Qty:            cl.Qty,
			Size:           cl.Size,
			UnitPriceMinor: product.UnitPriceMinor,
			ItemStatus:     domain.ItemStatusOrdered,
		})
		total += int64(cl.Qty) * product.UnitPriceMinor
	}

	return lines, total, nil
}

// commit собирает заказ и передаёт его хранилищу на атомарную фиксацию:
// условные списания стока, вставка заказа и позиций, очистка корзины.
func (s *service) commit(caller domain.Caller, addressID string, method domain.PaymentMethod, intentRef, paymentRef string) (domain.Order, error) {
	start := s.now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
		defer func() {
			s.metrics.RecordCheckoutFinished()
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}()
	}

	lines, total, err := s.priceCart(caller.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordStockConflict()
		}
		return domain.Order{}, err
	}

	address, err := s.addresses.Get(caller.UserID, addressID)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          caller.UserID,
		Status:          domain.OrderStatusConfirmed,
		Address:         address,
		Currency:        s.currency,
		AmountMinor:     total,
		PaymentMethod:   method,
		PaymentIntentID: intentRef,
		PaymentRef:      paymentRef,
		DeliveryDate:    now.AddDate(0, 0, DeliveryOffsetDays),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range lines {
		lines[i].OrderID = order.ID
		lines[i].CreatedAt = now
		lines[i].UpdatedAt = now
	}
	order.Lines = lines

	if err := s.store.Commit(order); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordStockConflict()
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"user_id":  caller.UserID,
			"order_id": order.ID,
		}).Warn("checkout commit failed")
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced()
	}
	s.logger.WithFields(log.Fields{
		"user_id":        caller.UserID,
		"order_id":       order.ID,
		"amount_minor":   total,
		"payment_method": method,
	}).Info("order placed")

	s.appendHistory(order.ID, "order_placed", string(method))
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationOrderConfirmed,
		UserID:  caller.UserID,
		OrderID: order.ID,
		Meta: map[string]interface{}{
			"amount_minor":   total,
			"currency":       s.currency,
			"delivery_date":  order.DeliveryDate.Format("2006-01-02"),
			"payment_method": string(method),
			"lines":          len(order.Lines),
		},
	})

	return order, nil
}

// appendHistory пишет событие истории заказа. Сбой истории логируется
// и не отменяет уже зафиксированный заказ.
func (s *service) appendHistory(orderID, eventType, reason string) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(domain.OrderEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: s.now(),
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append order history")
	}
}
