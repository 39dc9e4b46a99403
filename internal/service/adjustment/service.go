package adjustment

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// CreateReturnInput — параметры пользовательской заявки на возврат.
type CreateReturnInput struct {
	OrderID     string
	LineID      string
	Qty         int32
	Reason      string
	EvidenceRef string
}

// CreateExchangeInput — параметры пользовательской заявки на обмен.
// NewQty и NewSize — целевые значения позиции, а не дельта.
type CreateExchangeInput struct {
	OrderID string
	LineID  string
	NewQty  int32
	NewSize string
	Reason  string
}

// Service управляет циклом возвратов и обменов поверх окна корректировок
// и складской книги.
type Service interface {
	// Eligibility возвращает доступность возврата и обмена для позиции заказа.
	Eligibility(ctx context.Context, caller domain.Caller, orderID, lineID string) (domain.Eligibility, error)

	// CreateReturn создаёт заявку на возврат. Сумма возврата фиксируется
	// по цене каталога на момент заявки.
	CreateReturn(ctx context.Context, caller domain.Caller, input CreateReturnInput) (domain.ReturnRequest, error)
	// AcceptReturn переводит заявку в refunded, возвращая сток ровно один раз.
	AcceptReturn(ctx context.Context, caller domain.Caller, id string) (domain.ReturnRequest, error)
	// RejectReturn отклоняет заявку; сток не меняется, количество освобождается.
	RejectReturn(ctx context.Context, caller domain.Caller, id string) (domain.ReturnRequest, error)
	GetReturn(ctx context.Context, caller domain.Caller, id string) (domain.ReturnRequest, error)
	ListReturns(ctx context.Context, caller domain.Caller, userID string, limit int) ([]domain.ReturnRequest, error)

	// CreateExchange создаёт заявку на обмен, снапшотируя исходный размер.
	CreateExchange(ctx context.Context, caller domain.Caller, input CreateExchangeInput) (domain.ExchangeRequest, error)
	// CompleteExchange переписывает размер/количество позиции ровно один раз.
	CompleteExchange(ctx context.Context, caller domain.Caller, id string) (domain.ExchangeRequest, error)
	// RejectExchange отклоняет заявку без мутаций позиции и стока.
	RejectExchange(ctx context.Context, caller domain.Caller, id string) (domain.ExchangeRequest, error)
	GetExchange(ctx context.Context, caller domain.Caller, id string) (domain.ExchangeRequest, error)
	ListExchanges(ctx context.Context, caller domain.Caller, userID string, limit int) ([]domain.ExchangeRequest, error)
}

type service struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	returns   domain.ReturnRepository
	exchanges domain.ExchangeRepository
	notifier  domain.Notifier
	history   domain.HistoryRepository
	logger    *log.Entry
	metrics   *metrics.FulfillmentMetrics
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService создаёт рабочий экземпляр цикла возвратов/обменов.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	returns domain.ReturnRepository,
	exchanges domain.ExchangeRepository,
	notifier domain.Notifier,
	history domain.HistoryRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "adjustment")
	}
	return &service{
		orders:    orders,
		products:  products,
		returns:   returns,
		exchanges: exchanges,
		notifier:  notifier,
		history:   history,
		logger:    logger,
		metrics:   metrics.NewFulfillmentMetrics(),
		now:       time.Now,
	}
}

// NewServiceWithoutMetrics создаёт цикл возвратов/обменов без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	returns domain.ReturnRepository,
	exchanges domain.ExchangeRepository,
	notifier domain.Notifier,
	history domain.HistoryRepository,
	logger *log.Entry,
) Service {
	if logger == nil {
		logger = log.New().WithField("component", "adjustment")
	}
	return &service{
		orders:    orders,
		products:  products,
		returns:   returns,
		exchanges: exchanges,
		notifier:  notifier,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// appendHistory пишет решение по заявке в историю заказа; сбой только логируется.
func (s *service) appendHistory(orderID, eventType, decision string) {
	if err := s.history.Append(domain.OrderEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   decision,
		Occurred: s.now(),
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append order history")
	}
}

// ownedLine возвращает заказ и его позицию после проверки владения.
func (s *service) ownedLine(caller domain.Caller, orderID, lineID string) (domain.Order, domain.OrderLine, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, domain.OrderLine{}, err
	}
	if !caller.Owns(order.UserID) {
		return domain.Order{}, domain.OrderLine{}, domain.ErrForbidden
	}
	line, ok := order.Line(lineID)
	if !ok {
		return domain.Order{}, domain.OrderLine{}, domain.ErrLineNotFound
	}
	return order, line, nil
}

// Eligibility вычисляет доступность возврата по окну корректировок и
// остатку возвращаемого количества. Заказ должен быть доставлен.
// ExchangeEligible ставится отдельно: обмен зависит только от окна.
func (s *service) Eligibility(ctx context.Context, caller domain.Caller, orderID, lineID string) (domain.Eligibility, error) {
	order, line, err := s.ownedLine(caller, orderID, lineID)
	if err != nil {
		return domain.Eligibility{}, err
	}
	if order.Status != domain.OrderStatusDelivered {
		return domain.Eligibility{Reason: domain.ErrNotDelivered}, nil
	}

	requested, err := s.returns.RequestedQty(lineID)
	if err != nil {
		return domain.Eligibility{}, err
	}
	now := s.now()
	eligibility := domain.ReturnEligibility(order.DeliveryDate, now, line.Qty, requested)
	eligibility.ExchangeEligible = domain.ExchangeEligibility(order.DeliveryDate, now).Eligible
	return eligibility, nil
}

// CreateReturn проверяет владение, окно и остаток, затем создаёт заявку.
// Лимит количества перепроверяется в транзакции хранилища, чтобы закрыть
// гонку между запросом доступности и записью.
func (s *service) CreateReturn(ctx context.Context, caller domain.Caller, input CreateReturnInput) (domain.ReturnRequest, error) {
	if input.Qty <= 0 {
		return domain.ReturnRequest{}, domain.ErrLineQtyInvalid
	}

	order, line, err := s.ownedLine(caller, input.OrderID, input.LineID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if order.Status != domain.OrderStatusDelivered {
		return domain.ReturnRequest{}, domain.ErrNotDelivered
	}

	window := domain.AdjustmentWindow(order.DeliveryDate, s.now())
	if !window.Delivered {
		return domain.ReturnRequest{}, domain.ErrNotDelivered
	}
	if !window.Open {
		return domain.ReturnRequest{}, domain.ErrWindowClosed
	}

	// Сумма возврата фиксируется по цене каталога на момент заявки;
	// последующие изменения цены не меняют уже обещанный возврат.
	product, err := s.products.Get(line.ProductID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	req := domain.ReturnRequest{
		ID:          uuid.NewString(),
		OrderID:     input.OrderID,
		LineID:      input.LineID,
		ProductID:   line.ProductID,
		UserID:      order.UserID,
		Qty:         input.Qty,
		RefundMinor: product.UnitPriceMinor * int64(input.Qty),
		Status:      domain.ReturnStatusRequested,
		EvidenceRef: input.EvidenceRef,
		Reason:      input.Reason,
	}
	created, err := s.returns.Create(req)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	s.logger.WithFields(log.Fields{
		"return_id":    created.ID,
		"order_id":     created.OrderID,
		"line_id":      created.LineID,
		"qty":          created.Qty,
		"refund_minor": created.RefundMinor,
	}).Info("return requested")

	return created, nil
}

// AcceptReturn выполняет операторское принятие возврата. Кредит стока и
// перевод позиции в returned атомарны с переходом в refunded и выполняются
// не более одного раза на заявку.
func (s *service) AcceptReturn(ctx context.Context, caller domain.Caller, id string) (domain.ReturnRequest, error) {
	if !caller.Operator {
		return domain.ReturnRequest{}, domain.ErrForbidden
	}

	req, err := s.returns.Accept(id)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordReturnDecision("refunded")
	}
	s.logger.WithFields(log.Fields{
		"return_id":    req.ID,
		"order_id":     req.OrderID,
		"refund_minor": req.RefundMinor,
	}).Info("return accepted")

	s.appendHistory(req.OrderID, "return_decision", "refunded")
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationReturnDecision,
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Meta: map[string]interface{}{
			"decision":     "refunded",
			"refund_minor": req.RefundMinor,
		},
	})
	return req, nil
}

// RejectReturn отклоняет заявку: позиция получает return_rejected,
// сток не меняется, количество заявки освобождается.
func (s *service) RejectReturn(ctx context.Context, caller domain.Caller, id string) (domain.ReturnRequest, error) {
	if !caller.Operator {
		return domain.ReturnRequest{}, domain.ErrForbidden
	}

	req, err := s.returns.Reject(id)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordReturnDecision("rejected")
	}
	s.logger.WithFields(log.Fields{
		"return_id": req.ID,
		"order_id":  req.OrderID,
	}).Info("return rejected")

	s.appendHistory(req.OrderID, "return_decision", "rejected")
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationReturnDecision,
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Meta:    map[string]interface{}{"decision": "rejected"},
	})
	return req, nil
}

func (s *service) GetReturn(ctx context.Context, caller domain.Caller, id string) (domain.ReturnRequest, error) {
	req, err := s.returns.Get(id)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if !caller.Owns(req.UserID) {
		return domain.ReturnRequest{}, domain.ErrForbidden
	}
	return req, nil
}

func (s *service) ListReturns(ctx context.Context, caller domain.Caller, userID string, limit int) ([]domain.ReturnRequest, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if !caller.Owns(userID) {
		return nil, domain.ErrForbidden
	}
	return s.returns.ListByUser(userID, limit)
}

// CreateExchange проверяет владение и окно и создаёт заявку на обмен.
// Проверка остатка количества не применяется: обмен — замена позиции,
// а не аллокация против неё.
func (s *service) CreateExchange(ctx context.Context, caller domain.Caller, input CreateExchangeInput) (domain.ExchangeRequest, error) {
	if input.NewQty <= 0 {
		return domain.ExchangeRequest{}, domain.ErrLineQtyInvalid
	}
	if input.NewSize == "" {
		return domain.ExchangeRequest{}, domain.ErrSizeRequired
	}

	order, line, err := s.ownedLine(caller, input.OrderID, input.LineID)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	if order.Status != domain.OrderStatusDelivered {
		return domain.ExchangeRequest{}, domain.ErrNotDelivered
	}

	eligibility := domain.ExchangeEligibility(order.DeliveryDate, s.now())
	if !eligibility.Eligible {
		return domain.ExchangeRequest{}, eligibility.Reason
	}

	req := domain.ExchangeRequest{
		ID:        uuid.NewString(),
		OrderID:   input.OrderID,
		LineID:    input.LineID,
		ProductID: line.ProductID,
		UserID:    order.UserID,
		NewQty:    input.NewQty,
		NewSize:   input.NewSize,
		Status:    domain.ExchangeStatusRequested,
		Reason:    input.Reason,
	}
	created, err := s.exchanges.Create(req)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}

	s.logger.WithFields(log.Fields{
		"exchange_id": created.ID,
		"order_id":    created.OrderID,
		"line_id":     created.LineID,
		"new_size":    created.NewSize,
		"new_qty":     created.NewQty,
	}).Info("exchange requested")

	return created, nil
}

// CompleteExchange выполняет операторское завершение обмена: позиция
// переписывается целевыми размером/количеством ровно один раз, сток
// не меняется.
func (s *service) CompleteExchange(ctx context.Context, caller domain.Caller, id string) (domain.ExchangeRequest, error) {
	if !caller.Operator {
		return domain.ExchangeRequest{}, domain.ErrForbidden
	}

	req, err := s.exchanges.Complete(id)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordExchangeDecision("completed")
	}
	s.logger.WithFields(log.Fields{
		"exchange_id": req.ID,
		"order_id":    req.OrderID,
	}).Info("exchange completed")

	s.appendHistory(req.OrderID, "exchange_decision", "completed")
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationExchangeDecision,
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Meta: map[string]interface{}{
			"decision": "completed",
			"new_size": req.NewSize,
			"new_qty":  req.NewQty,
		},
	})
	return req, nil
}

// RejectExchange отклоняет заявку на обмен без мутаций позиции и стока.
func (s *service) RejectExchange(ctx context.Context, caller domain.Caller, id string) (domain.ExchangeRequest, error) {
	if !caller.Operator {
		return domain.ExchangeRequest{}, domain.ErrForbidden
	}

	req, err := s.exchanges.Reject(id)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordExchangeDecision("rejected")
	}
	s.logger.WithFields(log.Fields{
		"exchange_id": req.ID,
		"order_id":    req.OrderID,
	}).Info("exchange rejected")

	s.appendHistory(req.OrderID, "exchange_decision", "rejected")
	s.notifier.Dispatch(domain.Notification{
		Kind:    domain.NotificationExchangeDecision,
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Meta:    map[string]interface{}{"decision": "rejected"},
	})
	return req, nil
}

func (s *service) GetExchange(ctx context.Context, caller domain.Caller, id string) (domain.ExchangeRequest, error) {
	req, err := s.exchanges.Get(id)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	if !caller.Owns(req.UserID) {
		return domain.ExchangeRequest{}, domain.ErrForbidden
	}
	return req, nil
}

func (s *service) ListExchanges(ctx context.Context, caller domain.Caller, userID string, limit int) ([]domain.ExchangeRequest, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if !caller.Owns(userID) {
		return nil, domain.ErrForbidden
	}
	return s.exchanges.ListByUser(userID, limit)
}
