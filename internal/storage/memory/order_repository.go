package memory

import (
	"slices"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory — хранилище заказов поверх общего Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.store.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
	}
	return sortAndLimit(result, limit), nil
}

// List возвращает заказы всех пользователей (операторская выборка).
func (r *orderRepositoryInMemory) List(limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		result = append(result, cloneOrder(order))
	}
	return sortAndLimit(result, limit), nil
}

// Transition условно переводит заказ в новый статус. Переход выполняется,
// только если текущий статус входит в allowedFrom; проигравший гонку
// получает ErrIllegalTransition.
func (r *orderRepositoryInMemory) Transition(orderID string, allowedFrom []domain.OrderStatus, to domain.OrderStatus, otp string) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, ok := r.store.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !slices.Contains(allowedFrom, order.Status) {
		return domain.Order{}, domain.ErrIllegalTransition
	}

	order.Status = to
	order.DeliveryOTP = otp
	order.UpdatedAt = time.Now().UTC()
	r.store.orders[orderID] = order
	return cloneOrder(order), nil
}

// SetDeliveryDate переносит дату доставки заказа.
func (r *orderRepositoryInMemory) SetDeliveryDate(orderID string, date time.Time) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, ok := r.store.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order.DeliveryDate = date
	order.UpdatedAt = time.Now().UTC()
	r.store.orders[orderID] = order
	return cloneOrder(order), nil
}

// Delete удаляет заказ вместе с позициями и историей.
func (r *orderRepositoryInMemory) Delete(id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for _, line := range order.Lines {
		delete(r.store.lineIndex, line.ID)
	}
	delete(r.store.orders, id)
	delete(r.store.events, id)
	return nil
}

func sortAndLimit(orders []domain.Order, limit int) []domain.Order {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
