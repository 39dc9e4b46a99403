package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// historyRepositoryInMemory хранит события заказов поверх общего Store.
type historyRepositoryInMemory struct {
	store *Store
}

// NewHistoryRepository создаёт in-memory реализацию HistoryRepository.
func NewHistoryRepository(store *Store) domain.HistoryRepository {
	return &historyRepositoryInMemory{store: store}
}

// Append добавляет событие в историю заказа.
func (r *historyRepositoryInMemory) Append(event domain.OrderEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.events[event.OrderID] = append(r.store.events[event.OrderID], event)

	sort.Slice(r.store.events[event.OrderID], func(i, j int) bool {
		return r.store.events[event.OrderID][i].Occurred.Before(r.store.events[event.OrderID][j].Occurred)
	})

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *historyRepositoryInMemory) List(orderID string) ([]domain.OrderEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := r.store.events[orderID]
	result := make([]domain.OrderEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.HistoryRepository = (*historyRepositoryInMemory)(nil)
