package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// exchangeRepositoryInMemory — заявки на обмен поверх общего Store.
type exchangeRepositoryInMemory struct {
	store *Store
}

// NewExchangeRepository возвращает in-memory реализацию ExchangeRepository.
func NewExchangeRepository(store *Store) domain.ExchangeRepository {
	return &exchangeRepositoryInMemory{store: store}
}

// Get возвращает заявку или ErrExchangeNotFound.
func (r *exchangeRepositoryInMemory) Get(id string) (domain.ExchangeRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	req, ok := r.store.exchanges[id]
	if !ok {
		return domain.ExchangeRequest{}, domain.ErrExchangeNotFound
	}
	return req, nil
}

// ListByUser возвращает заявки пользователя, свежие первыми.
func (r *exchangeRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.ExchangeRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.ExchangeRequest, 0)
	for _, req := range r.store.exchanges {
		if req.UserID == userID {
			result = append(result, req)
		}
	}
	sortExchanges(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByOrder возвращает заявки по заказу.
func (r *exchangeRepositoryInMemory) ListByOrder(orderID string) ([]domain.ExchangeRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.ExchangeRequest, 0)
	for _, req := range r.store.exchanges {
		if req.OrderID == orderID {
			result = append(result, req)
		}
	}
	sortExchanges(result)
	return result, nil
}

// Create вставляет заявку, снапшотит исходный размер позиции и переводит
// её в exchange_requested.
func (r *exchangeRepositoryInMemory) Create(req domain.ExchangeRequest) (domain.ExchangeRequest, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return domain.ExchangeRequest{}, errs[0]
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	line, err := r.store.lineLocked(req.LineID)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}

	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = domain.ExchangeStatusRequested
	}
	req.OriginalSize = line.Size
	req.CreatedAt = now
	req.UpdatedAt = now
	r.store.exchanges[req.ID] = req

	if err := r.store.setItemStatusLocked(req.LineID, domain.ItemStatusExchangeRequested); err != nil {
		delete(r.store.exchanges, req.ID)
		return domain.ExchangeRequest{}, err
	}
	return req, nil
}

// Complete переписывает размер/количество позиции целевыми значениями
// заявки и помечает её exchanged — атомарно и ровно один раз.
// Сток не меняется: обмен — замена в рамках того же товара.
func (r *exchangeRepositoryInMemory) Complete(id string) (domain.ExchangeRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	req, ok := r.store.exchanges[id]
	if !ok {
		return domain.ExchangeRequest{}, domain.ErrExchangeNotFound
	}
	if req.Status == domain.ExchangeStatusCompleted {
		return req, domain.ErrAlreadyFinalized
	}
	if req.Status == domain.ExchangeStatusRejected {
		return domain.ExchangeRequest{}, domain.ErrIllegalTransition
	}

	orderID, ok := r.store.lineIndex[req.LineID]
	if !ok {
		return domain.ExchangeRequest{}, domain.ErrLineNotFound
	}
	order := r.store.orders[orderID]
	for i := range order.Lines {
		if order.Lines[i].ID == req.LineID {
			order.Lines[i].Size = req.NewSize
			order.Lines[i].Qty = req.NewQty
			order.Lines[i].ItemStatus = domain.ItemStatusExchanged
			order.Lines[i].UpdatedAt = time.Now().UTC()
		}
	}
	r.store.orders[orderID] = order

	req.Status = domain.ExchangeStatusCompleted
	req.UpdatedAt = time.Now().UTC()
	r.store.exchanges[id] = req
	return req, nil
}

// Reject отклоняет заявку; позиция переходит в exchange_rejected.
func (r *exchangeRepositoryInMemory) Reject(id string) (domain.ExchangeRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	req, ok := r.store.exchanges[id]
	if !ok {
		return domain.ExchangeRequest{}, domain.ErrExchangeNotFound
	}
	if req.Status == domain.ExchangeStatusCompleted || req.Status == domain.ExchangeStatusRejected {
		return req, domain.ErrAlreadyFinalized
	}

	if err := r.store.setItemStatusLocked(req.LineID, domain.ItemStatusExchangeRejected); err != nil {
		return domain.ExchangeRequest{}, err
	}

	req.Status = domain.ExchangeStatusRejected
	req.UpdatedAt = time.Now().UTC()
	r.store.exchanges[id] = req
	return req, nil
}

// Transition — условный переход между промежуточными статусами.
func (r *exchangeRepositoryInMemory) Transition(id string, from, to domain.ExchangeStatus) (domain.ExchangeRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	req, ok := r.store.exchanges[id]
	if !ok {
		return domain.ExchangeRequest{}, domain.ErrExchangeNotFound
	}
	if req.Status != from {
		return domain.ExchangeRequest{}, domain.ErrIllegalTransition
	}

	req.Status = to
	req.UpdatedAt = time.Now().UTC()
	r.store.exchanges[id] = req
	return req, nil
}

func sortExchanges(reqs []domain.ExchangeRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
}

var _ domain.ExchangeRepository = (*exchangeRepositoryInMemory)(nil)
