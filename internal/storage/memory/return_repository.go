package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// returnRepositoryInMemory — заявки на возврат поверх общего Store.
type returnRepositoryInMemory struct {
	store *Store
}

// NewReturnRepository возвращает in-memory реализацию ReturnRepository.
func NewReturnRepository(store *Store) domain.ReturnRepository {
	return &returnRepositoryInMemory{store: store}
}

// Get возвращает заявку или ErrReturnNotFound.
func (r *returnRepositoryInMemory) Get(id string) (domain.ReturnRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	req, ok := r.store.returns[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnNotFound
	}
	return req, nil
}

// ListByUser возвращает заявки пользователя, свежие первыми.
func (r *returnRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.ReturnRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.ReturnRequest, 0)
	for _, req := range r.store.returns {
		if req.UserID == userID {
			result = append(result, req)
		}
	}
	sortReturns(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByOrder возвращает заявки по заказу.
func (r *returnRepositoryInMemory) ListByOrder(orderID string) ([]domain.ReturnRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.ReturnRequest, 0)
	for _, req := range r.store.returns {
		if req.OrderID == orderID {
			result = append(result, req)
		}
	}
	sortReturns(result)
	return result, nil
}

// RequestedQty возвращает сумму количеств по неотклонённым заявкам позиции.
func (r *returnRepositoryInMemory) RequestedQty(lineID string) (int32, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if _, err := r.store.lineLocked(lineID); err != nil {
		return 0, err
	}
	return r.store.requestedQtyLocked(lineID), nil
}

// Create пересчитывает уже запрошенное количество и вставляет заявку
// под одним захватом мьютекса, закрывая гонку между проверкой
// доступности и записью.
func (r *returnRepositoryInMemory) Create(req domain.ReturnRequest) (domain.ReturnRequest, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return domain.ReturnRequest{}, errs[0]
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	line, err := r.store.lineLocked(req.LineID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	requested := r.store.requestedQtyLocked(req.LineID)
	if requested+req.Qty > line.Qty {
		return domain.ReturnRequest{}, domain.ErrReturnableExceeded
	}

	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = domain.ReturnStatusRequested
	}
	req.CreatedAt = now
	req.UpdatedAt = now
	r.store.returns[req.ID] = req

	if err := r.store.setItemStatusLocked(req.LineID, domain.ItemStatusReturnRequested); err != nil {
		delete(r.store.returns, req.ID)
		return domain.ReturnRequest{}, err
	}
	return req, nil
}

// Accept переводит заявку в refunded, возвращает сток и помечает позицию
// как returned — всё атомарно. Повторное принятие — ErrAlreadyFinalized,
// сток повторно не кредитуется.
func (r *returnRepositoryInMemory) Accept(id string) (domain.ReturnRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	req, ok := r.store.returns[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnNotFound
	}
	if req.Status == domain.ReturnStatusRefunded {
		return req, domain.ErrAlreadyFinalized
	}
	if req.Status == domain.ReturnStatusRejected {
		return domain.ReturnRequest{}, domain.ErrIllegalTransition
	}

	if err := r.store.creditLocked(req.ProductID, req.Qty); err != nil {
		return domain.ReturnRequest{}, err
	}
	if err := r.store.setItemStatusLocked(req.LineID, domain.ItemStatusReturned); err != nil {
		// Компенсация кредита, чтобы состояние не разъезжалось.
		_ = r.store.debitLocked(req.ProductID, req.Qty)
		return domain.ReturnRequest{}, err
	}

	req.Status = domain.ReturnStatusRefunded
	req.UpdatedAt = time.Now().UTC()
	r.store.returns[id] = req
	return req, nil
}

// Reject отклоняет заявку; сток не меняется, количество освобождается.
func (r *returnRepositoryInMemory) Reject(id string) (domain.ReturnRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	req, ok := r.store.returns[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnNotFound
	}
	if req.Status == domain.ReturnStatusRefunded || req.Status == domain.ReturnStatusRejected {
		return req, domain.ErrAlreadyFinalized
	}

	if err := r.store.setItemStatusLocked(req.LineID, domain.ItemStatusReturnRejected); err != nil {
		return domain.ReturnRequest{}, err
	}

	req.Status = domain.ReturnStatusRejected
	req.UpdatedAt = time.Now().UTC()
	r.store.returns[id] = req
	return req, nil
}

// Transition — условный переход между промежуточными статусами.
func (r *returnRepositoryInMemory) Transition(id string, from, to domain.ReturnStatus) (domain.ReturnRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	req, ok := r.store.returns[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnNotFound
	}
	if req.Status != from {
		return domain.ReturnRequest{}, domain.ErrIllegalTransition
	}

	req.Status = to
	req.UpdatedAt = time.Now().UTC()
	r.store.returns[id] = req
	return req, nil
}

func sortReturns(reqs []domain.ReturnRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
}

var _ domain.ReturnRepository = (*returnRepositoryInMemory)(nil)
