package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory хранит корзины пользователей поверх общего Store.
type cartRepositoryInMemory struct {
	store *Store
}

// NewCartRepository возвращает in-memory реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepositoryInMemory{store: store}
}

// ListByUser возвращает позиции корзины пользователя.
func (r *cartRepositoryInMemory) ListByUser(userID string) ([]domain.CartLine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	lines := r.store.carts[userID]
	result := make([]domain.CartLine, len(lines))
	copy(result, lines)
	return result, nil
}

// Add добавляет позицию в корзину; одинаковые товар+размер складываются.
func (r *cartRepositoryInMemory) Add(line domain.CartLine) (domain.CartLine, error) {
	if errs := line.Validate(); len(errs) > 0 {
		return domain.CartLine{}, errs[0]
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	lines := r.store.carts[line.UserID]
	for i := range lines {
		if lines[i].ProductID == line.ProductID && lines[i].Size == line.Size {
			lines[i].Qty += line.Qty
			r.store.carts[line.UserID] = lines
			return lines[i], nil
		}
	}

	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}
	r.store.carts[line.UserID] = append(lines, line)
	return line, nil
}

// Clear удаляет все позиции корзины пользователя.
func (r *cartRepositoryInMemory) Clear(userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.carts, userID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
