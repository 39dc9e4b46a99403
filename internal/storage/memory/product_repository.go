package memory

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — складская книга поверх общего Store.
type productRepositoryInMemory struct {
	store *Store
}

// NewProductRepository возвращает in-memory реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepositoryInMemory{store: store}
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Put сохраняет товар, выравнивая флаг out_of_stock с остатком.
func (r *productRepositoryInMemory) Put(product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if product.Quantity < 0 {
		return domain.ErrStockNegative
	}
	product.OutOfStock = product.Quantity == 0
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}
	r.store.products[product.ID] = product
	return nil
}

// Debit условно списывает qty единиц со склада.
func (r *productRepositoryInMemory) Debit(productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.debitLocked(productID, qty)
}

// Credit возвращает qty единиц на склад.
func (r *productRepositoryInMemory) Credit(productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrLineQtyInvalid
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.creditLocked(productID, qty)
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
