package memory

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// checkoutStoreInMemory выполняет атомарный коммит чекаута поверх общего Store.
type checkoutStoreInMemory struct {
	store *Store
}

// NewCheckoutStore возвращает in-memory реализацию CheckoutStore.
func NewCheckoutStore(store *Store) domain.CheckoutStore {
	return &checkoutStoreInMemory{store: store}
}

// Commit списывает сток по каждой позиции условно, создаёт заказ с
// позициями и очищает корзину пользователя. Всё выполняется под одним
// захватом мьютекса: либо применяется целиком, либо не применяется вовсе.
func (c *checkoutStoreInMemory) Commit(order domain.Order) error {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return errs[0]
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, exists := c.store.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}

	// Сначала проверяем все списания, не меняя состояние: откатывать
	// частично применённые дебеты здесь нечем.
	need := make(map[string]int32, len(order.Lines))
	for _, line := range order.Lines {
		need[line.ProductID] += line.Qty
	}
	for productID, qty := range need {
		product, ok := c.store.products[productID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if product.OutOfStock || product.Quantity < qty {
			return domain.ErrInsufficientStock
		}
	}

	for productID, qty := range need {
		if err := c.store.debitLocked(productID, qty); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	stored := cloneOrder(order)
	c.store.orders[order.ID] = stored
	for _, line := range stored.Lines {
		c.store.lineIndex[line.ID] = order.ID
	}

	delete(c.store.carts, order.UserID)
	return nil
}

var _ domain.CheckoutStore = (*checkoutStoreInMemory)(nil)
