package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store — общее in-memory хранилище для локальной разработки и тестов.
// Все репозитории пакета разделяют один мьютекс, поэтому составные
// операции (коммит чекаута, принятие возврата) атомарны и для
// конкурентных вызовов.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	carts     map[string][]domain.CartLine
	addresses map[string]map[string]domain.Address
	orders    map[string]domain.Order
	lineIndex map[string]string
	returns   map[string]domain.ReturnRequest
	exchanges map[string]domain.ExchangeRequest
	events    map[string][]domain.OrderEvent
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		carts:     make(map[string][]domain.CartLine),
		addresses: make(map[string]map[string]domain.Address),
		orders:    make(map[string]domain.Order),
		lineIndex: make(map[string]string),
		returns:   make(map[string]domain.ReturnRequest),
		exchanges: make(map[string]domain.ExchangeRequest),
		events:    make(map[string][]domain.OrderEvent),
	}
}

// debitLocked выполняет условное списание стока. Вызывается под mu.
func (s *Store) debitLocked(productID string, qty int32) error {
	product, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.OutOfStock || product.Quantity < qty {
		return domain.ErrInsufficientStock
	}

	product.Quantity -= qty
	product.OutOfStock = product.Quantity == 0
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return nil
}

// creditLocked возвращает сток на склад. Вызывается под mu.
func (s *Store) creditLocked(productID string, qty int32) error {
	product, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}

	product.Quantity += qty
	product.OutOfStock = product.Quantity == 0
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return nil
}

// setItemStatusLocked меняет item_status позиции заказа. Вызывается под mu.
func (s *Store) setItemStatusLocked(lineID string, status domain.ItemStatus) error {
	orderID, ok := s.lineIndex[lineID]
	if !ok {
		return domain.ErrLineNotFound
	}
	order := s.orders[orderID]
	for i := range order.Lines {
		if order.Lines[i].ID == lineID {
			order.Lines[i].ItemStatus = status
			order.Lines[i].UpdatedAt = time.Now().UTC()
			s.orders[orderID] = order
			return nil
		}
	}
	return domain.ErrLineNotFound
}

// lineLocked возвращает копию позиции заказа. Вызывается под mu.
func (s *Store) lineLocked(lineID string) (domain.OrderLine, error) {
	orderID, ok := s.lineIndex[lineID]
	if !ok {
		return domain.OrderLine{}, domain.ErrLineNotFound
	}
	order := s.orders[orderID]
	for _, line := range order.Lines {
		if line.ID == lineID {
			return line, nil
		}
	}
	return domain.OrderLine{}, domain.ErrLineNotFound
}

// requestedQtyLocked суммирует количество по неотклонённым заявкам позиции.
func (s *Store) requestedQtyLocked(lineID string) int32 {
	var total int32
	for _, req := range s.returns {
		if req.LineID == lineID && req.Status.CountsAgainstLine() {
			total += req.Qty
		}
	}
	return total
}

// cloneOrder делает глубокую копию заказа, чтобы избежать мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	return order
}
