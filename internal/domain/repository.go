package domain

import "time"

// ProductRepository — складская книга. Единственная точка мутации
// количества товара; все вызывающие (чекаут, принятие возврата) проходят
// через одни и те же условные операции.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
	// Put сохраняет товар (каталожная загрузка, тесты).
	Put(product Product) error
	// Debit условно списывает qty единиц: "уменьшить, только если на складе
	// не меньше qty". При нехватке — ErrInsufficientStock, состояние не меняется.
	// Если после списания остаток нулевой, выставляется out_of_stock.
	Debit(productID string, qty int32) error
	// Credit возвращает qty единиц на склад и снимает out_of_stock.
	Credit(productID string, qty int32) error
}

// CartRepository хранит корзину пользователя до чекаута.
type CartRepository interface {
	ListByUser(userID string) ([]CartLine, error)
	Add(line CartLine) (CartLine, error)
	Clear(userID string) error
}

// AddressRepository — адресная книга; движку нужен только просмотр
// адреса, ограниченный владельцем.
type AddressRepository interface {
	// Get возвращает адрес пользователя или ErrAddressNotFound,
	// в том числе когда адрес принадлежит другому пользователю.
	Get(userID, addressID string) (Address, error)
	Put(userID string, addr Address) error
}

// CheckoutStore выполняет атомарный коммит оформления заказа:
// условные списания стока по каждой позиции, вставка заказа и его позиций,
// очистка корзины пользователя — всё в одной транзакции. При нехватке
// стока по любой позиции возвращается ErrInsufficientStock и ни одно
// списание не сохраняется.
type CheckoutStore interface {
	Commit(order Order) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByUser возвращает заказы пользователя с ограничением на количество.
	ListByUser(userID string, limit int) ([]Order, error)
	// List возвращает заказы всех пользователей (операторская выборка).
	List(limit int) ([]Order, error)
	// Transition условно переводит заказ в to, только если текущий статус
	// входит в allowedFrom; одновременно записывает или очищает OTP.
	// Несовпадение статуса — ErrIllegalTransition.
	Transition(orderID string, allowedFrom []OrderStatus, to OrderStatus, otp string) (Order, error)
	// SetDeliveryDate переносит дату доставки.
	SetDeliveryDate(orderID string, date time.Time) (Order, error)
	// Delete удаляет заказ вместе с позициями (административный каскад).
	Delete(id string) error
}

// ReturnRepository хранит заявки на возврат. Составные операции атомарны
// на уровне хранилища: проверка лимита количества выполняется в той же
// транзакции, что и вставка, чтобы закрыть гонку read-check-write.
type ReturnRepository interface {
	Get(id string) (ReturnRequest, error)
	ListByUser(userID string, limit int) ([]ReturnRequest, error)
	ListByOrder(orderID string) ([]ReturnRequest, error)
	// RequestedQty возвращает сумму количеств по неотклонённым заявкам позиции.
	RequestedQty(lineID string) (int32, error)
	// Create атомарно пересчитывает уже запрошенное количество, проверяет
	// лимит (ErrReturnableExceeded) и вставляет заявку, переводя позицию
	// в item_status = return_requested.
	Create(req ReturnRequest) (ReturnRequest, error)
	// Accept атомарно переводит заявку в refunded, возвращает сток и ставит
	// позиции item_status = returned. Повторные вызовы — ErrAlreadyFinalized,
	// сток повторно не кредитуется.
	Accept(id string) (ReturnRequest, error)
	// Reject переводит заявку в rejected и позицию в return_rejected;
	// сток не меняется, количество заявки освобождается.
	Reject(id string) (ReturnRequest, error)
	// Transition — условный переход между промежуточными статусами.
	Transition(id string, from, to ReturnStatus) (ReturnRequest, error)
}

// ExchangeRepository хранит заявки на обмен.
type ExchangeRepository interface {
	Get(id string) (ExchangeRequest, error)
	ListByUser(userID string, limit int) ([]ExchangeRequest, error)
	ListByOrder(orderID string) ([]ExchangeRequest, error)
	// Create вставляет заявку и переводит позицию в exchange_requested.
	Create(req ExchangeRequest) (ExchangeRequest, error)
	// Complete атомарно переписывает размер/количество позиции целевыми
	// значениями заявки и ставит item_status = exchanged. Повторные вызовы —
	// ErrAlreadyFinalized; сток не меняется.
	Complete(id string) (ExchangeRequest, error)
	// Reject переводит заявку в rejected и позицию в exchange_rejected.
	Reject(id string) (ExchangeRequest, error)
	// Transition — условный переход между промежуточными статусами.
	Transition(id string, from, to ExchangeStatus) (ExchangeRequest, error)
}
