package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной денежной суммы.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве (<= 0).
	ErrLineQtyInvalid = errors.New("qty must be greater than zero")
	// Ошибка, если цена отрицательная.
	ErrLinePriceInvalid = errors.New("unit price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match lines sum")
	// Ошибка неизвестного статуса заказа.
	ErrStatusUnknown = errors.New("unknown order status")
	// Ошибка нарушения инварианта OTP: код выпущен вне out_for_delivery.
	ErrOTPInvariant = errors.New("delivery otp must be set only while out for delivery")
	// Ошибка отрицательного остатка на складе.
	ErrStockNegative = errors.New("product quantity must be non-negative")
	// Ошибка рассинхронизации флага out_of_stock с количеством.
	ErrOutOfStockFlagMismatch = errors.New("out_of_stock flag does not match quantity")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора позиции заказа.
	ErrLineIDRequired = errors.New("line_id is required")
	// Ошибка отсутствующего размера в заявке на обмен.
	ErrSizeRequired = errors.New("size is required")

	// ErrEmptyCart возвращается при попытке чекаута с пустой корзиной.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLineNotFound возвращается, если позиция заказа не найдена.
	ErrLineNotFound = errors.New("order line not found")
	// ErrAddressNotFound возвращается, если адрес не найден или принадлежит другому пользователю.
	ErrAddressNotFound = errors.New("address not found")
	// ErrReturnNotFound возвращается, если заявка на возврат не найдена.
	ErrReturnNotFound = errors.New("return request not found")
	// ErrExchangeNotFound возвращается, если заявка на обмен не найдена.
	ErrExchangeNotFound = errors.New("exchange request not found")
	// ErrForbidden возвращается, когда ресурс существует, но принадлежит другому пользователю.
	ErrForbidden = errors.New("caller does not own this resource")

	// ErrInsufficientStock — условное списание не прошло: на складе меньше, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderExists — заказ с таким идентификатором уже сохранён.
	ErrOrderExists = errors.New("order already exists")
	// ErrIllegalTransition — переход статуса не разрешён из текущего состояния.
	ErrIllegalTransition = errors.New("status transition is not allowed")
	// ErrAlreadyFinalized — заявка уже в терминально-принятом состоянии; повторное принятие — no-op.
	ErrAlreadyFinalized = errors.New("request already finalized")
	// ErrReturnableExceeded — запрошенное количество превышает остаток, доступный к возврату.
	ErrReturnableExceeded = errors.New("qty exceeds returnable quantity")
	// ErrNotDelivered — заказ ещё не доставлен, окно корректировок не открыто.
	ErrNotDelivered = errors.New("order is not delivered yet")
	// ErrWindowClosed — окно возврата/обмена истекло.
	ErrWindowClosed = errors.New("adjustment window is closed")
	// ErrNothingReturnable — по позиции не осталось количества к возврату.
	ErrNothingReturnable = errors.New("nothing left to return for this line")

	// ErrSignatureMismatch — подпись платёжного колбэка не прошла проверку.
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	// ErrGatewayRejected — шлюз отклонил запрос (4xx).
	ErrGatewayRejected = errors.New("payment gateway rejected request")
	// ErrGatewayUnavailable — шлюз недоступен, можно повторить позже.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayInternal — внутренняя ошибка шлюза (5xx).
	ErrGatewayInternal = errors.New("payment gateway internal error")
)

// IsValidation проверяет, относится ли ошибка к классу ошибок валидации входа.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrUserRequired),
		errors.Is(err, ErrCurrencyRequired),
		errors.Is(err, ErrLinesRequired),
		errors.Is(err, ErrAmountNegative),
		errors.Is(err, ErrLineQtyInvalid),
		errors.Is(err, ErrLinePriceInvalid),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrStatusUnknown),
		errors.Is(err, ErrProductIDRequired),
		errors.Is(err, ErrOrderIDRequired),
		errors.Is(err, ErrLineIDRequired),
		errors.Is(err, ErrSizeRequired),
		errors.Is(err, ErrEmptyCart):
		return true
	default:
		return false
	}
}

// IsNotFound проверяет, относится ли ошибка к классу not-found.
func IsNotFound(err error) bool {
	switch {
	case errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrLineNotFound),
		errors.Is(err, ErrAddressNotFound),
		errors.Is(err, ErrReturnNotFound),
		errors.Is(err, ErrExchangeNotFound):
		return true
	default:
		return false
	}
}

// IsConflict проверяет, относится ли ошибка к классу конфликтов: гонка за
// сток, недопустимый переход, исчерпанное окно или лимит количества.
// Такие ошибки не повторяются автоматически — решение за вызывающей стороной.
func IsConflict(err error) bool {
	switch {
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrOrderExists),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrReturnableExceeded),
		errors.Is(err, ErrNotDelivered),
		errors.Is(err, ErrWindowClosed),
		errors.Is(err, ErrNothingReturnable):
		return true
	default:
		return false
	}
}

// IsUpstream проверяет, относится ли ошибка к отказам платёжного шлюза.
func IsUpstream(err error) bool {
	switch {
	case errors.Is(err, ErrSignatureMismatch),
		errors.Is(err, ErrGatewayRejected),
		errors.Is(err, ErrGatewayUnavailable),
		errors.Is(err, ErrGatewayInternal):
		return true
	default:
		return false
	}
}
