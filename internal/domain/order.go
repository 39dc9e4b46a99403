package domain

import "time"

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// OrderStatusPlaced — заказ зафиксирован, но ещё не подтверждён оператором.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusConfirmed — заказ подтверждён; начальный статус после чекаута.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPacked — заказ собран и упакован.
	OrderStatusPacked OrderStatus = "packed"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery — курьер в пути; для заказа выпущен OTP.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ вручён; терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до отгрузки; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к закрытому множеству.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusPacked,
		OrderStatusShipped, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, допускает ли статус дальнейшие переходы.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodCOD — оплата при получении.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodGateway — онлайн-оплата через платёжный шлюз.
	PaymentMethodGateway PaymentMethod = "gateway"
)

// ItemStatus отражает состояние отдельной позиции заказа
// в цикле возврата/обмена.
type ItemStatus string

const (
	ItemStatusOrdered           ItemStatus = "ordered"
	ItemStatusReturnRequested   ItemStatus = "return_requested"
	ItemStatusReturned          ItemStatus = "returned"
	ItemStatusReturnRejected    ItemStatus = "return_rejected"
	ItemStatusExchangeRequested ItemStatus = "exchange_requested"
	ItemStatusExchanged         ItemStatus = "exchanged"
	ItemStatusExchangeRejected  ItemStatus = "exchange_rejected"
)

// Address — снапшот адреса доставки, встраиваемый в заказ.
// Живой ссылки на адресную книгу заказ не хранит.
type Address struct {
	ID         string
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Phone      string
}

// OrderLine представляет одну позицию заказа. Количество и размер
// фиксируются в момент чекаута и меняются только циклом обмена.
type OrderLine struct {
	ID             string
	OrderID        string
	ProductID      string
	Qty            int32
	Size           string
	UnitPriceMinor int64
	ItemStatus     ItemStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID            string
	UserID        string
	Status        OrderStatus
	Address       Address
	Currency      string
	AmountMinor   int64
	PaymentMethod PaymentMethod
	// PaymentIntentID и PaymentRef заполняются только для gateway-оплаты.
	PaymentIntentID string
	PaymentRef      string
	DeliveryDate    time.Time
	// DeliveryOTP непустой тогда и только тогда, когда статус out_for_delivery.
	DeliveryOTP string
	Lines       []OrderLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}
	if (o.DeliveryOTP != "") != (o.Status == OrderStatusOutForDelivery) {
		errs = append(errs, ErrOTPInvariant)
	}

	// Сверяем сумму заказа с суммой позиций: qty * unit price.
	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += int64(line.Qty) * line.UnitPriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Line возвращает позицию заказа по идентификатору.
func (o *Order) Line(lineID string) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ID == lineID {
			return line, true
		}
	}
	return OrderLine{}, false
}
