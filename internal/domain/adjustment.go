package domain

import "time"

// ReturnStatus описывает жизненный цикл заявки на возврат.
type ReturnStatus string

const (
	// ReturnStatusRequested — заявка создана покупателем и ждёт решения.
	ReturnStatusRequested ReturnStatus = "requested"
	// ReturnStatusApproved — оператор одобрил возврат, ждём товар.
	ReturnStatusApproved ReturnStatus = "approved"
	// ReturnStatusRejected — возврат отклонён; количество освобождается.
	ReturnStatusRejected ReturnStatus = "rejected"
	// ReturnStatusReceived — товар получен обратно на склад.
	ReturnStatusReceived ReturnStatus = "received"
	// ReturnStatusRefunded — деньги возвращены, сток восстановлен; терминальный статус.
	ReturnStatusRefunded ReturnStatus = "refunded"
)

// CountsAgainstLine сообщает, учитывается ли заявка в сумме уже
// запрошенного к возврату количества позиции.
func (s ReturnStatus) CountsAgainstLine() bool {
	return s != ReturnStatusRejected
}

// ReturnRequest — заявка на частичный или полный возврат позиции заказа.
// Quantity — аллокация против количества позиции, а не абсолют: по одной
// позиции может существовать несколько заявок, пока их сумма не превышает
// заказанное количество.
type ReturnRequest struct {
	ID          string
	OrderID     string
	LineID      string
	ProductID   string
	UserID      string
	Qty         int32
	RefundMinor int64
	Status      ReturnStatus
	EvidenceRef string
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет корректность ключевых полей заявки на возврат.
func (r *ReturnRequest) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if r.LineID == "" {
		errs = append(errs, ErrLineIDRequired)
	}
	if r.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if r.Qty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}
	if r.RefundMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}

// ExchangeStatus описывает жизненный цикл заявки на обмен.
type ExchangeStatus string

const (
	// ExchangeStatusRequested — заявка создана покупателем.
	ExchangeStatusRequested ExchangeStatus = "requested"
	// ExchangeStatusApproved — оператор одобрил обмен.
	ExchangeStatusApproved ExchangeStatus = "approved"
	// ExchangeStatusRejected — обмен отклонён.
	ExchangeStatusRejected ExchangeStatus = "rejected"
	// ExchangeStatusShipped — замена отправлена покупателю.
	ExchangeStatusShipped ExchangeStatus = "shipped"
	// ExchangeStatusCompleted — обмен завершён, позиция переписана; терминальный статус.
	ExchangeStatusCompleted ExchangeStatus = "completed"
)

// ExchangeRequest — заявка на обмен позиции заказа на другой размер или
// количество того же товара. Обмен не меняет сток и не создаёт возврат
// денег: при завершении размер/количество позиции перезаписываются.
type ExchangeRequest struct {
	ID        string
	OrderID   string
	LineID    string
	ProductID string
	UserID    string
	// NewQty и NewSize — целевые значения, а не дельта.
	NewQty  int32
	NewSize string
	// OriginalSize фиксируется при создании заявки для аудита.
	OriginalSize string
	Status       ExchangeStatus
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate проверяет корректность ключевых полей заявки на обмен.
func (e *ExchangeRequest) Validate() []error {
	var errs []error

	if e.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if e.LineID == "" {
		errs = append(errs, ErrLineIDRequired)
	}
	if e.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if e.NewQty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}
	if e.NewSize == "" {
		errs = append(errs, ErrSizeRequired)
	}

	return errs
}
