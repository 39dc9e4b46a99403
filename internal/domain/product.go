package domain

import "time"

// Product — срез каталожной записи, которым оперирует движок исполнения.
// Каталог владеет карточкой товара целиком; движок мутирует только
// Quantity и OutOfStock через условные операции склада.
type Product struct {
	ID             string
	Name           string
	UnitPriceMinor int64
	Quantity       int32
	OutOfStock     bool
	UpdatedAt      time.Time
}

// Validate проверяет согласованность складских полей товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.Quantity < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if p.UnitPriceMinor < 0 {
		errs = append(errs, ErrLinePriceInvalid)
	}
	if p.OutOfStock != (p.Quantity == 0) {
		errs = append(errs, ErrOutOfStockFlagMismatch)
	}

	return errs
}

// CartLine — позиция корзины пользователя; при чекауте переносится
// в OrderLine с зафиксированными количеством и размером.
type CartLine struct {
	ID        string
	UserID    string
	ProductID string
	Qty       int32
	Size      string
	CreatedAt time.Time
}

// Validate проверяет корректность полей позиции корзины.
func (c *CartLine) Validate() []error {
	var errs []error

	if c.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if c.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if c.Qty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}

	return errs
}
