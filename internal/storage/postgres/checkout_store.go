package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type checkoutStore struct {
	db *sql.DB
}

// NewCheckoutStore создаёт PostgreSQL-реализацию CheckoutStore.
func NewCheckoutStore(store *Store) domain.CheckoutStore {
	return &checkoutStore{db: store.DB()}
}

// Commit проводит оформление заказа одной транзакцией: условные списания
// стока по каждой позиции, вставка заказа и позиций, очистка корзины.
// Нехватка стока по любой позиции откатывает всё.
func (s *checkoutStore) Commit(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, line := range order.Lines {
		if err = debitTx(ctx, tx, line.ProductID, line.Qty); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, status, currency, amount_minor,
			payment_method, payment_intent_id, payment_ref,
			delivery_date, delivery_otp,
			address_id, address_name, address_line1, address_line2,
			address_city, address_state, address_postal_code, address_phone,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		order.ID, order.UserID, string(order.Status), order.Currency, order.AmountMinor,
		string(order.PaymentMethod), order.PaymentIntentID, order.PaymentRef,
		order.DeliveryDate, order.DeliveryOTP,
		order.Address.ID, order.Address.Name, order.Address.Line1, order.Address.Line2,
		order.Address.City, order.Address.State, order.Address.PostalCode, order.Address.Phone,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrOrderExists
			return err
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, product_id, qty, size, unit_price_minor, item_status, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
		`,
			line.ID, order.ID, line.ProductID, line.Qty, line.Size,
			line.UnitPriceMinor, string(line.ItemStatus),
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, order.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.CheckoutStore = (*checkoutStore)(nil)
