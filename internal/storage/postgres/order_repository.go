package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

const orderColumns = `
	id, user_id, status, currency, amount_minor,
	payment_method, payment_intent_id, payment_ref,
	delivery_date, delivery_otp,
	address_id, address_name, address_line1, address_line2,
	address_city, address_state, address_postal_code, address_phone,
	created_at, updated_at
`

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row orderScanner) (domain.Order, error) {
	var order domain.Order
	var status, paymentMethod string

	err := row.Scan(
		&order.ID, &order.UserID, &status, &order.Currency, &order.AmountMinor,
		&paymentMethod, &order.PaymentIntentID, &order.PaymentRef,
		&order.DeliveryDate, &order.DeliveryOTP,
		&order.Address.ID, &order.Address.Name, &order.Address.Line1, &order.Address.Line2,
		&order.Address.City, &order.Address.State, &order.Address.PostalCode, &order.Address.Phone,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	return order, nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := loadLines(ctx, r.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByUser(userID string, limit int) ([]domain.Order, error) {
	return r.list(`WHERE user_id = $1`, limit, userID)
}

func (r *orderRepository) List(limit int) ([]domain.Order, error) {
	return r.list(``, limit)
}

func (r *orderRepository) list(where string, limit int, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		lines, err := loadLines(ctx, r.db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	return orders, nil
}

// Transition переводит заказ одним условным UPDATE: строка меняется, только
// если текущий статус входит в allowedFrom. Проигравший гонку получает
// ErrIllegalTransition.
func (r *orderRepository) Transition(orderID string, allowedFrom []domain.OrderStatus, to domain.OrderStatus, otp string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if len(allowedFrom) == 0 {
		return domain.Order{}, domain.ErrIllegalTransition
	}

	args := []any{orderID, string(to), otp}
	placeholders := make([]string, 0, len(allowedFrom))
	for _, s := range allowedFrom {
		args = append(args, string(s))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2,
		    delivery_otp = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN (`+strings.Join(placeholders, ", ")+`)
		RETURNING `+orderColumns,
		args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, r.classifyMiss(ctx, orderID)
		}
		return domain.Order{}, fmt.Errorf("transition order: %w", err)
	}

	lines, err := loadLines(ctx, r.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) SetDeliveryDate(orderID string, date time.Time) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET delivery_date = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns,
		orderID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("set delivery date: %w", err)
	}

	lines, err := loadLines(ctx, r.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

// Delete удаляет заказ; позиции, заявки и события уходят каскадом.
func (r *orderRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM order_events WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order events: %w", err)
	}

	return nil
}

// classifyMiss различает "заказа нет" и "статус не подошёл" после
// нулевого условного UPDATE.
func (r *orderRepository) classifyMiss(ctx context.Context, orderID string) error {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	return domain.ErrIllegalTransition
}

// queryer покрывает *sql.DB и *sql.Tx для выборок внутри и вне транзакций.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadLines(ctx context.Context, q queryer, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, qty, size, unit_price_minor, item_status, created_at, updated_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		var itemStatus string
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.Qty, &line.Size,
			&line.UnitPriceMinor, &itemStatus, &line.CreatedAt, &line.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.ItemStatus = domain.ItemStatus(itemStatus)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
