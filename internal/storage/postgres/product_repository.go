package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, unit_price_minor, quantity, out_of_stock, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.UnitPriceMinor, &p.Quantity, &p.OutOfStock, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

func (r *productRepository) Put(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, unit_price_minor, quantity, out_of_stock, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    unit_price_minor = EXCLUDED.unit_price_minor,
		    quantity = EXCLUDED.quantity,
		    out_of_stock = EXCLUDED.out_of_stock,
		    updated_at = NOW()
	`, product.ID, product.Name, product.UnitPriceMinor, product.Quantity, product.OutOfStock)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}

// Debit условно списывает сток одним UPDATE: строка меняется, только если
// остатка хватает. Ноль затронутых строк означает либо нехватку, либо
// отсутствие товара.
func (r *productRepository) Debit(productID string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return debitTx(ctx, r.db, productID, qty)
}

func (r *productRepository) Credit(productID string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return creditTx(ctx, r.db, productID, qty)
}

// execer покрывает *sql.DB и *sql.Tx, чтобы условные операции со стоком
// одинаково работали вне и внутри транзакций.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func debitTx(ctx context.Context, ex execer, productID string, qty int32) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2,
		    out_of_stock = (quantity - $2 = 0),
		    updated_at = NOW()
		WHERE id = $1
		  AND quantity >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("debit stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		var id string
		err := ex.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, productID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		return fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}

	return nil
}

func creditTx(ctx context.Context, ex execer, productID string, qty int32) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    out_of_stock = FALSE,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("credit stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
