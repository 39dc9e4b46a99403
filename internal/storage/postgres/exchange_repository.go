package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type exchangeRepository struct {
	db *sql.DB
}

// NewExchangeRepository создаёт PostgreSQL-реализацию ExchangeRepository.
func NewExchangeRepository(store *Store) domain.ExchangeRepository {
	return &exchangeRepository{db: store.DB()}
}

const exchangeColumns = `
	id, order_id, line_id, product_id, user_id, new_qty, new_size,
	original_size, status, reason, created_at, updated_at
`

func scanExchange(row orderScanner) (domain.ExchangeRequest, error) {
	var req domain.ExchangeRequest
	var status string

	err := row.Scan(
		&req.ID, &req.OrderID, &req.LineID, &req.ProductID, &req.UserID,
		&req.NewQty, &req.NewSize, &req.OriginalSize, &status, &req.Reason,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	req.Status = domain.ExchangeStatus(status)
	return req, nil
}

func (r *exchangeRepository) Get(id string) (domain.ExchangeRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req, err := scanExchange(r.db.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchange_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ExchangeRequest{}, domain.ErrExchangeNotFound
		}
		return domain.ExchangeRequest{}, fmt.Errorf("select exchange request: %w", err)
	}

	return req, nil
}

func (r *exchangeRepository) ListByUser(userID string, limit int) ([]domain.ExchangeRequest, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchange_requests WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return r.queryExchanges(query, args...)
}

func (r *exchangeRepository) ListByOrder(orderID string) ([]domain.ExchangeRequest, error) {
	return r.queryExchanges(
		`SELECT `+exchangeColumns+` FROM exchange_requests WHERE order_id = $1 ORDER BY created_at DESC, id DESC`,
		orderID)
}

func (r *exchangeRepository) queryExchanges(query string, args ...any) ([]domain.ExchangeRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exchange requests: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ExchangeRequest, 0)
	for rows.Next() {
		req, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange requests: %w", err)
	}

	return result, nil
}

// Create вставляет заявку, снапшотит исходный размер позиции и переводит
// её в exchange_requested — одной транзакцией.
func (r *exchangeRepository) Create(req domain.ExchangeRequest) (domain.ExchangeRequest, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return domain.ExchangeRequest{}, errs[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var originalSize string
	err = tx.QueryRowContext(ctx,
		`SELECT size FROM order_lines WHERE id = $1 FOR UPDATE`, req.LineID).Scan(&originalSize)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrLineNotFound
		}
		return domain.ExchangeRequest{}, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = domain.ExchangeStatusRequested
	}

	created, err := scanExchange(tx.QueryRowContext(ctx, `
		INSERT INTO exchange_requests (
			id, order_id, line_id, product_id, user_id, new_qty, new_size,
			original_size, status, reason, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
		RETURNING `+exchangeColumns,
		req.ID, req.OrderID, req.LineID, req.ProductID, req.UserID,
		req.NewQty, req.NewSize, originalSize, string(req.Status), req.Reason))
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("insert exchange request: %w", err)
	}

	if err = setItemStatusTx(ctx, tx, req.LineID, domain.ItemStatusExchangeRequested); err != nil {
		return domain.ExchangeRequest{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("commit create exchange: %w", err)
	}

	return created, nil
}

// Complete переписывает размер/количество позиции целевыми значениями
// заявки и помечает её exchanged — атомарно и ровно один раз.
// Сток не меняется: обмен — замена в рамках того же товара.
func (r *exchangeRepository) Complete(id string) (domain.ExchangeRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req, err := scanExchange(tx.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchange_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrExchangeNotFound
		}
		return domain.ExchangeRequest{}, err
	}
	if req.Status == domain.ExchangeStatusCompleted {
		err = domain.ErrAlreadyFinalized
		return req, err
	}
	if req.Status == domain.ExchangeStatusRejected {
		err = domain.ErrIllegalTransition
		return domain.ExchangeRequest{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE order_lines
		SET size = $2,
		    qty = $3,
		    item_status = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, req.LineID, req.NewSize, req.NewQty, string(domain.ItemStatusExchanged))
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("rewrite order line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("rewrite rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrLineNotFound
		return domain.ExchangeRequest{}, err
	}

	req, err = scanExchange(tx.QueryRowContext(ctx, `
		UPDATE exchange_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+exchangeColumns,
		id, string(domain.ExchangeStatusCompleted)))
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("finalize exchange request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("commit complete exchange: %w", err)
	}

	return req, nil
}

// Reject отклоняет заявку; позиция переходит в exchange_rejected.
func (r *exchangeRepository) Reject(id string) (domain.ExchangeRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req, err := scanExchange(tx.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchange_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrExchangeNotFound
		}
		return domain.ExchangeRequest{}, err
	}
	if req.Status == domain.ExchangeStatusCompleted || req.Status == domain.ExchangeStatusRejected {
		err = domain.ErrAlreadyFinalized
		return req, err
	}

	if err = setItemStatusTx(ctx, tx, req.LineID, domain.ItemStatusExchangeRejected); err != nil {
		return domain.ExchangeRequest{}, err
	}

	req, err = scanExchange(tx.QueryRowContext(ctx, `
		UPDATE exchange_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+exchangeColumns,
		id, string(domain.ExchangeStatusRejected)))
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("reject exchange request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("commit reject exchange: %w", err)
	}

	return req, nil
}

// Transition — условный переход между промежуточными статусами.
func (r *exchangeRepository) Transition(id string, from, to domain.ExchangeStatus) (domain.ExchangeRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req, err := scanExchange(r.db.QueryRowContext(ctx, `
		UPDATE exchange_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+exchangeColumns,
		id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var probe string
			probeErr := r.db.QueryRowContext(ctx,
				`SELECT id FROM exchange_requests WHERE id = $1`, id).Scan(&probe)
			if errors.Is(probeErr, sql.ErrNoRows) {
				return domain.ExchangeRequest{}, domain.ErrExchangeNotFound
			}
			if probeErr != nil {
				return domain.ExchangeRequest{}, fmt.Errorf("check exchange exists: %w", probeErr)
			}
			return domain.ExchangeRequest{}, domain.ErrIllegalTransition
		}
		return domain.ExchangeRequest{}, fmt.Errorf("transition exchange request: %w", err)
	}

	return req, nil
}

var _ domain.ExchangeRepository = (*exchangeRepository)(nil)
