package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type returnRepository struct {
	db *sql.DB
}

// NewReturnRepository создаёт PostgreSQL-реализацию ReturnRepository.
func NewReturnRepository(store *Store) domain.ReturnRepository {
	return &returnRepository{db: store.DB()}
}

const returnColumns = `
	id, order_id, line_id, product_id, user_id, qty, refund_minor,
	status, evidence_ref, reason, created_at, updated_at
`

func scanReturn(row orderScanner) (domain.ReturnRequest, error) {
	var req domain.ReturnRequest
	var status string

	err := row.Scan(
		&req.ID, &req.OrderID, &req.LineID, &req.ProductID, &req.UserID,
		&req.Qty, &req.RefundMinor, &status, &req.EvidenceRef, &req.Reason,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	req.Status = domain.ReturnStatus(status)
	return req, nil
}

func (r *returnRepository) Get(id string) (domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req, err := scanReturn(r.db.QueryRowContext(ctx,
		`SELECT `+returnColumns+` FROM return_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReturnRequest{}, domain.ErrReturnNotFound
		}
		return domain.ReturnRequest{}, fmt.Errorf("select return request: %w", err)
	}

	return req, nil
}

func (r *returnRepository) ListByUser(userID string, limit int) ([]domain.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return r.queryReturns(query, args...)
}

func (r *returnRepository) ListByOrder(orderID string) ([]domain.ReturnRequest, error) {
	return r.queryReturns(
		`SELECT `+returnColumns+` FROM return_requests WHERE order_id = $1 ORDER BY created_at DESC, id DESC`,
		orderID)
}

func (r *returnRepository) queryReturns(query string, args ...any) ([]domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ReturnRequest, 0)
	for rows.Next() {
		req, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return requests: %w", err)
	}

	return result, nil
}

func (r *returnRepository) RequestedQty(lineID string) (int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := lineExists(ctx, r.db, lineID); err != nil {
		return 0, err
	}
	return requestedQtyTx(ctx, r.db, lineID)
}

// Create выполняет пересчёт уже запрошенного количества и вставку заявки
// в одной транзакции; позиция блокируется FOR UPDATE, закрывая гонку
// read-check-write между конкурентными заявками.
func (r *returnRepository) Create(req domain.ReturnRequest) (domain.ReturnRequest, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return domain.ReturnRequest{}, errs[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lineQty int32
	err = tx.QueryRowContext(ctx,
		`SELECT qty FROM order_lines WHERE id = $1 FOR UPDATE`, req.LineID).Scan(&lineQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrLineNotFound
		}
		return domain.ReturnRequest{}, err
	}

	requested, err := requestedQtyTx(ctx, tx, req.LineID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if requested+req.Qty > lineQty {
		err = domain.ErrReturnableExceeded
		return domain.ReturnRequest{}, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = domain.ReturnStatusRequested
	}

	created, err := scanReturn(tx.QueryRowContext(ctx, `
		INSERT INTO return_requests (
			id, order_id, line_id, product_id, user_id, qty, refund_minor,
			status, evidence_ref, reason, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
		RETURNING `+returnColumns,
		req.ID, req.OrderID, req.LineID, req.ProductID, req.UserID,
		req.Qty, req.RefundMinor, string(req.Status), req.EvidenceRef, req.Reason))
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("insert return request: %w", err)
	}

	if err = setItemStatusTx(ctx, tx, req.LineID, domain.ItemStatusReturnRequested); err != nil {
		return domain.ReturnRequest{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("commit create return: %w", err)
	}

	return created, nil
}

// Accept атомарно переводит заявку в refunded, кредитует сток и помечает
// позицию как returned. Повторное принятие — ErrAlreadyFinalized, сток
// повторно не кредитуется.
func (r *returnRepository) Accept(id string) (domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req, err := scanReturn(tx.QueryRowContext(ctx,
		`SELECT `+returnColumns+` FROM return_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrReturnNotFound
		}
		return domain.ReturnRequest{}, err
	}
	if req.Status == domain.ReturnStatusRefunded {
		err = domain.ErrAlreadyFinalized
		return req, err
	}
	if req.Status == domain.ReturnStatusRejected {
		err = domain.ErrIllegalTransition
		return domain.ReturnRequest{}, err
	}

	if err = creditTx(ctx, tx, req.ProductID, req.Qty); err != nil {
		return domain.ReturnRequest{}, err
	}
	if err = setItemStatusTx(ctx, tx, req.LineID, domain.ItemStatusReturned); err != nil {
		return domain.ReturnRequest{}, err
	}

	req, err = scanReturn(tx.QueryRowContext(ctx, `
		UPDATE return_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+returnColumns,
		id, string(domain.ReturnStatusRefunded)))
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("finalize return request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("commit accept return: %w", err)
	}

	return req, nil
}

// Reject отклоняет заявку; сток не меняется, количество освобождается.
func (r *returnRepository) Reject(id string) (domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req, err := scanReturn(tx.QueryRowContext(ctx,
		`SELECT `+returnColumns+` FROM return_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrReturnNotFound
		}
		return domain.ReturnRequest{}, err
	}
	if req.Status == domain.ReturnStatusRefunded || req.Status == domain.ReturnStatusRejected {
		err = domain.ErrAlreadyFinalized
		return req, err
	}

	if err = setItemStatusTx(ctx, tx, req.LineID, domain.ItemStatusReturnRejected); err != nil {
		return domain.ReturnRequest{}, err
	}

	req, err = scanReturn(tx.QueryRowContext(ctx, `
		UPDATE return_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+returnColumns,
		id, string(domain.ReturnStatusRejected)))
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("reject return request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("commit reject return: %w", err)
	}

	return req, nil
}

// Transition — условный переход между промежуточными статусами.
func (r *returnRepository) Transition(id string, from, to domain.ReturnStatus) (domain.ReturnRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req, err := scanReturn(r.db.QueryRowContext(ctx, `
		UPDATE return_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+returnColumns,
		id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var probe string
			probeErr := r.db.QueryRowContext(ctx,
				`SELECT id FROM return_requests WHERE id = $1`, id).Scan(&probe)
			if errors.Is(probeErr, sql.ErrNoRows) {
				return domain.ReturnRequest{}, domain.ErrReturnNotFound
			}
			if probeErr != nil {
				return domain.ReturnRequest{}, fmt.Errorf("check return exists: %w", probeErr)
			}
			return domain.ReturnRequest{}, domain.ErrIllegalTransition
		}
		return domain.ReturnRequest{}, fmt.Errorf("transition return request: %w", err)
	}

	return req, nil
}

// requestedQtyTx суммирует количества по неотклонённым заявкам позиции.
func requestedQtyTx(ctx context.Context, q queryer, lineID string) (int32, error) {
	var requested int32
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(qty), 0)
		FROM return_requests
		WHERE line_id = $1
		  AND status <> $2
	`, lineID, string(domain.ReturnStatusRejected)).Scan(&requested)
	if err != nil {
		return 0, fmt.Errorf("sum requested qty: %w", err)
	}
	return requested, nil
}

func lineExists(ctx context.Context, q queryer, lineID string) error {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM order_lines WHERE id = $1`, lineID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrLineNotFound
	}
	if err != nil {
		return fmt.Errorf("check line exists: %w", err)
	}
	return nil
}

func setItemStatusTx(ctx context.Context, ex execer, lineID string, status domain.ItemStatus) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE order_lines
		SET item_status = $2, updated_at = NOW()
		WHERE id = $1
	`, lineID, string(status))
	if err != nil {
		return fmt.Errorf("set item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("item status rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

var _ domain.ReturnRepository = (*returnRepository)(nil)
