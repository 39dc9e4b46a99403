package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository создаёт PostgreSQL-реализацию AddressRepository.
func NewAddressRepository(store *Store) domain.AddressRepository {
	return &addressRepository{db: store.DB()}
}

// Get ограничен владельцем: чужой адрес неотличим от несуществующего.
func (r *addressRepository) Get(userID, addressID string) (domain.Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var addr domain.Address
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, line1, line2, city, state, postal_code, phone
		FROM addresses
		WHERE user_id = $1 AND id = $2
	`, userID, addressID).Scan(
		&addr.ID, &addr.Name, &addr.Line1, &addr.Line2,
		&addr.City, &addr.State, &addr.PostalCode, &addr.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return domain.Address{}, fmt.Errorf("select address: %w", err)
	}

	return addr, nil
}

func (r *addressRepository) Put(userID string, addr domain.Address) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, name, line1, line2, city, state, postal_code, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, id) DO UPDATE
		SET name = EXCLUDED.name,
		    line1 = EXCLUDED.line1,
		    line2 = EXCLUDED.line2,
		    city = EXCLUDED.city,
		    state = EXCLUDED.state,
		    postal_code = EXCLUDED.postal_code,
		    phone = EXCLUDED.phone
	`, addr.ID, userID, addr.Name, addr.Line1, addr.Line2, addr.City, addr.State, addr.PostalCode, addr.Phone)
	if err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}

	return nil
}

var _ domain.AddressRepository = (*addressRepository)(nil)
