package memory

import (
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// addressRepositoryInMemory — адресная книга поверх общего Store.
type addressRepositoryInMemory struct {
	store *Store
}

// NewAddressRepository возвращает in-memory реализацию AddressRepository.
func NewAddressRepository(store *Store) domain.AddressRepository {
	return &addressRepositoryInMemory{store: store}
}

// Get возвращает адрес пользователя. Чужой или несуществующий адрес
// неразличимы для вызывающего: в обоих случаях ErrAddressNotFound.
func (r *addressRepositoryInMemory) Get(userID, addressID string) (domain.Address, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	book, ok := r.store.addresses[userID]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	addr, ok := book[addressID]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return addr, nil
}

// Put сохраняет адрес в книге пользователя.
func (r *addressRepositoryInMemory) Put(userID string, addr domain.Address) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	book, ok := r.store.addresses[userID]
	if !ok {
		book = make(map[string]domain.Address)
		r.store.addresses[userID] = book
	}
	book[addr.ID] = addr
	return nil
}

var _ domain.AddressRepository = (*addressRepositoryInMemory)(nil)
