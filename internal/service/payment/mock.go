package payment

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	mu sync.Mutex

	IntentRef  string
	CreateErr  error
	VerifyErr  error
	LastAmount int64

	CreateCalls int
	VerifyCalls int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{IntentRef: "intent-mock-1"}
}

// CreateIntent возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) CreateIntent(_ context.Context, amountMinor int64, currency, _ string) (domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	m.LastAmount = amountMinor
	if m.CreateErr != nil {
		return domain.PaymentIntent{}, m.CreateErr
	}
	return domain.PaymentIntent{Ref: m.IntentRef, AmountMinor: amountMinor, Currency: currency}, nil
}

// VerifySignature возвращает настроенную ошибку и считает вызовы.
func (m *MockGateway) VerifySignature(_, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VerifyCalls++
	return m.VerifyErr
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
