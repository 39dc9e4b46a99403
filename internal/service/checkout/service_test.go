package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

func (n *recordingNotifier) Dispatch(notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notifications)
}

type fixture struct {
	store    *memory.Store
	products domain.ProductRepository
	carts    domain.CartRepository
	orders   domain.OrderRepository
	gateway  *payment.MockGateway
	notifier *recordingNotifier
	service  Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	products := memory.NewProductRepository(store)
	carts := memory.NewCartRepository(store)
	addresses := memory.NewAddressRepository(store)
	gateway := payment.NewMockGateway()
	notifier := &recordingNotifier{}

	svc := NewServiceWithoutMetrics(
		products,
		carts,
		addresses,
		memory.NewCheckoutStore(store),
		gateway,
		notifier,
		memory.NewHistoryRepository(store),
		"USD",
		nil,
	)

	if err := addresses.Put("user-1", domain.Address{
		ID:    "addr-1",
		Name:  "Jane",
		Line1: "1 Main St",
		City:  "Springfield",
	}); err != nil {
		t.Fatalf("put address: %v", err)
	}

	return &fixture{
		store:    store,
		products: products,
		carts:    carts,
		orders:   memory.NewOrderRepository(store),
		gateway:  gateway,
		notifier: notifier,
		service:  svc,
	}
}

func (f *fixture) seedProduct(t *testing.T, id string, price int64, qty int32) {
	t.Helper()
	if err := f.products.Put(domain.Product{
		ID:             id,
		Name:           "product " + id,
		UnitPriceMinor: price,
		Quantity:       qty,
		OutOfStock:     qty == 0,
	}); err != nil {
		t.Fatalf("put product: %v", err)
	}
}

func (f *fixture) seedCart(t *testing.T, userID, productID string, qty int32, size string) {
	t.Helper()
	if _, err := f.carts.Add(domain.CartLine{
		ID:        userID + "-" + productID,
		UserID:    userID,
		ProductID: productID,
		Qty:       qty,
		Size:      size,
	}); err != nil {
		t.Fatalf("add cart line: %v", err)
	}
}

func TestPlaceCODHappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 10000, 10)
	f.seedCart(t, "user-1", "p-1", 2, "M")

	order, err := f.service.Place(context.Background(), domain.Caller{UserID: "user-1"}, "addr-1")
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if order.AmountMinor != 20000 {
		t.Fatalf("expected total 20000, got %d", order.AmountMinor)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", order.Status)
	}
	if order.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatalf("expected cod, got %s", order.PaymentMethod)
	}
	if len(order.Lines) != 1 || order.Lines[0].ItemStatus != domain.ItemStatusOrdered {
		t.Fatalf("unexpected lines: %+v", order.Lines)
	}
	if !order.DeliveryDate.Equal(order.CreatedAt.AddDate(0, 0, DeliveryOffsetDays)) {
		t.Fatalf("unexpected delivery date: %v", order.DeliveryDate)
	}

	product, err := f.products.Get("p-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 8 {
		t.Fatalf("expected stock 8, got %d", product.Quantity)
	}

	cart, err := f.carts.ListByUser("user-1")
	if err != nil {
		t.Fatalf("list cart: %v", err)
	}
	if len(cart) != 0 {
		t.Fatalf("cart should be empty, got %d lines", len(cart))
	}

	if f.notifier.count() != 1 {
		t.Fatalf("expected one confirmation notification, got %d", f.notifier.count())
	}
	if f.notifier.notifications[0].Kind != domain.NotificationOrderConfirmed {
		t.Fatalf("unexpected notification kind: %s", f.notifier.notifications[0].Kind)
	}
}

func TestPlaceEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Place(context.Background(), domain.Caller{UserID: "user-1"}, "addr-1")
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestPlaceInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 10000, 1)
	f.seedCart(t, "user-1", "p-1", 2, "M")

	_, err := f.service.Place(context.Background(), domain.Caller{UserID: "user-1"}, "addr-1")
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Nothing must be mutated on the conflict path.
	product, err := f.products.Get("p-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 1 {
		t.Fatalf("stock must be untouched, got %d", product.Quantity)
	}
	cart, err := f.carts.ListByUser("user-1")
	if err != nil {
		t.Fatalf("list cart: %v", err)
	}
	if len(cart) != 1 {
		t.Fatalf("cart must be untouched, got %d lines", len(cart))
	}
	if f.notifier.count() != 0 {
		t.Fatalf("no notification expected, got %d", f.notifier.count())
	}
}

func TestPlaceUnknownAddress(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 10000, 5)
	f.seedCart(t, "user-1", "p-1", 1, "M")

	_, err := f.service.Place(context.Background(), domain.Caller{UserID: "user-1"}, "addr-unknown")
	if !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestInitiateValidatesWithoutMutation(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 5000, 4)
	f.seedCart(t, "user-1", "p-1", 3, "L")

	result, err := f.service.Initiate(context.Background(), domain.Caller{UserID: "user-1"}, "addr-1")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if result.AmountMinor != 15000 {
		t.Fatalf("expected total 15000, got %d", result.AmountMinor)
	}
	if result.Currency != "USD" {
		t.Fatalf("unexpected currency: %s", result.Currency)
	}
	if result.Intent.Ref == "" {
		t.Fatal("intent reference must be set")
	}
	if f.gateway.LastAmount != 15000 {
		t.Fatalf("gateway received wrong amount: %d", f.gateway.LastAmount)
	}

	// Initiate is read-only: stock and cart stay as seeded.
	product, err := f.products.Get("p-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 4 {
		t.Fatalf("stock must be untouched, got %d", product.Quantity)
	}
	cart, err := f.carts.ListByUser("user-1")
	if err != nil {
		t.Fatalf("list cart: %v", err)
	}
	if len(cart) != 1 {
		t.Fatalf("cart must be untouched, got %d lines", len(cart))
	}
}

func TestInitiateStockConflictIdentifiesLine(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 5000, 10)
	f.seedProduct(t, "p-2", 3000, 0)
	f.seedCart(t, "user-1", "p-1", 1, "M")
	f.seedCart(t, "user-1", "p-2", 1, "M")

	_, err := f.service.Initiate(context.Background(), domain.Caller{UserID: "user-1"}, "addr-1")
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if f.gateway.CreateCalls != 0 {
		t.Fatal("gateway must not be called on stock conflict")
	}
}

func TestConfirmCommitsAfterSignatureCheck(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 10000, 3)
	f.seedCart(t, "user-1", "p-1", 1, "S")

	order, err := f.service.Confirm(context.Background(), domain.Caller{UserID: "user-1"}, ConfirmRequest{
		IntentRef:  "intent-1",
		PaymentRef: "pay-1",
		Signature:  "sig-1",
		AddressID:  "addr-1",
	})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	if order.PaymentMethod != domain.PaymentMethodGateway {
		t.Fatalf("expected gateway payment, got %s", order.PaymentMethod)
	}
	if order.PaymentIntentID != "intent-1" || order.PaymentRef != "pay-1" {
		t.Fatalf("payment references not persisted: %+v", order)
	}
	if f.gateway.VerifyCalls != 1 {
		t.Fatalf("expected one verify call, got %d", f.gateway.VerifyCalls)
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected stored status: %s", stored.Status)
	}
}

func TestConfirmSignatureMismatchCreatesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 10000, 3)
	f.seedCart(t, "user-1", "p-1", 1, "S")
	f.gateway.VerifyErr = domain.ErrSignatureMismatch

	_, err := f.service.Confirm(context.Background(), domain.Caller{UserID: "user-1"}, ConfirmRequest{
		IntentRef:  "intent-1",
		PaymentRef: "pay-1",
		Signature:  "tampered",
		AddressID:  "addr-1",
	})
	if !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}

	orders, err := f.orders.ListByUser("user-1", 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("no order must be created, got %d", len(orders))
	}
	product, err := f.products.Get("p-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 3 {
		t.Fatalf("stock must be untouched, got %d", product.Quantity)
	}
}

func TestPlaceRequiresUser(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.Place(context.Background(), domain.Caller{}, "addr-1"); !errors.Is(err, domain.ErrUserRequired) {
		t.Fatalf("expected ErrUserRequired, got %v", err)
	}
	if _, err := f.service.Initiate(context.Background(), domain.Caller{}, "addr-1"); !errors.Is(err, domain.ErrUserRequired) {
		t.Fatalf("expected ErrUserRequired, got %v", err)
	}
}

func TestInitiateGatewayFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p-1", 5000, 4)
	f.seedCart(t, "user-1", "p-1", 1, "M")
	f.gateway.CreateErr = domain.ErrGatewayUnavailable

	_, err := f.service.Initiate(context.Background(), domain.Caller{UserID: "user-1"}, "addr-1")
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}
