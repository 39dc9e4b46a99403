package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var (
	owner    = domain.Caller{UserID: "user-1"}
	stranger = domain.Caller{UserID: "user-2"}
	operator = domain.Caller{UserID: "op-1", Operator: true}
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

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]domain.NotificationKind, 0, len(n.notifications))
	for _, notification := range n.notifications {
		kinds = append(kinds, notification.Kind)
	}
	return kinds
}

type fixture struct {
	store    *memory.Store
	orders   domain.OrderRepository
	history  domain.HistoryRepository
	notifier *recordingNotifier
	service  Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	history := memory.NewHistoryRepository(store)
	notifier := &recordingNotifier{}

	return &fixture{
		store:    store,
		orders:   orders,
		history:  history,
		notifier: notifier,
		service:  NewServiceWithoutMetrics(orders, history, notifier, nil),
	}
}

// seedOrder commits a one-line order for user-1 in the given status.
func (f *fixture) seedOrder(t *testing.T, orderID string, status domain.OrderStatus) {
	t.Helper()

	products := memory.NewProductRepository(f.store)
	if err := products.Put(domain.Product{
		ID:             "p-" + orderID,
		Name:           "product",
		UnitPriceMinor: 1000,
		Quantity:       10,
	}); err != nil {
		t.Fatalf("put product: %v", err)
	}

	now := time.Now()
	order := domain.Order{
		ID:            orderID,
		UserID:        "user-1",
		Status:        status,
		Address:       domain.Address{ID: "addr-1", Line1: "1 Main St"},
		Currency:      "USD",
		AmountMinor:   1000,
		PaymentMethod: domain.PaymentMethodCOD,
		DeliveryDate:  now.AddDate(0, 0, 3),
		Lines: []domain.OrderLine{{
			ID:             orderID + "-l1",
			OrderID:        orderID,
			ProductID:      "p-" + orderID,
			Qty:            1,
			Size:           "M",
			UnitPriceMinor: 1000,
			ItemStatus:     domain.ItemStatusOrdered,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := memory.NewCheckoutStore(f.store).Commit(order); err != nil {
		t.Fatalf("commit order: %v", err)
	}
}

func TestUpdateStatusFullSequenceKeepsOTPInvariant(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	steps := []domain.OrderStatus{
		domain.OrderStatusPacked,
		domain.OrderStatusShipped,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered,
	}
	for _, to := range steps {
		order, err := f.service.UpdateStatus(context.Background(), operator, "o-1", to)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", to, err)
		}
		// OTP is present exactly while the courier is out.
		if to == domain.OrderStatusOutForDelivery {
			if len(order.DeliveryOTP) != 6 {
				t.Fatalf("expected 6-digit otp, got %q", order.DeliveryOTP)
			}
			for _, c := range order.DeliveryOTP {
				if c < '0' || c > '9' {
					t.Fatalf("otp must be numeric, got %q", order.DeliveryOTP)
				}
			}
		} else if order.DeliveryOTP != "" {
			t.Fatalf("otp must be empty in %s, got %q", to, order.DeliveryOTP)
		}
		if errs := order.ValidateInvariants(); len(errs) != 0 {
			t.Fatalf("invariants violated in %s: %v", to, errs)
		}
	}

	events, err := f.history.List("o-1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(events) != len(steps) {
		t.Fatalf("expected %d history events, got %d", len(steps), len(events))
	}
	if got := f.notifier.kinds(); len(got) != len(steps) {
		t.Fatalf("expected %d notifications, got %d", len(steps), len(got))
	}
}

func TestUpdateStatusSkippingEdgeRejected(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	_, err := f.service.UpdateStatus(context.Background(), operator, "o-1", domain.OrderStatusShipped)
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	// Terminal statuses allow no further transitions.
	f.seedOrder(t, "o-2", domain.OrderStatusCancelled)
	_, err = f.service.UpdateStatus(context.Background(), operator, "o-2", domain.OrderStatusConfirmed)
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition from cancelled, got %v", err)
	}
}

func TestUpdateStatusAccessControl(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	if _, err := f.service.UpdateStatus(context.Background(), owner, "o-1", domain.OrderStatusPacked); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-operator, got %v", err)
	}
	if _, err := f.service.UpdateStatus(context.Background(), operator, "missing", domain.OrderStatusPacked); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := f.service.UpdateStatus(context.Background(), operator, "o-1", domain.OrderStatus("bogus")); !errors.Is(err, domain.ErrStatusUnknown) {
		t.Fatalf("expected ErrStatusUnknown, got %v", err)
	}
	if _, err := f.service.UpdateStatus(context.Background(), operator, "o-1", domain.OrderStatusPlaced); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for placed target, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	order, err := f.service.Cancel(context.Background(), owner, "o-1")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}

	// Re-cancelling a terminal order is a conflict, not a silent no-op.
	if _, err := f.service.Cancel(context.Background(), owner, "o-1"); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestCancelAfterShipmentRejected(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusShipped)

	_, err := f.service.Cancel(context.Background(), owner, "o-1")
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestCancelOwnership(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	if _, err := f.service.Cancel(context.Background(), stranger, "o-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// Operators may cancel on the user's behalf.
	if _, err := f.service.Cancel(context.Background(), operator, "o-1"); err != nil {
		t.Fatalf("operator cancel failed: %v", err)
	}
}

func TestCancelRace(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	const attempts = 4
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Cancel(context.Background(), owner, "o-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrIllegalTransition):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one winner, got wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestSetDeliveryDate(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	date := time.Now().AddDate(0, 0, 10)
	order, err := f.service.SetDeliveryDate(context.Background(), operator, "o-1", date)
	if err != nil {
		t.Fatalf("set delivery date failed: %v", err)
	}
	if !order.DeliveryDate.Equal(date) {
		t.Fatalf("delivery date not applied: %v", order.DeliveryDate)
	}

	if _, err := f.service.SetDeliveryDate(context.Background(), owner, "o-1", date); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	kinds := f.notifier.kinds()
	if len(kinds) != 1 || kinds[0] != domain.NotificationDeliveryDateChanged {
		t.Fatalf("expected delivery date notification, got %v", kinds)
	}
}

func TestGetAndLists(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	view, err := f.service.Get(context.Background(), owner, "o-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.Order.ID != "o-1" {
		t.Fatalf("unexpected order: %+v", view.Order)
	}

	if _, err := f.service.Get(context.Background(), stranger, "o-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.Get(context.Background(), operator, "o-1"); err != nil {
		t.Fatalf("operator get failed: %v", err)
	}

	orders, err := f.service.ListByUser(context.Background(), owner, "user-1", 10)
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected one order, got %d", len(orders))
	}

	if _, err := f.service.ListByUser(context.Background(), stranger, "user-1", 10); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if _, err := f.service.List(context.Background(), owner, 10); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for user list, got %v", err)
	}
	all, err := f.service.List(context.Background(), operator, 10)
	if err != nil {
		t.Fatalf("operator list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one order, got %d", len(all))
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "o-1", domain.OrderStatusConfirmed)

	if err := f.service.Delete(context.Background(), owner, "o-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.service.Delete(context.Background(), operator, "o-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := f.orders.Get("o-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
}

func TestGenerateOTP(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		otp, err := generateOTP()
		if err != nil {
			t.Fatalf("generate otp: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("expected 6 digits, got %q", otp)
		}
		seen[otp] = true
	}
	// 32 draws from a million values colliding every time is implausible.
	if len(seen) < 2 {
		t.Fatal("otp generator returned a constant value")
	}
}
