package adjustment

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

type fixture struct {
	store    *memory.Store
	products domain.ProductRepository
	orders   domain.OrderRepository
	history  domain.HistoryRepository
	notifier *recordingNotifier
	service  Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	products := memory.NewProductRepository(store)
	orders := memory.NewOrderRepository(store)
	history := memory.NewHistoryRepository(store)
	notifier := &recordingNotifier{}

	svc := NewServiceWithoutMetrics(
		orders,
		products,
		memory.NewReturnRepository(store),
		memory.NewExchangeRepository(store),
		notifier,
		history,
		nil,
	)

	return &fixture{
		store:    store,
		products: products,
		orders:   orders,
		history:  history,
		notifier: notifier,
		service:  svc,
	}
}

// seedDeliveredOrder commits a delivered one-line order for user-1 with the
// given line quantity and a delivery date daysAgo days in the past.
func (f *fixture) seedDeliveredOrder(t *testing.T, orderID string, qty int32, daysAgo int) {
	t.Helper()

	productID := "p-" + orderID
	if err := f.products.Put(domain.Product{
		ID:             productID,
		Name:           "product",
		UnitPriceMinor: 10000,
		Quantity:       100,
	}); err != nil {
		t.Fatalf("put product: %v", err)
	}

	now := time.Now()
	order := domain.Order{
		ID:            orderID,
		UserID:        "user-1",
		Status:        domain.OrderStatusDelivered,
		Address:       domain.Address{ID: "addr-1", Line1: "1 Main St"},
		Currency:      "USD",
		AmountMinor:   int64(qty) * 10000,
		PaymentMethod: domain.PaymentMethodCOD,
		DeliveryDate:  now.AddDate(0, 0, -daysAgo),
		Lines: []domain.OrderLine{{
			ID:             orderID + "-l1",
			OrderID:        orderID,
			ProductID:      productID,
			Qty:            qty,
			Size:           "M",
			UnitPriceMinor: 10000,
			ItemStatus:     domain.ItemStatusOrdered,
		}},
		CreatedAt: now.AddDate(0, 0, -daysAgo-3),
		UpdatedAt: now,
	}
	if err := memory.NewCheckoutStore(f.store).Commit(order); err != nil {
		t.Fatalf("commit order: %v", err)
	}
}

func TestEligibility(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 2)

	eligibility, err := f.service.Eligibility(context.Background(), owner, "o-1", "o-1-l1")
	if err != nil {
		t.Fatalf("eligibility failed: %v", err)
	}
	if !eligibility.Eligible {
		t.Fatalf("expected eligible, got %+v", eligibility)
	}
	if eligibility.Returnable != 5 {
		t.Fatalf("expected returnable 5, got %d", eligibility.Returnable)
	}
	if eligibility.DaysRemaining != 5 {
		t.Fatalf("expected 5 days remaining, got %d", eligibility.DaysRemaining)
	}

	// A pending request shrinks the remaining returnable quantity.
	if _, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 3,
	}); err != nil {
		t.Fatalf("create return: %v", err)
	}
	eligibility, err = f.service.Eligibility(context.Background(), owner, "o-1", "o-1-l1")
	if err != nil {
		t.Fatalf("eligibility failed: %v", err)
	}
	if eligibility.Returnable != 2 {
		t.Fatalf("expected returnable 2, got %d", eligibility.Returnable)
	}
}

func TestEligibilityExchangeOutlivesReturnableQuantity(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 2, 2)

	// Claim the whole line quantity for return.
	if _, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 2,
	}); err != nil {
		t.Fatalf("create return: %v", err)
	}

	eligibility, err := f.service.Eligibility(context.Background(), owner, "o-1", "o-1-l1")
	if err != nil {
		t.Fatalf("eligibility failed: %v", err)
	}
	if eligibility.Eligible {
		t.Fatal("exhausted line must not be return-eligible")
	}
	if !errors.Is(eligibility.Reason, domain.ErrNothingReturnable) {
		t.Fatalf("expected ErrNothingReturnable reason, got %v", eligibility.Reason)
	}
	if !eligibility.ExchangeEligible {
		t.Fatal("exchange must stay eligible while the window is open")
	}

	// An exchange on the exhausted line is still accepted.
	if _, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-1", LineID: "o-1-l1", NewQty: 1, NewSize: "L",
	}); err != nil {
		t.Fatalf("create exchange: %v", err)
	}
}

func TestEligibilityNotDelivered(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 2)

	// Force the order back to a pre-delivery status.
	if _, err := f.orders.Transition("o-1", []domain.OrderStatus{domain.OrderStatusDelivered}, domain.OrderStatusShipped, ""); err != nil {
		t.Fatalf("transition: %v", err)
	}

	eligibility, err := f.service.Eligibility(context.Background(), owner, "o-1", "o-1-l1")
	if err != nil {
		t.Fatalf("eligibility failed: %v", err)
	}
	if eligibility.Eligible {
		t.Fatal("undelivered order must not be eligible")
	}
	if !errors.Is(eligibility.Reason, domain.ErrNotDelivered) {
		t.Fatalf("expected ErrNotDelivered reason, got %v", eligibility.Reason)
	}
}

func TestEligibilityAccess(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 2)

	if _, err := f.service.Eligibility(context.Background(), stranger, "o-1", "o-1-l1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.Eligibility(context.Background(), owner, "o-1", "missing"); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	if _, err := f.service.Eligibility(context.Background(), owner, "missing", "o-1-l1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCreateReturnWindowBoundary(t *testing.T) {
	f := newFixture(t)

	// Day seven is the last day inside the window.
	f.seedDeliveredOrder(t, "o-7", 2, 7)
	if _, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-7", LineID: "o-7-l1", Qty: 1,
	}); err != nil {
		t.Fatalf("day 7 return must succeed: %v", err)
	}

	// Day eight is out.
	f.seedDeliveredOrder(t, "o-8", 2, 8)
	_, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-8", LineID: "o-8-l1", Qty: 1,
	})
	if !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}
}

func TestCreateReturnRefundFrozenAtRequestTime(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 3, 1)

	req, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 2, Reason: "size issue",
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if req.RefundMinor != 20000 {
		t.Fatalf("expected refund 20000, got %d", req.RefundMinor)
	}
	if req.Status != domain.ReturnStatusRequested {
		t.Fatalf("expected requested, got %s", req.Status)
	}

	// A later catalog price change must not alter the owed refund.
	if err := f.products.Put(domain.Product{
		ID:             "p-o-1",
		Name:           "product",
		UnitPriceMinor: 99999,
		Quantity:       100,
	}); err != nil {
		t.Fatalf("reprice product: %v", err)
	}

	accepted, err := f.service.AcceptReturn(context.Background(), operator, req.ID)
	if err != nil {
		t.Fatalf("accept return: %v", err)
	}
	if accepted.RefundMinor != 20000 {
		t.Fatalf("refund changed after reprice: %d", accepted.RefundMinor)
	}
}

func TestCreateReturnValidation(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 2, 1)

	if _, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 0,
	}); !errors.Is(err, domain.ErrLineQtyInvalid) {
		t.Fatalf("expected ErrLineQtyInvalid, got %v", err)
	}
	if _, err := f.service.CreateReturn(context.Background(), stranger, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 1,
	}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 3,
	}); !errors.Is(err, domain.ErrReturnableExceeded) {
		t.Fatalf("expected ErrReturnableExceeded, got %v", err)
	}
}

func TestAcceptReturnCreditsStockOnce(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 1)

	req, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 3,
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}

	before, err := f.products.Get("p-o-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	if _, err := f.service.AcceptReturn(context.Background(), operator, req.ID); err != nil {
		t.Fatalf("accept return: %v", err)
	}
	if _, err := f.service.AcceptReturn(context.Background(), operator, req.ID); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}

	after, err := f.products.Get("p-o-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Quantity != before.Quantity+3 {
		t.Fatalf("stock must be credited exactly once: before=%d after=%d", before.Quantity, after.Quantity)
	}

	if _, err := f.service.AcceptReturn(context.Background(), owner, req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-operator, got %v", err)
	}
}

func TestRejectFreesQuantityForReRequest(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 1)

	first, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 3,
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if _, err := f.service.RejectReturn(context.Background(), operator, first.ID); err != nil {
		t.Fatalf("reject return: %v", err)
	}

	// The rejected allocation is released, so the full quantity is requestable again.
	second, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 5,
	})
	if err != nil {
		t.Fatalf("re-request after reject failed: %v", err)
	}
	if second.Qty != 5 {
		t.Fatalf("unexpected quantity: %d", second.Qty)
	}
}

func TestReturnGetAndList(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 1)

	req, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 1,
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}

	if _, err := f.service.GetReturn(context.Background(), owner, req.ID); err != nil {
		t.Fatalf("get return: %v", err)
	}
	if _, err := f.service.GetReturn(context.Background(), stranger, req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.GetReturn(context.Background(), operator, req.ID); err != nil {
		t.Fatalf("operator get return: %v", err)
	}

	list, err := f.service.ListReturns(context.Background(), owner, "user-1", 10)
	if err != nil {
		t.Fatalf("list returns: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one return, got %d", len(list))
	}
	if _, err := f.service.ListReturns(context.Background(), stranger, "user-1", 10); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestExchangeCompletionRewritesLine(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 1, 1)

	req, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-1", LineID: "o-1-l1", NewQty: 1, NewSize: "L", Reason: "too small",
	})
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	if req.OriginalSize != "M" {
		t.Fatalf("original size not snapshotted: %q", req.OriginalSize)
	}

	before, err := f.products.Get("p-o-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	if _, err := f.service.CompleteExchange(context.Background(), operator, req.ID); err != nil {
		t.Fatalf("complete exchange: %v", err)
	}

	order, err := f.orders.Get("o-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	line, ok := order.Line("o-1-l1")
	if !ok {
		t.Fatal("line missing")
	}
	if line.Size != "L" || line.Qty != 1 {
		t.Fatalf("line not rewritten: size=%s qty=%d", line.Size, line.Qty)
	}
	if line.ItemStatus != domain.ItemStatusExchanged {
		t.Fatalf("expected exchanged, got %s", line.ItemStatus)
	}

	// Exchanges are same-product swaps: stock is untouched.
	after, err := f.products.Get("p-o-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Quantity != before.Quantity {
		t.Fatalf("stock changed on exchange: before=%d after=%d", before.Quantity, after.Quantity)
	}

	if _, err := f.service.CompleteExchange(context.Background(), operator, req.ID); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestExchangeWindowAndValidation(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-8", 1, 8)

	if _, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-8", LineID: "o-8-l1", NewQty: 1, NewSize: "L",
	}); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("expected ErrWindowClosed, got %v", err)
	}

	f.seedDeliveredOrder(t, "o-1", 1, 1)
	if _, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-1", LineID: "o-1-l1", NewQty: 0, NewSize: "L",
	}); !errors.Is(err, domain.ErrLineQtyInvalid) {
		t.Fatalf("expected ErrLineQtyInvalid, got %v", err)
	}
	if _, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-1", LineID: "o-1-l1", NewQty: 1, NewSize: "",
	}); !errors.Is(err, domain.ErrSizeRequired) {
		t.Fatalf("expected ErrSizeRequired, got %v", err)
	}
}

func TestRejectExchange(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 2, 1)

	req, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-1", LineID: "o-1-l1", NewQty: 2, NewSize: "L",
	})
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}

	if _, err := f.service.RejectExchange(context.Background(), owner, req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	rejected, err := f.service.RejectExchange(context.Background(), operator, req.ID)
	if err != nil {
		t.Fatalf("reject exchange: %v", err)
	}
	if rejected.Status != domain.ExchangeStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	order, err := f.orders.Get("o-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	line, _ := order.Line("o-1-l1")
	if line.ItemStatus != domain.ItemStatusExchangeRejected {
		t.Fatalf("expected exchange_rejected, got %s", line.ItemStatus)
	}
	if line.Size != "M" || line.Qty != 2 {
		t.Fatalf("line must be untouched: size=%s qty=%d", line.Size, line.Qty)
	}
}

func TestExchangeGetAndList(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 2, 1)

	req, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-1", LineID: "o-1-l1", NewQty: 1, NewSize: "S",
	})
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}

	if _, err := f.service.GetExchange(context.Background(), stranger, req.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.GetExchange(context.Background(), owner, req.ID); err != nil {
		t.Fatalf("get exchange: %v", err)
	}

	list, err := f.service.ListExchanges(context.Background(), owner, "user-1", 10)
	if err != nil {
		t.Fatalf("list exchanges: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one exchange, got %d", len(list))
	}
}

func TestDecisionsAppendOrderHistory(t *testing.T) {
	f := newFixture(t)
	f.seedDeliveredOrder(t, "o-1", 5, 1)
	f.seedDeliveredOrder(t, "o-2", 2, 1)

	accepted, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 1,
	})
	if err != nil {
		t.Fatalf("create return: %v", err)
	}
	if _, err := f.service.AcceptReturn(context.Background(), operator, accepted.ID); err != nil {
		t.Fatalf("accept return: %v", err)
	}

	rejected, err := f.service.CreateReturn(context.Background(), owner, CreateReturnInput{
		OrderID: "o-1", LineID: "o-1-l1", Qty: 1,
	})
	if err != nil {
		t.Fatalf("create second return: %v", err)
	}
	if _, err := f.service.RejectReturn(context.Background(), operator, rejected.ID); err != nil {
		t.Fatalf("reject return: %v", err)
	}

	events, err := f.history.List("o-1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 return decision events, got %d", len(events))
	}
	if events[0].Type != "return_decision" || events[0].Reason != "refunded" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != "return_decision" || events[1].Reason != "rejected" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}

	exchRejected, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-2", LineID: "o-2-l1", NewQty: 1, NewSize: "S",
	})
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}
	if _, err := f.service.RejectExchange(context.Background(), operator, exchRejected.ID); err != nil {
		t.Fatalf("reject exchange: %v", err)
	}

	exchCompleted, err := f.service.CreateExchange(context.Background(), owner, CreateExchangeInput{
		OrderID: "o-2", LineID: "o-2-l1", NewQty: 2, NewSize: "L",
	})
	if err != nil {
		t.Fatalf("create second exchange: %v", err)
	}
	if _, err := f.service.CompleteExchange(context.Background(), operator, exchCompleted.ID); err != nil {
		t.Fatalf("complete exchange: %v", err)
	}

	events, err = f.history.List("o-2")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 exchange decision events, got %d", len(events))
	}
	if events[0].Type != "exchange_decision" || events[0].Reason != "rejected" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != "exchange_decision" || events[1].Reason != "completed" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}
