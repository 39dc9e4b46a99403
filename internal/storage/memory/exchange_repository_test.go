package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newExchange() domain.ExchangeRequest {
	return domain.ExchangeRequest{
		OrderID:   "order-1",
		LineID:    "line-1",
		ProductID: "prod-1",
		UserID:    "user-1",
		NewQty:    1,
		NewSize:   "L",
	}
}

func TestExchangeRepository_CreateSnapshotsOriginalSize(t *testing.T) {
	store := memory.NewStore()
	seedDeliveredOrder(t, store)
	exchanges := memory.NewExchangeRepository(store)

	req, err := exchanges.Create(newExchange())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.OriginalSize != "M" {
		t.Fatalf("expected original size M snapshotted, got %q", req.OriginalSize)
	}

	order, _ := memory.NewOrderRepository(store).Get("order-1")
	if order.Lines[0].ItemStatus != domain.ItemStatusExchangeRequested {
		t.Fatalf("line must be exchange_requested, got %s", order.Lines[0].ItemStatus)
	}
}

func TestExchangeRepository_CompleteRewritesLineOnce(t *testing.T) {
	store := memory.NewStore()
	seedDeliveredOrder(t, store)
	exchanges := memory.NewExchangeRepository(store)
	products := memory.NewProductRepository(store)

	req, err := exchanges.Create(newExchange())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := products.Get("prod-1")

	completed, err := exchanges.Complete(req.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.ExchangeStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	order, _ := memory.NewOrderRepository(store).Get("order-1")
	line := order.Lines[0]
	if line.Size != "L" || line.Qty != 1 {
		t.Fatalf("line must be rewritten to L/1, got %s/%d", line.Size, line.Qty)
	}
	if line.ItemStatus != domain.ItemStatusExchanged {
		t.Fatalf("line must be exchanged, got %s", line.ItemStatus)
	}

	// Обмен не трогает сток.
	after, _ := products.Get("prod-1")
	if after.Quantity != before.Quantity {
		t.Fatalf("exchange must not change stock: %d -> %d", before.Quantity, after.Quantity)
	}

	if _, err := exchanges.Complete(req.ID); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized on double complete, got %v", err)
	}
}

func TestExchangeRepository_RejectLeavesLineIntact(t *testing.T) {
	store := memory.NewStore()
	seedDeliveredOrder(t, store)
	exchanges := memory.NewExchangeRepository(store)

	req, err := exchanges.Create(newExchange())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := exchanges.Reject(req.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	order, _ := memory.NewOrderRepository(store).Get("order-1")
	line := order.Lines[0]
	if line.Size != "M" || line.Qty != 5 {
		t.Fatalf("rejected exchange must not rewrite the line, got %s/%d", line.Size, line.Qty)
	}
	if line.ItemStatus != domain.ItemStatusExchangeRejected {
		t.Fatalf("line must be exchange_rejected, got %s", line.ItemStatus)
	}

	if _, err := exchanges.Complete(req.ID); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("completing a rejected exchange must fail, got %v", err)
	}
}

func TestExchangeRepository_Transition(t *testing.T) {
	store := memory.NewStore()
	seedDeliveredOrder(t, store)
	exchanges := memory.NewExchangeRepository(store)

	req, err := exchanges.Create(newExchange())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := exchanges.Transition(req.ID, domain.ExchangeStatusRequested, domain.ExchangeStatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.ExchangeStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	if _, err := exchanges.Transition(req.ID, domain.ExchangeStatusRequested, domain.ExchangeStatusApproved); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("stale transition must fail, got %v", err)
	}
}
