package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(Config{BaseURL: srv.URL, KeyID: "key-1", Secret: "secret-1"}, nil)
}

func TestCreateIntent_Success(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != intentPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "key-1" || pass != "secret-1" {
			t.Errorf("missing basic auth credentials")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"intent_abc","amount":20000,"currency":"USD"}`))
	})

	intent, err := gw.CreateIntent(context.Background(), 20000, "USD", "order-receipt-1")
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Ref != "intent_abc" {
		t.Fatalf("expected intent_abc, got %s", intent.Ref)
	}
	if intent.AmountMinor != 20000 {
		t.Fatalf("expected amount 20000, got %d", intent.AmountMinor)
	}
}

func TestCreateIntent_ErrorCategories(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request", http.StatusBadRequest, domain.ErrGatewayRejected},
		{"unauthorized", http.StatusUnauthorized, domain.ErrGatewayRejected},
		{"bad gateway", http.StatusBadGateway, domain.ErrGatewayUnavailable},
		{"unavailable", http.StatusServiceUnavailable, domain.ErrGatewayUnavailable},
		{"server error", http.StatusInternalServerError, domain.ErrGatewayInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"code":"ERR","description":"boom"}}`))
			})

			_, err := gw.CreateIntent(context.Background(), 100, "USD", "r-1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
			}
		})
	}
}

func TestCreateIntent_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // сервер закрыт заранее — имитация недоступности

	gw := NewGateway(Config{BaseURL: srv.URL, KeyID: "k", Secret: "s"}, nil)
	_, err := gw.CreateIntent(context.Background(), 100, "USD", "r-1")
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestCreateIntent_NonPositiveAmount(t *testing.T) {
	gw := NewGateway(Config{BaseURL: "http://unused", KeyID: "k", Secret: "s"}, nil)
	if _, err := gw.CreateIntent(context.Background(), 0, "USD", "r-1"); !errors.Is(err, domain.ErrAmountNegative) {
		t.Fatalf("expected ErrAmountNegative, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	const secret = "server-secret"
	sig := ComputeSignature(secret, "intent_abc", "pay_def")

	if err := VerifySignature(secret, "intent_abc", "pay_def", sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	if err := VerifySignature(secret, "intent_abc", "pay_def", sig+"00"); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("tampered signature must fail, got %v", err)
	}
	if err := VerifySignature(secret, "intent_other", "pay_def", sig); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("signature over different intent must fail, got %v", err)
	}
	if err := VerifySignature(secret, "", "pay_def", sig); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("empty intent ref must fail, got %v", err)
	}
}
