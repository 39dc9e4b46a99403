package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultRequestTimeout = 10 * time.Second
	intentPath            = "/v1/orders"
)

// Config — реквизиты доступа к платёжному шлюзу.
type Config struct {
	BaseURL string
	KeyID   string
	// Secret используется и для basic-auth, и для проверки HMAC-подписи колбэков.
	Secret string
}

// Gateway — REST-клиент платёжного шлюза. Создание intent и проверка
// подписи выполняются строго до любых мутаций хранилища, поэтому
// медленный или упавший шлюз не оставляет полусозданных заказов.
type Gateway struct {
	cfg    Config
	client *http.Client
	logger *log.Entry
}

// NewGateway создаёт клиента шлюза с разумным таймаутом.
func NewGateway(cfg Config, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "payment-gateway")
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultRequestTimeout},
		logger: logger,
	}
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type intentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent создаёт платёжное намерение на сумму в минимальных денежных
// единицах. Ошибки шлюза разводятся по категориям, чтобы вызывающий мог
// отличить отклонённый запрос от временной недоступности.
func (g *Gateway) CreateIntent(ctx context.Context, amountMinor int64, currency, receiptID string) (domain.PaymentIntent, error) {
	if amountMinor <= 0 {
		return domain.PaymentIntent{}, domain.ErrAmountNegative
	}

	body, err := json.Marshal(intentRequest{Amount: amountMinor, Currency: currency, Receipt: receiptID})
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+intentPath, bytes.NewReader(body))
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.Secret)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).Warn("payment gateway unreachable")
		return domain.PaymentIntent{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// обработка ниже
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return domain.PaymentIntent{}, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, gatewayErrorText(payload, resp.StatusCode))
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusGatewayTimeout:
		return domain.PaymentIntent{}, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	default:
		return domain.PaymentIntent{}, fmt.Errorf("%w: %s", domain.ErrGatewayInternal, gatewayErrorText(payload, resp.StatusCode))
	}

	var intent intentResponse
	if err := json.Unmarshal(payload, &intent); err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayInternal, err)
	}
	if intent.ID == "" {
		return domain.PaymentIntent{}, fmt.Errorf("%w: empty intent id", domain.ErrGatewayInternal)
	}

	g.logger.WithFields(log.Fields{
		"intent_ref": intent.ID,
		"amount":     amountMinor,
		"currency":   currency,
	}).Debug("payment intent created")

	return domain.PaymentIntent{Ref: intent.ID, AmountMinor: amountMinor, Currency: currency}, nil
}

// VerifySignature сверяет подпись колбэка шлюза; см. signature.go.
func (g *Gateway) VerifySignature(intentRef, paymentRef, signature string) error {
	return VerifySignature(g.cfg.Secret, intentRef, paymentRef, signature)
}

func gatewayErrorText(payload []byte, statusCode int) string {
	var gwErr gatewayError
	if err := json.Unmarshal(payload, &gwErr); err == nil && gwErr.Error.Description != "" {
		return fmt.Sprintf("status %d: %s", statusCode, gwErr.Error.Description)
	}
	return fmt.Sprintf("status %d", statusCode)
}

var _ domain.PaymentGateway = (*Gateway)(nil)
