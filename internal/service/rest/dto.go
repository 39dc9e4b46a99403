package rest

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type initiateRequest struct {
	AddressID string `json:"address_id"`
}

type confirmRequest struct {
	IntentRef  string `json:"intent_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
	AddressID  string `json:"address_id"`
}

type placeRequest struct {
	AddressID string `json:"address_id"`
}

type initiateResponse struct {
	IntentRef   string              `json:"intent_ref"`
	AmountMinor int64               `json:"amount_minor"`
	Currency    string              `json:"currency"`
	Lines       []orderLineResponse `json:"lines"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type deliveryDateRequest struct {
	DeliveryDate string `json:"delivery_date"` // YYYY-MM-DD
}

type createReturnRequest struct {
	OrderID     string `json:"order_id"`
	LineID      string `json:"line_id"`
	Qty         int32  `json:"qty"`
	Reason      string `json:"reason,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

type createExchangeRequest struct {
	OrderID string `json:"order_id"`
	LineID  string `json:"line_id"`
	NewQty  int32  `json:"new_qty"`
	NewSize string `json:"new_size"`
	Reason  string `json:"reason,omitempty"`
}

type orderLineResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Qty            int32  `json:"qty"`
	Size           string `json:"size"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	ItemStatus     string `json:"item_status"`
}

type addressResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Status        string              `json:"status"`
	Address       addressResponse     `json:"address"`
	Currency      string              `json:"currency"`
	AmountMinor   int64               `json:"amount_minor"`
	PaymentMethod string              `json:"payment_method"`
	PaymentRef    string              `json:"payment_ref,omitempty"`
	DeliveryDate  string              `json:"delivery_date"`
	DeliveryOTP   string              `json:"delivery_otp,omitempty"`
	Lines         []orderLineResponse `json:"lines"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

type orderEventResponse struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	Occurred string `json:"occurred"`
}

type orderViewResponse struct {
	orderResponse
	Events []orderEventResponse `json:"events"`
}

type eligibilityResponse struct {
	Eligible         bool   `json:"eligible"`
	DaysRemaining    int    `json:"days_remaining"`
	Returnable       int32  `json:"returnable"`
	ExchangeEligible bool   `json:"exchange_eligible"`
	Reason           string `json:"reason,omitempty"`
}

type returnResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	LineID      string `json:"line_id"`
	ProductID   string `json:"product_id"`
	UserID      string `json:"user_id"`
	Qty         int32  `json:"qty"`
	RefundMinor int64  `json:"refund_minor"`
	Status      string `json:"status"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type exchangeResponse struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	LineID       string `json:"line_id"`
	ProductID    string `json:"product_id"`
	UserID       string `json:"user_id"`
	NewQty       int32  `json:"new_qty"`
	NewSize      string `json:"new_size"`
	OriginalSize string `json:"original_size"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderLine(line domain.OrderLine) orderLineResponse {
	return orderLineResponse{
		ID:             line.ID,
		ProductID:      line.ProductID,
		Qty:            line.Qty,
		Size:           line.Size,
		UnitPriceMinor: line.UnitPriceMinor,
		ItemStatus:     string(line.ItemStatus),
	}
}

func mapOrder(order domain.Order) orderResponse {
	lines := make([]orderLineResponse, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = mapOrderLine(line)
	}
	return orderResponse{
		ID:     order.ID,
		UserID: order.UserID,
		Status: string(order.Status),
		Address: addressResponse{
			ID:         order.Address.ID,
			Name:       order.Address.Name,
			Line1:      order.Address.Line1,
			Line2:      order.Address.Line2,
			City:       order.Address.City,
			State:      order.Address.State,
			PostalCode: order.Address.PostalCode,
			Phone:      order.Address.Phone,
		},
		Currency:      order.Currency,
		AmountMinor:   order.AmountMinor,
		PaymentMethod: string(order.PaymentMethod),
		PaymentRef:    order.PaymentRef,
		DeliveryDate:  order.DeliveryDate.Format("2006-01-02"),
		DeliveryOTP:   order.DeliveryOTP,
		Lines:         lines,
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     order.UpdatedAt.Format(time.RFC3339),
	}
}

func mapEvents(events []domain.OrderEvent) []orderEventResponse {
	out := make([]orderEventResponse, len(events))
	for i, event := range events {
		out[i] = orderEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred.Format(time.RFC3339),
		}
	}
	return out
}

func mapReturn(req domain.ReturnRequest) returnResponse {
	return returnResponse{
		ID:          req.ID,
		OrderID:     req.OrderID,
		LineID:      req.LineID,
		ProductID:   req.ProductID,
		UserID:      req.UserID,
		Qty:         req.Qty,
		RefundMinor: req.RefundMinor,
		Status:      string(req.Status),
		EvidenceRef: req.EvidenceRef,
		Reason:      req.Reason,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
	}
}

func mapExchange(req domain.ExchangeRequest) exchangeResponse {
	return exchangeResponse{
		ID:           req.ID,
		OrderID:      req.OrderID,
		LineID:       req.LineID,
		ProductID:    req.ProductID,
		UserID:       req.UserID,
		NewQty:       req.NewQty,
		NewSize:      req.NewSize,
		OriginalSize: req.OriginalSize,
		Status:       string(req.Status),
		Reason:       req.Reason,
		CreatedAt:    req.CreatedAt.Format(time.RFC3339),
	}
}

func mapEligibility(e domain.Eligibility) eligibilityResponse {
	resp := eligibilityResponse{
		Eligible:         e.Eligible,
		DaysRemaining:    e.DaysRemaining,
		Returnable:       e.Returnable,
		ExchangeEligible: e.ExchangeEligible,
	}
	if e.Reason != nil {
		resp.Reason = e.Reason.Error()
	}
	return resp
}
