package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/adjustment"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/lifecycle"
)

// Заголовки идентичности. Аутентификация выполняется внешним слоем;
// сюда приходит уже принятое решение.
const (
	headerUserID   = "X-User-ID"
	headerOperator = "X-Operator"
)

const defaultListLimit = 50

// Handler транслирует HTTP-запросы во внутренние вызовы движка.
type Handler struct {
	checkout   checkout.Service
	lifecycle  lifecycle.Service
	adjustment adjustment.Service
	logger     *log.Entry
}

// NewHandler создаёт HTTP-обработчик поверх сервисов движка.
func NewHandler(
	checkoutSvc checkout.Service,
	lifecycleSvc lifecycle.Service,
	adjustmentSvc adjustment.Service,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &Handler{
		checkout:   checkoutSvc,
		lifecycle:  lifecycleSvc,
		adjustment: adjustmentSvc,
		logger:     logger,
	}
}

// callerFrom извлекает идентичность запроса из заголовков.
func callerFrom(r *http.Request) domain.Caller {
	return domain.Caller{
		UserID:   r.Header.Get(headerUserID),
		Operator: r.Header.Get(headerOperator) == "true",
	}
}

func limitFrom(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// InitiateCheckout — POST /checkout/initiate
func (h *Handler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	result, err := h.checkout.Initiate(r.Context(), callerFrom(r), req.AddressID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	lines := make([]orderLineResponse, len(result.Lines))
	for i, line := range result.Lines {
		lines[i] = mapOrderLine(line)
	}
	writeJSON(w, http.StatusOK, initiateResponse{
		IntentRef:   result.Intent.Ref,
		AmountMinor: result.AmountMinor,
		Currency:    result.Currency,
		Lines:       lines,
	})
}

// ConfirmCheckout — POST /checkout/confirm
func (h *Handler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.checkout.Confirm(r.Context(), callerFrom(r), checkout.ConfirmRequest{
		IntentRef:  req.IntentRef,
		PaymentRef: req.PaymentRef,
		Signature:  req.Signature,
		AddressID:  req.AddressID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

// PlaceOrder — POST /checkout/place
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.checkout.Place(r.Context(), callerFrom(r), req.AddressID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(order))
}

// GetOrder — GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.lifecycle.Get(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderViewResponse{
		orderResponse: mapOrder(view.Order),
		Events:        mapEvents(view.Events),
	})
}

// ListOrders — GET /orders; выборка собственных заказов вызывающего.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	orders, err := h.lifecycle.ListByUser(r.Context(), caller, caller.UserID, limitFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

// CancelOrder — POST /orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.lifecycle.Cancel(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

// ListAllOrders — GET /admin/orders
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.lifecycle.List(r.Context(), callerFrom(r), limitFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

// UpdateOrderStatus — POST /admin/orders/{id}/status
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.lifecycle.UpdateStatus(r.Context(), callerFrom(r), chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

// SetDeliveryDate — POST /admin/orders/{id}/delivery-date
func (h *Handler) SetDeliveryDate(w http.ResponseWriter, r *http.Request) {
	var req deliveryDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.DeliveryDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "delivery_date must be YYYY-MM-DD")
		return
	}

	order, err := h.lifecycle.SetDeliveryDate(r.Context(), callerFrom(r), chi.URLParam(r, "id"), date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

// DeleteOrder — DELETE /admin/orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.Delete(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEligibility — GET /orders/{id}/lines/{lineID}/eligibility
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	eligibility, err := h.adjustment.Eligibility(r.Context(), callerFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapEligibility(eligibility))
}

// CreateReturn — POST /returns
func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	created, err := h.adjustment.CreateReturn(r.Context(), callerFrom(r), adjustment.CreateReturnInput{
		OrderID:     req.OrderID,
		LineID:      req.LineID,
		Qty:         req.Qty,
		Reason:      req.Reason,
		EvidenceRef: req.EvidenceRef,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapReturn(created))
}

// GetReturn — GET /returns/{id}
func (h *Handler) GetReturn(w http.ResponseWriter, r *http.Request) {
	req, err := h.adjustment.GetReturn(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapReturn(req))
}

// ListReturns — GET /returns
func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	list, err := h.adjustment.ListReturns(r.Context(), caller, caller.UserID, limitFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]returnResponse, len(list))
	for i, req := range list {
		out[i] = mapReturn(req)
	}
	writeJSON(w, http.StatusOK, out)
}

// AcceptReturn — POST /admin/returns/{id}/accept
func (h *Handler) AcceptReturn(w http.ResponseWriter, r *http.Request) {
	req, err := h.adjustment.AcceptReturn(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapReturn(req))
}

// RejectReturn — POST /admin/returns/{id}/reject
func (h *Handler) RejectReturn(w http.ResponseWriter, r *http.Request) {
	req, err := h.adjustment.RejectReturn(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapReturn(req))
}

// CreateExchange — POST /exchanges
func (h *Handler) CreateExchange(w http.ResponseWriter, r *http.Request) {
	var req createExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	created, err := h.adjustment.CreateExchange(r.Context(), callerFrom(r), adjustment.CreateExchangeInput{
		OrderID: req.OrderID,
		LineID:  req.LineID,
		NewQty:  req.NewQty,
		NewSize: req.NewSize,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapExchange(created))
}

// GetExchange — GET /exchanges/{id}
func (h *Handler) GetExchange(w http.ResponseWriter, r *http.Request) {
	req, err := h.adjustment.GetExchange(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapExchange(req))
}

// ListExchanges — GET /exchanges
func (h *Handler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	list, err := h.adjustment.ListExchanges(r.Context(), caller, caller.UserID, limitFrom(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]exchangeResponse, len(list))
	for i, req := range list {
		out[i] = mapExchange(req)
	}
	writeJSON(w, http.StatusOK, out)
}

// CompleteExchange — POST /admin/exchanges/{id}/complete
func (h *Handler) CompleteExchange(w http.ResponseWriter, r *http.Request) {
	req, err := h.adjustment.CompleteExchange(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapExchange(req))
}

// RejectExchange — POST /admin/exchanges/{id}/reject
func (h *Handler) RejectExchange(w http.ResponseWriter, r *http.Request) {
	req, err := h.adjustment.RejectExchange(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapExchange(req))
}

func mapOrders(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, order := range orders {
		out[i] = mapOrder(order)
	}
	return out
}

// writeDomainError проецирует таксономию ошибок движка на HTTP-статусы.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSignatureMismatch):
		writeError(w, http.StatusUnauthorized, "signature_mismatch", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case domain.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case domain.IsUpstream(err):
		writeError(w, http.StatusBadGateway, "upstream_failed", err.Error())
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
