package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты движка исполнения заказов.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/initiate", handler.InitiateCheckout)
		r.Post("/confirm", handler.ConfirmCheckout)
		r.Post("/place", handler.PlaceOrder)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", handler.ListOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Post("/{id}/cancel", handler.CancelOrder)
		r.Get("/{id}/lines/{lineID}/eligibility", handler.GetEligibility)
	})

	r.Route("/returns", func(r chi.Router) {
		r.Post("/", handler.CreateReturn)
		r.Get("/", handler.ListReturns)
		r.Get("/{id}", handler.GetReturn)
	})

	r.Route("/exchanges", func(r chi.Router) {
		r.Post("/", handler.CreateExchange)
		r.Get("/", handler.ListExchanges)
		r.Get("/{id}", handler.GetExchange)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/orders", handler.ListAllOrders)
		r.Post("/orders/{id}/status", handler.UpdateOrderStatus)
		r.Post("/orders/{id}/delivery-date", handler.SetDeliveryDate)
		r.Delete("/orders/{id}", handler.DeleteOrder)
		r.Post("/returns/{id}/accept", handler.AcceptReturn)
		r.Post("/returns/{id}/reject", handler.RejectReturn)
		r.Post("/exchanges/{id}/complete", handler.CompleteExchange)
		r.Post("/exchanges/{id}/reject", handler.RejectExchange)
	})

	return r
}
