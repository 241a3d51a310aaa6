package httpapi

import (
	"net/http"

	"umari-core/internal/middleware"
	"umari-core/internal/payment/webhook"

	"github.com/go-chi/chi/v5"
)

func NewRouter(h *Handler, wh *webhook.Handler, jwtSecret []byte, limiter middleware.LimiterStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(limiter))

	r.Post("/webhook/stripe", wh.WebhookHandler)
	r.Get("/orders/{number}", h.GetOrderByNumber)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireMerchant(jwtSecret))

		r.Get("/orders/active", h.ListActiveOrders)
		r.Get("/orders/ready", h.ListReadyOrders)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
		r.Patch("/orders/{id}/items/{itemID}/status", h.UpdateItemStatus)
		r.Post("/orders/{id}/refund", h.RefundOrder)
		r.Post("/orders/{id}/items/{itemID}/refund", h.RefundItem)
	})

	return r
}
