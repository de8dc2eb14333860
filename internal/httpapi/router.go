package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jkeevk/diploma-shop/pkg/metrics"
)

// NewRouter wires all handlers behind the shared middleware stack.
func NewRouter(
	cartHandler *CartHandler,
	checkoutHandler *CheckoutHandler,
	ordersHandler *OrdersHandler,
	partnerHandler *PartnerHandler,
	m *metrics.ServerMetrics,
	requestTimeout time.Duration,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(AuthMiddleware)
	if m != nil {
		r.Use(MetricsMiddleware(m))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{supplier_id}/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{supplier_id}/{product_id}", cartHandler.RemoveItem)
			r.Delete("/", cartHandler.ClearCart)
		})

		r.Post("/checkout", checkoutHandler.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})
		r.Post("/suborders/{suborder_id}/status", ordersHandler.TransitionSubOrder)

		r.Route("/partner", func(r chi.Router) {
			r.Post("/state", partnerHandler.SetAccepting)
			r.Post("/prices", partnerHandler.UploadPrices)
			r.Get("/orders", partnerHandler.ListOrders)
		})
	})

	return r
}
