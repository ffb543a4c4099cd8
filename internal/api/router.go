// Package api exposes the cart, checkout and inventory services over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.logger))

	r.Get("/health", h.Health)

	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.ListRecords)
		r.Get("/{recordID}", h.GetRecord)
	})

	r.Group(func(r chi.Router) {
		r.Use(identify)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{recordID}", h.SetCartItem)
			r.Patch("/items/{recordID}", h.UpdateCartItem)
			r.Delete("/items/{recordID}", h.RemoveCartItem)
			r.Post("/validate", h.ValidateCart)
			r.Post("/checkout", h.Checkout)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListMyOrders)
			r.Get("/{orderID}", h.GetMyOrder)
			r.Post("/{orderID}/cancel", h.CancelOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.ListAllOrders)
				r.Get("/{orderID}", h.GetAnyOrder)
				r.Put("/{orderID}/status", h.UpdateOrderStatus)
				r.Delete("/{orderID}", h.DeleteOrder)
			})

			r.Route("/records", func(r chi.Router) {
				r.Post("/", h.CreateRecord)
				r.Delete("/{recordID}", h.DeleteRecord)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/summary", h.InventorySummary)
				r.Get("/low-stock", h.LowStockRecords)
				r.Get("/low-stock/count", h.LowStockCount)
				r.Get("/out-of-stock", h.OutOfStockRecords)
				r.Get("/restock", h.RecordsNeedingRestock)
				r.Put("/stock", h.BatchSetStock)
				r.Post("/{recordID}/add", h.AddStock)
				r.Post("/{recordID}/reduce", h.ReduceStock)
				r.Put("/{recordID}/stock", h.SetStock)
				r.Put("/{recordID}/threshold", h.UpdateLowStockThreshold)
			})
		})
	})

	return r
}

// NewHandler wires the services into HTTP handlers. A nil logger discards
// output.
func NewHandler(carts CartAPI, orders OrderAPI, inventory InventoryAPI, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		carts:     carts,
		orders:    orders,
		inventory: inventory,
		logger:    logger.Named("http"),
	}
}
