package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/locker-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса локер.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/users", h.CreateUser)

		r.Route("/cosmetics", func(r chi.Router) {
			r.Get("/", h.ListCosmetics)
			r.Get("/new", h.ListNewCosmetics)
			r.Get("/shop", h.ListShopCosmetics)
			r.Get("/{id}", h.GetCosmetic)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/users", h.ListUsers)
			r.Get("/users/{id}", h.GetUser)
			r.Put("/users/{id}", h.UpdateUser)

			r.Get("/users/{id}/balance", h.GetBalance)
			r.Get("/users/{id}/transactions", h.GetTransactions)
			r.Get("/users/{id}/cosmetics", h.GetOwnedCosmetics)

			r.Post("/users/{id}/cosmetics/{cosmeticID}/purchase", h.PurchaseCosmetic)
			r.Post("/users/{id}/cosmetics/{cosmeticID}/refund", h.RefundCosmetic)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
