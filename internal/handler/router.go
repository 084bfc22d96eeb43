package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/UnniHoly/telegram-newyear-wheel-bot/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты админ-API.
// Все маршруты под /api/admin защищены токеном, /health открыт.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/stats", h.Stats)
		r.Get("/search", h.Search)
		r.Get("/users", h.Users)
		r.Post("/redeem", h.Redeem)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
