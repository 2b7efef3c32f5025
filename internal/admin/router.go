package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/placementcell/campus-api/internal/auth"
)

// Routes returns the admin routes. They must be mounted behind
// auth.Middleware; everything except whoami also requires an admin role.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Available to any authenticated caller
	r.Get("/whoami", h.HandleWhoami)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(h.registry))

		r.Post("/loglevel", h.HandleSetLogLevel)

		r.Get("/tokens", h.HandleListTokens)
		r.Post("/tokens", h.HandleCreateToken)
		r.Get("/tokens/{id}", h.HandleGetToken)
		r.Delete("/tokens/{id}", h.HandleDeleteToken)
	})

	return r
}
