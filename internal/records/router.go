package records

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the collection routes. They must be mounted behind
// auth.Middleware; requireWrite guards the mutating routes.
func (h *Handler) Routes(requireWrite func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/{collection}", h.HandleList)
	r.Get("/{collection}/export.csv", h.HandleExport)
	r.Get("/{collection}/{id}", h.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(requireWrite)
		r.Put("/{collection}/{id}", h.HandlePut)
		r.Delete("/{collection}/{id}", h.HandleDelete)
	})

	return r
}
