package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Router wires the record API routes and middleware.
func (h *Handler) Router(corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Recover(h.logger))
	r.Use(Logging(h.logger))
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api/zakat/nisab-records", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Post("/", h.create)
		r.Get("/", h.list)

		r.Route("/{recordID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Patch("/", h.update)
			r.Delete("/", h.delete)
			r.Post("/finalize", h.finalize)
			r.Post("/unlock", h.unlock)
			r.Post("/refresh-assets", h.refreshAssets)
			r.Get("/audit-trail", h.auditTrail)
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
