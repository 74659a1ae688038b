package cells

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// SetupRoutes registers the cells feature routes.
func SetupRoutes(router chi.Router, ws *workspace.Workspace) error {
	handlers := NewHandlers(ws)

	router.Route("/api/cells", func(r chi.Router) {
		r.Get("/", handlers.List)
		r.Post("/", handlers.Save)
		r.Get("/{id}", handlers.Get)
		r.Delete("/{id}", handlers.Delete)
	})

	return nil
}
