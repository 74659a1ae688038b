package cellview

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// SetupRoutes registers the cell view feature routes.
func SetupRoutes(router chi.Router, ws *workspace.Workspace) error {
	handlers := NewHandlers(ws)

	router.Route("/api/cell", func(r chi.Router) {
		r.Post("/detect", handlers.Detect)
		r.Post("/transform", handlers.Transform)
		r.Post("/switch", handlers.Switch)
		r.Post("/cycle", handlers.Cycle)
		r.Post("/complete", handlers.Complete)
	})

	return nil
}
