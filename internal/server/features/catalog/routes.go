package catalog

import (
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/cellsql/internal/server/notifier"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// SetupRoutes registers the catalog feature routes.
func SetupRoutes(router chi.Router, ws *workspace.Workspace, notify *notifier.Notifier) error {
	handlers := NewHandlers(ws, notify)

	router.Get("/api/events", handlers.Events)

	router.Route("/api/catalog", func(r chi.Router) {
		r.Get("/", handlers.Snapshot)
		r.Put("/", handlers.Replace)
		r.Post("/reload", handlers.Reload)
		r.Post("/introspect", handlers.Introspect)
		r.Get("/connections", handlers.Connections)
		r.Get("/connections/{name}/dialect", handlers.Dialect)
		r.Get("/connections/{name}/schema", handlers.Schema)
	})

	return nil
}
