// Package router sets up HTTP routes for the API server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	catalogFeature "github.com/leapstack-labs/cellsql/internal/server/features/catalog"
	cellsFeature "github.com/leapstack-labs/cellsql/internal/server/features/cells"
	cellviewFeature "github.com/leapstack-labs/cellsql/internal/server/features/cellview"
	"github.com/leapstack-labs/cellsql/internal/server/features/common"
	"github.com/leapstack-labs/cellsql/internal/server/notifier"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version,omitempty"`
	Connections  int    `json:"connections"`
	LatestEngine string `json:"latest_engine"`
}

// SetupRoutes configures all routes for the API server.
func SetupRoutes(
	router chi.Router,
	ws *workspace.Workspace,
	notify *notifier.Notifier,
	version string,
) error {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:       "ok",
			Version:      version,
			Connections:  len(ws.Catalog.Connections()),
			LatestEngine: ws.Engines.Latest(),
		})
	})

	if err := cellviewFeature.SetupRoutes(router, ws); err != nil {
		return err
	}

	if err := cellsFeature.SetupRoutes(router, ws); err != nil {
		return err
	}

	if err := catalogFeature.SetupRoutes(router, ws, notify); err != nil {
		return err
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.WriteJSON(w, http.StatusNotFound, common.ErrorResponse{Error: "no route for " + r.Method + " " + r.URL.Path})
	})

	return nil
}
