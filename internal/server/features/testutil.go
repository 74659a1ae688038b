// Package features provides shared test utilities for API feature tests.
package features

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/server/notifier"
	"github.com/leapstack-labs/cellsql/internal/testutil"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// TestCatalog is the catalog every fixture starts from: one postgres
// connection with a single table next to the built-in engine.
const TestCatalog = `connections:
  - name: pg
    dialect: postgresql
    default_database: shop
    default_schema: public
    databases:
      - name: shop
        schemas:
          - name: public
            tables:
              - name: orders
                columns:
                  - name: id
                    type: integer
                  - name: total
                    type: numeric
variables: [limit]
`

// TestFixture holds all dependencies needed for API handler tests.
type TestFixture struct {
	Workspace   *workspace.Workspace
	Notifier    *notifier.Notifier
	CatalogFile string
}

// SetupTestFixture creates a workspace over an in-memory state store and
// a catalog file holding TestCatalog.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	catalogFile := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogFile, []byte(TestCatalog), 0600))

	ws, err := workspace.New(context.Background(), workspace.Config{
		CatalogFile: catalogFile,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	return &TestFixture{
		Workspace:   ws,
		Notifier:    notifier.New(),
		CatalogFile: catalogFile,
	}
}

// Do sends a request with an optional JSON body through router.
func Do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals a recorded response body into v.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

// StatusOK asserts a 200 response.
func StatusOK(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}
