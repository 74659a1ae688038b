package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/server/features"
	"github.com/leapstack-labs/cellsql/internal/server/router"
	"github.com/leapstack-labs/cellsql/internal/testutil"
)

func newTestServer(t *testing.T, watch bool) *Server {
	t.Helper()
	fixture := features.SetupTestFixture(t)
	return NewServer(Config{
		Workspace: fixture.Workspace,
		Host:      "127.0.0.1",
		Watch:     watch,
		Version:   "test",
		Logger:    testutil.NewTestLogger(t),
	})
}

func TestHandler_Routes(t *testing.T) {
	srv := newTestServer(t, false)
	handler, err := srv.Handler()
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/cells", http.StatusOK},
		{http.MethodGet, "/api/catalog", http.StatusOK},
		{http.MethodGet, "/api/catalog/connections", http.StatusOK},
		{http.MethodGet, "/api/cells/missing", http.StatusNotFound},
		{http.MethodGet, "/api/nothing-here", http.StatusNotFound},
		{http.MethodGet, "/api/cell/detect", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code, "body: %s", rec.Body.String())
		})
	}
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer(t, false)
	handler, err := srv.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got router.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, router.HealthResponse{
		Status:       "ok",
		Version:      "test",
		Connections:  2,
		LatestEngine: "duckdb",
	}, got)
}

func TestServer_BroadcastsCatalogChanges(t *testing.T) {
	srv := newTestServer(t, false)

	updates := srv.Notifier().Subscribe()
	defer srv.Notifier().Unsubscribe(updates)

	snap := srv.ws.Catalog.Snapshot()
	snap.Connections[1].DefaultSchema = "audit"
	_, err := srv.ws.Apply(context.Background(), "test", snap)
	require.NoError(t, err)

	select {
	case ev := <-updates:
		assert.Equal(t, []string{"pg"}, ev.Changed)
	case <-time.After(time.Second):
		t.Fatal("no catalog event")
	}
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	srv := newTestServer(t, true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String() + "/healthz"

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec,noctx // test URL
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
