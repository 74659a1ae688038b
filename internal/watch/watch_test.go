package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cellsql/internal/testutil"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

const firstCatalog = `connections:
  - name: pg
    dialect: postgresql
`

const secondCatalog = `connections:
  - name: pg
    dialect: postgresql
  - name: lake
    dialect: duckdb
`

func TestWatcher_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(firstCatalog), 0600))

	var got *catalog.Snapshot
	w := New(path, func(s *catalog.Snapshot) { got = s })
	require.NoError(t, w.Load())

	require.NotNil(t, got)
	require.Len(t, got.Connections, 2)
	assert.Equal(t, catalog.DefaultEngine, got.Connections[0].Name)
	assert.Equal(t, "pg", got.Connections[1].Name)
}

func TestWatcher_LoadMissing(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope.yaml"), func(*catalog.Snapshot) {
		t.Fatal("handler must not run")
	})
	assert.Error(t, w.Load())
}

func TestWatcher_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(firstCatalog), 0600))

	snaps := make(chan *catalog.Snapshot, 8)
	w := New(path, func(s *catalog.Snapshot) { snaps <- s },
		WithDebounce(10*time.Millisecond),
		WithLogger(testutil.NewTestLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })

	// give the watcher time to register before writing
	time.Sleep(50 * time.Millisecond)

	// a broken write is skipped
	require.NoError(t, os.WriteFile(path, []byte("connections: [\n"), 0600))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(secondCatalog), 0600))

	var last *catalog.Snapshot
	deadline := time.After(5 * time.Second)
	for last == nil || len(last.Connections) != 3 {
		select {
		case last = <-snaps:
		case <-deadline:
			cancel()
			t.Fatal("timed out waiting for reload")
		}
	}
	assert.Equal(t, "lake", last.Connections[2].Name)

	cancel()
	require.NoError(t, g.Wait())
}
