package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/testutil"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, OpenAndMigrate(":memory:", store))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	assert.NotNil(t, store.DB())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.GetCell(ctx, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not opened")

	assert.Error(t, store.SetSetting(ctx, "k", "v"))
	assert.Error(t, store.Migrate())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_MigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// re-running is a no-op
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_CellLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cell := &Cell{
		Name:     "orders",
		Language: language.SQL,
		HostCode: `_df = mo.sql(f"""SELECT * FROM orders""")`,
		Metadata: language.SQLMetadata{
			DataframeName: "_df",
			QuotePrefix:   "f",
			CommentLines:  []string{"# nightly"},
			ShowOutput:    false,
			Engine:        "pg",
		},
	}
	require.NoError(t, store.SaveCell(ctx, cell))
	require.NotEmpty(t, cell.ID)
	assert.False(t, cell.CreatedAt.IsZero())

	got, err := store.GetCell(ctx, cell.ID)
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Name)
	assert.Equal(t, language.SQL, got.Language)
	assert.Equal(t, cell.HostCode, got.HostCode)
	assert.Equal(t, cell.Metadata, got.Metadata)

	byName, err := store.GetCellByName(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, cell.ID, byName.ID)

	// saving under the same name without an ID updates in place
	update := &Cell{Name: "orders", Language: language.Python, HostCode: "x = 1"}
	require.NoError(t, store.SaveCell(ctx, update))
	assert.Equal(t, cell.ID, update.ID)

	got, err = store.GetCell(ctx, cell.ID)
	require.NoError(t, err)
	assert.Equal(t, language.Python, got.Language)
	assert.Equal(t, language.PythonMetadata{}, got.Metadata)
	assert.Equal(t, "x = 1", got.HostCode)

	require.NoError(t, store.DeleteCell(ctx, cell.ID))
	_, err = store.GetCell(ctx, cell.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteCell(ctx, cell.ID), ErrNotFound)
}

func TestSQLiteStore_SaveCellValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.SaveCell(ctx, &Cell{HostCode: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	cell := &Cell{Name: "plain"}
	require.NoError(t, store.SaveCell(ctx, cell))
	assert.Equal(t, language.Python, cell.Language)
}

func TestSQLiteStore_ListCells(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cells, err := store.ListCells(ctx)
	require.NoError(t, err)
	assert.Empty(t, cells)

	for _, c := range []*Cell{
		{Name: "zeta", Language: language.Markdown, Metadata: language.MarkdownMetadata{QuotePrefix: "r"}},
		{Name: "alpha"},
		{Name: "mid", Language: language.SQL},
	} {
		require.NoError(t, store.SaveCell(ctx, c))
	}

	cells, err = store.ListCells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Equal(t, "alpha", cells[0].Name)
	assert.Equal(t, "mid", cells[1].Name)
	assert.Equal(t, "zeta", cells[2].Name)

	assert.Equal(t, language.MarkdownMetadata{QuotePrefix: "r"}, cells[2].Metadata)
	sqlMeta, ok := cells[1].Metadata.(language.SQLMetadata)
	require.True(t, ok)
	assert.Equal(t, []string{}, sqlMeta.CommentLines)
}

func TestSQLiteStore_CatalogSnapshots(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.LatestCatalogSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &catalog.Snapshot{Connections: []catalog.Connection{*catalog.DefaultConnection()}}
	second := &catalog.Snapshot{
		Connections: []catalog.Connection{{
			Name:    "pg",
			Dialect: "postgresql",
			Databases: []catalog.Database{{
				Name:    "shop",
				Schemas: []catalog.Schema{{Name: "public", Tables: []catalog.Table{{Name: "orders"}}}},
			}},
		}},
		Variables: []string{"limit"},
	}

	_, err = store.SaveCatalogSnapshot(ctx, "catalog.yaml", first)
	require.NoError(t, err)
	saved, err := store.SaveCatalogSnapshot(ctx, "introspect:pg", second)
	require.NoError(t, err)

	latest, err := store.LatestCatalogSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, latest.ID)
	assert.Equal(t, "introspect:pg", latest.Source)
	assert.Equal(t, second, latest.Snapshot)

	require.NoError(t, store.PruneCatalogSnapshots(ctx, 1))
	var n int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM catalog_snapshots`).Scan(&n))
	assert.Equal(t, 1, n)

	latest, err = store.LatestCatalogSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, latest.ID)
}

func TestSQLiteStore_Settings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, SettingLatestEngine)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetSetting(ctx, SettingLatestEngine, "pg"))
	require.NoError(t, store.SetSetting(ctx, SettingLatestEngine, "warehouse"))

	value, err := store.GetSetting(ctx, SettingLatestEngine)
	require.NoError(t, err)
	assert.Equal(t, "warehouse", value)
}
