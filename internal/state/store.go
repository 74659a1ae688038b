// Package state persists cells, catalog snapshots and settings in SQLite.
//
// A cell is stored as its host code together with the language it was
// last edited in and that language's metadata, so reopening a cell
// restores the same view without re-detecting it.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Setting keys.
const (
	// SettingLatestEngine holds the latest selected query engine.
	SettingLatestEngine = "latest_engine"
)

// Cell is a persisted notebook cell.
type Cell struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Language language.Type     `json:"language"`
	HostCode string            `json:"host_code"`
	Metadata language.Metadata `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CatalogSnapshot is a stored catalog state.
type CatalogSnapshot struct {
	ID        string
	Source    string
	Snapshot  *catalog.Snapshot
	CreatedAt time.Time
}

// Store is the persistence interface used by the CLI, the language server
// and the HTTP API.
type Store interface {
	SaveCell(ctx context.Context, cell *Cell) error
	GetCell(ctx context.Context, id string) (*Cell, error)
	GetCellByName(ctx context.Context, name string) (*Cell, error)
	ListCells(ctx context.Context) ([]*Cell, error)
	DeleteCell(ctx context.Context, id string) error

	SaveCatalogSnapshot(ctx context.Context, source string, snap *catalog.Snapshot) (*CatalogSnapshot, error)
	LatestCatalogSnapshot(ctx context.Context) (*CatalogSnapshot, error)
	PruneCatalogSnapshots(ctx context.Context, keep int) error

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}

var _ Store = (*SQLiteStore)(nil)
