package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// SaveCatalogSnapshot stores a catalog snapshot taken from source, for
// example a catalog file path or an introspected connection.
func (s *SQLiteStore) SaveCatalogSnapshot(ctx context.Context, source string, snap *catalog.Snapshot) (*CatalogSnapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	content, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}

	out := &CatalogSnapshot{
		ID:        generateID(),
		Source:    source,
		Snapshot:  snap,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO catalog_snapshots (id, source, content, created_at) VALUES (?, ?, ?, ?)`,
		out.ID, out.Source, string(content), out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save catalog snapshot: %w", err)
	}
	return out, nil
}

// LatestCatalogSnapshot returns the most recently stored snapshot.
func (s *SQLiteStore) LatestCatalogSnapshot(ctx context.Context) (*CatalogSnapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var (
		out     CatalogSnapshot
		content string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, content, created_at FROM catalog_snapshots
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&out.ID, &out.Source, &content, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog snapshot: %w", err)
	}

	var snap catalog.Snapshot
	if err := json.Unmarshal([]byte(content), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode catalog snapshot %s: %w", out.ID, err)
	}
	out.Snapshot = &snap
	return &out, nil
}

// PruneCatalogSnapshots keeps only the newest keep snapshots.
func (s *SQLiteStore) PruneCatalogSnapshots(ctx context.Context, keep int) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM catalog_snapshots
		WHERE id NOT IN (
			SELECT id FROM catalog_snapshots
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune catalog snapshots: %w", err)
	}
	return nil
}
