package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/cellsql/pkg/language"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state store", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

func (s *SQLiteStore) ready() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return nil
}

// --- Cell operations ---

// SaveCell inserts or updates a cell. A cell without an ID gets a new one;
// a cell whose name is taken by another ID replaces that cell's content.
func (s *SQLiteStore) SaveCell(ctx context.Context, cell *Cell) error {
	if err := s.ready(); err != nil {
		return err
	}
	if cell.Name == "" {
		return fmt.Errorf("cell name is required")
	}
	if cell.Language == "" {
		cell.Language = language.Python
	}
	meta, err := language.MarshalMetadata(cell.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if cell.ID == "" {
		if existing, err := s.GetCellByName(ctx, cell.Name); err == nil {
			cell.ID = existing.ID
			cell.CreatedAt = existing.CreatedAt
		} else if errors.Is(err, ErrNotFound) {
			cell.ID = generateID()
		} else {
			return err
		}
	}
	if cell.CreatedAt.IsZero() {
		cell.CreatedAt = now
	}
	cell.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cells (id, name, language, host_code, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			language = excluded.language,
			host_code = excluded.host_code,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, cell.ID, cell.Name, string(cell.Language), cell.HostCode, string(meta), cell.CreatedAt, cell.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save cell %s: %w", cell.Name, err)
	}
	return nil
}

// GetCell retrieves a cell by ID.
func (s *SQLiteStore) GetCell(ctx context.Context, id string) (*Cell, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, selectCell+` WHERE id = ?`, id)
	cell, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cell %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return cell, nil
}

// GetCellByName retrieves a cell by name.
func (s *SQLiteStore) GetCellByName(ctx context.Context, name string) (*Cell, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, selectCell+` WHERE name = ?`, name)
	cell, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cell %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return cell, nil
}

// ListCells returns all cells ordered by name.
func (s *SQLiteStore) ListCells(ctx context.Context) ([]*Cell, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectCell+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cells []*Cell
	for rows.Next() {
		cell, err := scanCell(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells = append(cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cells, nil
}

// DeleteCell removes a cell by ID.
func (s *SQLiteStore) DeleteCell(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cells WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cell %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectCell = `SELECT id, name, language, host_code, metadata, created_at, updated_at FROM cells`

type scanner interface {
	Scan(dest ...any) error
}

func scanCell(row scanner) (*Cell, error) {
	var (
		cell Cell
		lang string
		meta string
	)
	if err := row.Scan(&cell.ID, &cell.Name, &lang, &cell.HostCode, &meta, &cell.CreatedAt, &cell.UpdatedAt); err != nil {
		return nil, err
	}
	t, err := language.ParseType(lang)
	if err != nil {
		return nil, err
	}
	cell.Language = t
	cell.Metadata, err = language.UnmarshalMetadata(t, []byte(strings.TrimSpace(meta)))
	if err != nil {
		return nil, err
	}
	return &cell, nil
}
