package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cellsql/pkg/catalog"
)

// MaxConcurrent bounds how many databases are introspected at once.
const MaxConcurrent = 4

// Run connects to cfg, introspects it and closes the connection.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) (*catalog.Connection, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	in, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := in.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connection %s: %w", cfg.Name, err)
	}
	defer func() { _ = in.Close() }()

	conn, err := in.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", cfg.Name, err)
	}
	logger.Info("introspected connection",
		slog.String("connection", cfg.Name),
		slog.String("type", cfg.Type),
		slog.Int("tables", conn.TableCount()),
		slog.Duration("elapsed", time.Since(start)))
	return conn, nil
}

// All introspects every configured connection concurrently. Connections come
// back in cfgs order; the first failure cancels the rest.
func All(ctx context.Context, cfgs []Config, logger *slog.Logger) ([]catalog.Connection, error) {
	out := make([]catalog.Connection, len(cfgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrent)
	for i, cfg := range cfgs {
		g.Go(func() error {
			conn, err := Run(ctx, cfg, logger)
			if err != nil {
				return err
			}
			out[i] = *conn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge folds introspected connections into base. Connections replace
// existing ones of the same name; the rest are appended.
func Merge(base *catalog.Snapshot, conns []catalog.Connection) *catalog.Snapshot {
	out := &catalog.Snapshot{}
	if base != nil {
		out.Tables = base.Tables
		out.Variables = base.Variables
		out.Connections = append(out.Connections, base.Connections...)
	}

	index := make(map[string]int, len(out.Connections))
	for i, c := range out.Connections {
		index[c.Name] = i
	}
	for _, c := range conns {
		if i, ok := index[c.Name]; ok {
			out.Connections[i] = c
			continue
		}
		index[c.Name] = len(out.Connections)
		out.Connections = append(out.Connections, c)
	}
	return out
}
