package harness

import (
	"context"
	"fmt"

	"github.com/roach88/dbal/internal/memory"
	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/store"
)

// Backend opens fresh, empty data sources for a table definition.
type Backend interface {
	Name() string
	Open(ctx context.Context, def schema.Definition) (query.DataSource, func() error, error)
}

// DefaultBackends are the in-memory executor and an in-memory SQLite
// database.
func DefaultBackends() []Backend {
	return []Backend{Memory{}, SQLite{}}
}

// Memory is the in-memory executor backend.
type Memory struct{}

func (Memory) Name() string { return "memory" }

func (Memory) Open(_ context.Context, def schema.Definition) (query.DataSource, func() error, error) {
	return memory.New(def), func() error { return nil }, nil
}

// SQLite runs against a private in-memory SQLite database.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Open(ctx context.Context, def schema.Definition) (query.DataSource, func() error, error) {
	db, err := store.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		return nil, nil, err
	}
	if err := db.CreateTable(ctx, def); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create table: %w", err)
	}
	return db.Table(def), db.Close, nil
}
