package query

import (
	"context"
	"errors"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/record"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// UnsupportedOperationError reports a selection feature a source cannot
// execute, such as joins in memory.
type UnsupportedOperationError = expr.UnsupportedOperationError

// ErrNoRecord is returned by First and Last when nothing matches.
var ErrNoRecord = errors.New("query: no matching record")

// DataSource reads and writes records of one definition.
//
// Update and Delete honor the selection's predicate, ordering and limit,
// and return the number of affected records.
type DataSource interface {
	Definition() schema.Definition
	Read(ctx context.Context, sel Selection) ([]*record.Record, error)
	Insert(ctx context.Context, data map[string]any) (value.Value, error)
	Update(ctx context.Context, sel Selection, data map[string]any) (int, error)
	Delete(ctx context.Context, sel Selection) (int, error)
	// JoinWith returns a source able to evaluate selections that join
	// other, or nil when the two cannot be joined.
	JoinWith(other DataSource) DataSource
}

// Counter is implemented by sources that count without reading records.
type Counter interface {
	Count(ctx context.Context, sel Selection) (int, error)
}

// All reads every record matching sel.
func All(ctx context.Context, src DataSource, sel Selection) ([]*record.Record, error) {
	if err := sel.Err(); err != nil {
		return nil, err
	}
	return src.Read(ctx, sel)
}

// First reads the first record matching sel.
func First(ctx context.Context, src DataSource, sel Selection) (*record.Record, error) {
	recs, err := All(ctx, src, sel.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoRecord
	}
	return recs[0], nil
}

// Last reads the last record matching sel by reversing its ordering. An
// unordered selection is ordered by primary key.
func Last(ctx context.Context, src DataSource, sel Selection) (*record.Record, error) {
	if len(sel.c.Ordering) == 0 {
		for _, f := range src.Definition().PrimaryKey() {
			sel = sel.OrderBy(expr.Col(f))
		}
	}
	return First(ctx, src, sel.ReverseOrder())
}

// Count returns the number of records matching sel, ignoring its limit
// and offset.
func Count(ctx context.Context, src DataSource, sel Selection) (int, error) {
	if err := sel.Err(); err != nil {
		return 0, err
	}
	sel = sel.Limit(-1).Offset(0).OrderBy(nil)
	if c, ok := src.(Counter); ok {
		return c.Count(ctx, sel)
	}
	recs, err := src.Read(ctx, sel)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
