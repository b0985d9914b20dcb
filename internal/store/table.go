package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/record"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Table is a query.DataSource backed by one table of a DB.
type Table struct {
	db  *DB
	def schema.Definition
}

var (
	_ query.DataSource = (*Table)(nil)
	_ query.Counter    = (*Table)(nil)
)

// TableName returns the unprefixed table name; the compiler applies any
// prefix.
func (t *Table) TableName() string { return t.def.Name() }

func (t *Table) Definition() schema.Definition { return t.def }

func (t *Table) Read(ctx context.Context, sel query.Selection) ([]*record.Record, error) {
	if err := t.check(sel); err != nil {
		return nil, err
	}
	stmt, err := t.db.compiler.Select(t.TableName(), sel)
	if err != nil {
		return nil, err
	}
	rows, err := t.db.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}

	projection := sel.Clauses().Projection
	recs := make([]*record.Record, len(rows))
	for i, row := range rows {
		if len(projection) > 0 {
			recs[i], err = t.decodeProjection(projection, row)
		} else {
			recs[i], err = record.Decode(t.def, row)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", t.TableName(), err)
		}
	}
	return recs, nil
}

// decodeProjection builds an ad-hoc record in projection order. Values of
// plain column projections are converted to the column's declared type so
// they read the same as the stored field.
func (t *Table) decodeProjection(projection []query.Projection, row map[string]any) (*record.Record, error) {
	names := make([]string, len(projection))
	vals := make(map[string]value.Value, len(projection))
	for i, p := range projection {
		name := p.Name()
		names[i] = name
		v, err := value.Of(row[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		if col, ok := p.Expr.(*expr.Column); ok {
			if typ, ok := t.def.TypeOf(col.Name); ok {
				if v, err = typ.Convert(v); err != nil {
					return nil, fmt.Errorf("column %s: %w", name, err)
				}
			}
		}
		vals[name] = v
	}
	return record.FromValues(names, vals), nil
}

func (t *Table) Count(ctx context.Context, sel query.Selection) (int, error) {
	if err := t.check(sel); err != nil {
		return 0, err
	}
	stmt, err := t.db.compiler.Count(t.TableName(), sel)
	if err != nil {
		return 0, err
	}
	rows, err := t.db.Query(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("count of %s returned %d rows", t.TableName(), len(rows))
	}
	for _, v := range rows[0] {
		n, err := schema.TypeFor(schema.Integer).Convert(value.MustOf(v))
		if err != nil {
			return 0, err
		}
		return int(n.(value.Int)), nil
	}
	return 0, fmt.Errorf("count of %s returned no columns", t.TableName())
}

// coerce converts raw field data to the declared field types.
func (t *Table) coerce(data map[string]any) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(data))
	for _, f := range slices.Sorted(maps.Keys(data)) {
		typ, ok := t.def.TypeOf(f)
		if !ok {
			return nil, &schema.UnknownFieldError{Field: f, Source: t.def.Name()}
		}
		v, err := value.Of(data[f])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		if out[f], err = typ.Convert(v); err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
	}
	return out, nil
}

// Insert writes one row and returns its primary key. Serial UUID keys are
// generated here; serial integer keys are assigned by the database.
func (t *Table) Insert(ctx context.Context, data map[string]any) (value.Value, error) {
	vals, err := t.coerce(data)
	if err != nil {
		return nil, err
	}
	serial, typ, hasSerial := schema.SerialField(t.def)
	if hasSerial && value.IsNull(vals[serial]) {
		delete(vals, serial)
		if v, ok := typ.Generate(); ok {
			vals[serial] = v
		}
	}

	returning := ""
	if hasSerial && typ.Kind == schema.Integer {
		if _, given := vals[serial]; !given {
			returning = serial
		}
	}
	stmt, err := t.db.compiler.Insert(t.TableName(), t.def, vals, returning)
	if err != nil {
		return nil, err
	}

	if returning != "" && t.db.Dialect().Returning() {
		rows, err := t.db.Query(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if len(rows) != 1 {
			return nil, fmt.Errorf("insert into %s returned %d rows", t.TableName(), len(rows))
		}
		return typ.Convert(value.MustOf(rows[0][returning]))
	}

	res, err := t.db.Exec(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if returning != "" {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", t.TableName(), err)
		}
		return value.Int(id), nil
	}
	if pk := t.def.PrimaryKey(); len(pk) == 1 {
		return orNull(vals[pk[0]]), nil
	}
	return value.Null{}, nil
}

func orNull(v value.Value) value.Value {
	if v == nil {
		return value.Null{}
	}
	return v
}

func (t *Table) Update(ctx context.Context, sel query.Selection, data map[string]any) (int, error) {
	if err := t.check(sel); err != nil {
		return 0, err
	}
	vals, err := t.coerce(data)
	if err != nil {
		return 0, err
	}
	stmt, err := t.db.compiler.Update(t.TableName(), t.def, sel, vals)
	if err != nil {
		return 0, err
	}
	return t.affected(ctx, stmt)
}

func (t *Table) Delete(ctx context.Context, sel query.Selection) (int, error) {
	if err := t.check(sel); err != nil {
		return 0, err
	}
	stmt, err := t.db.compiler.Delete(t.TableName(), sel)
	if err != nil {
		return 0, err
	}
	return t.affected(ctx, stmt)
}

// check rejects selections naming fields the table does not declare, so
// they fail the same way they do in memory. Joined selections are left to
// the database.
func (t *Table) check(sel query.Selection) error {
	if len(sel.Clauses().Joins) > 0 {
		return sel.Err()
	}
	return sel.Validate(t.def)
}

func (t *Table) affected(ctx context.Context, stmt string) (int, error) {
	res, err := t.db.Exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// JoinWith returns t when other is a table of the same database.
func (t *Table) JoinWith(other query.DataSource) query.DataSource {
	if o, ok := other.(*Table); ok && o.db == t.db {
		return t
	}
	return nil
}
