// Package memory executes selections against records held in process.
package memory

import (
	"slices"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/record"
	"github.com/roach88/dbal/internal/value"
)

// Row is a record paired with the key it is stored under.
type Row struct {
	Key    value.Value
	Record *record.Record
}

// Execute applies sel to rows and returns the result. The input is not
// modified.
//
// The pipeline is: filter, group (keeping the first record of each group
// and applying the group predicate), stable ordering, projection,
// distinct, then offset and limit. Joins are not supported.
func Execute(sel query.Selection, rows []Row) ([]Row, error) {
	if err := sel.Err(); err != nil {
		return nil, err
	}
	c := sel.Clauses()
	if len(c.Joins) > 0 {
		return nil, &query.UnsupportedOperationError{Operation: "join in memory"}
	}

	out, err := filter(c.Predicate, rows)
	if err != nil {
		return nil, err
	}
	if len(c.Grouping) > 0 {
		if out, err = group(c.Grouping, out); err != nil {
			return nil, err
		}
		if out, err = filter(c.GroupPredicate, out); err != nil {
			return nil, err
		}
	}
	if err := order(c, out); err != nil {
		return nil, err
	}
	if len(c.Projection) > 0 {
		if out, err = project(c.Projection, out); err != nil {
			return nil, err
		}
	}
	if c.Distinct {
		if out, err = distinct(out); err != nil {
			return nil, err
		}
	}
	return window(out, c.Offset, c.Limit, c.HasLimit), nil
}

// Targets selects the rows an update or delete with sel affects: the
// predicate, ordering and limit apply.
func Targets(sel query.Selection, rows []Row) ([]Row, error) {
	if err := sel.Err(); err != nil {
		return nil, err
	}
	c := sel.Clauses()
	switch {
	case len(c.Joins) > 0:
		return nil, &query.UnsupportedOperationError{Operation: "join in update or delete"}
	case len(c.Grouping) > 0:
		return nil, &query.UnsupportedOperationError{Operation: "group by in update or delete"}
	case c.Offset > 0:
		return nil, &query.UnsupportedOperationError{Operation: "offset in update or delete"}
	}
	out, err := filter(c.Predicate, rows)
	if err != nil {
		return nil, err
	}
	if err := order(c, out); err != nil {
		return nil, err
	}
	return window(out, 0, c.Limit, c.HasLimit), nil
}

func filter(pred expr.Expression, rows []Row) ([]Row, error) {
	if pred == nil {
		return slices.Clone(rows), nil
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		ok, err := expr.Matches(pred, r.Record)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// group sorts rows by the grouping expressions and keeps the first row of
// each distinct key.
func group(columns []expr.Expression, rows []Row) ([]Row, error) {
	orderings := make([]query.Ordering, len(columns))
	for i, c := range columns {
		orderings[i] = query.Ordering{Expr: c}
	}
	keys, err := evaluateAll(columns, rows)
	if err != nil {
		return nil, err
	}
	idx := sortedIndex(orderings, keys)

	seen := make(map[string]bool)
	out := make([]Row, 0, len(rows))
	for _, i := range idx {
		k, err := value.Key(keys[i]...)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rows[i])
	}
	return out, nil
}

// order stably sorts rows in place.
func order(c query.Clauses, rows []Row) error {
	orderings := c.Ordering
	if len(orderings) == 0 {
		return nil
	}
	exprs := make([]expr.Expression, len(orderings))
	for i, o := range orderings {
		exprs[i] = c.SortKey(o)
	}
	keys, err := evaluateAll(exprs, rows)
	if err != nil {
		return err
	}
	idx := sortedIndex(orderings, keys)
	sorted := make([]Row, len(rows))
	for pos, i := range idx {
		sorted[pos] = rows[i]
	}
	copy(rows, sorted)
	return nil
}

func evaluateAll(exprs []expr.Expression, rows []Row) ([][]value.Value, error) {
	keys := make([][]value.Value, len(rows))
	for i, r := range rows {
		keys[i] = make([]value.Value, len(exprs))
		for j, e := range exprs {
			v, err := e.Evaluate(r.Record)
			if err != nil {
				return nil, err
			}
			keys[i][j] = v
		}
	}
	return keys, nil
}

func sortedIndex(orderings []query.Ordering, keys [][]value.Value) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		for j, o := range orderings {
			cmp := value.SortCompare(keys[a][j], keys[b][j])
			if o.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	})
	return idx
}

func project(projection []query.Projection, rows []Row) ([]Row, error) {
	names := make([]string, len(projection))
	for i, p := range projection {
		names[i] = p.Name()
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		vals := make(map[string]value.Value, len(projection))
		for j, p := range projection {
			v, err := p.Expr.Evaluate(r.Record)
			if err != nil {
				return nil, err
			}
			vals[names[j]] = v
		}
		out[i] = Row{Key: r.Key, Record: record.FromValues(names, vals)}
	}
	return out, nil
}

func distinct(rows []Row) ([]Row, error) {
	seen := make(map[string]bool)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		fields := r.Record.Fields()
		vals := make([]value.Value, len(fields))
		for i, f := range fields {
			v, err := r.Record.Get(f)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		k, err := value.Key(vals...)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, r)
		}
	}
	return out, nil
}

func window(rows []Row, offset, limit int, hasLimit bool) []Row {
	if offset >= len(rows) {
		return rows[:0]
	}
	rows = rows[offset:]
	if hasLimit && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
