package querysql

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Table is implemented by sources backed by a table of a SQL database.
// Only such sources can be joined.
type Table interface {
	TableName() string
}

// Compiler turns selections into SQL text for one dialect. Literal values
// are rendered inline by the dialect, so the output is a complete
// statement. Output is deterministic: the same selection always compiles
// to the same text.
type Compiler struct {
	Dialect Dialect
	// Prefix is prepended to every table name.
	Prefix string
	// Models maps {Model} references in expressions to table names. Models
	// without an entry use their own name.
	Models map[string]string
}

// NewCompiler returns a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// TableName resolves a model or table name to the stored table name.
func (c *Compiler) TableName(name string) string {
	if t, ok := c.Models[name]; ok {
		name = t
	}
	return c.Prefix + name
}

type quoter struct {
	Dialect
	c *Compiler
}

func (q quoter) QuoteModel(name string) string {
	return q.QuoteIdentifier(q.c.TableName(name))
}

// Expression renders e in the compiler's dialect.
func (c *Compiler) Expression(e expr.Expression) (string, error) {
	return e.ToSQL(quoter{Dialect: c.Dialect, c: c})
}

func (c *Compiler) from(table, alias string) string {
	s := c.Dialect.QuoteIdentifier(c.TableName(table))
	if alias != "" {
		s += " AS " + c.Dialect.QuoteIdentifier(alias)
	}
	return s
}

// Select compiles a read of table.
func (c *Compiler) Select(table string, sel query.Selection) (string, error) {
	if err := sel.Err(); err != nil {
		return "", err
	}
	qb, err := c.selectBuilder(table, sel.Clauses())
	if err != nil {
		return "", err
	}
	return toSQL(qb)
}

// Count compiles a count of the records sel matches, ignoring projection.
// Grouped, distinct or windowed selections are counted through a
// subquery.
func (c *Compiler) Count(table string, sel query.Selection) (string, error) {
	if err := sel.Err(); err != nil {
		return "", err
	}
	cl := sel.Clauses()
	if len(cl.Grouping) > 0 || cl.Distinct || cl.HasLimit || cl.Offset > 0 {
		inner, err := c.selectBuilder(table, cl)
		if err != nil {
			return "", err
		}
		return toSQL(sq.Select("COUNT(*)").FromSelect(inner, c.Dialect.QuoteIdentifier("counted")))
	}
	cl.Projection = nil
	cl.Ordering = nil
	qb, err := c.selectBuilder(table, cl, "COUNT(*)")
	if err != nil {
		return "", err
	}
	return toSQL(qb)
}

func (c *Compiler) selectBuilder(table string, cl query.Clauses, columns ...string) (sq.SelectBuilder, error) {
	var qb sq.SelectBuilder
	if len(columns) == 0 {
		cols, err := c.columns(table, cl)
		if err != nil {
			return qb, err
		}
		columns = cols
	}
	qb = sq.Select(columns...).From(c.from(table, cl.Alias))
	if cl.Distinct {
		qb = qb.Distinct()
	}

	for _, j := range cl.Joins {
		clause, err := c.join(j)
		if err != nil {
			return qb, err
		}
		qb = qb.JoinClause(clause)
	}

	if cl.Predicate != nil {
		where, err := c.Expression(cl.Predicate)
		if err != nil {
			return qb, fmt.Errorf("compile where: %w", err)
		}
		qb = qb.Where(where)
	}

	if len(cl.Grouping) > 0 {
		groups := make([]string, len(cl.Grouping))
		for i, g := range cl.Grouping {
			s, err := c.Expression(g)
			if err != nil {
				return qb, fmt.Errorf("compile group by: %w", err)
			}
			groups[i] = s
		}
		qb = qb.GroupBy(groups...)
		if cl.GroupPredicate != nil {
			having, err := c.Expression(cl.GroupPredicate)
			if err != nil {
				return qb, fmt.Errorf("compile having: %w", err)
			}
			qb = qb.Having(having)
		}
	}

	orderBy, err := c.orderBy(cl.Ordering)
	if err != nil {
		return qb, err
	}
	qb = qb.OrderBy(orderBy...)

	if window := c.Dialect.LimitOffset(cl.Limit, cl.HasLimit, cl.Offset); window != "" {
		qb = qb.Suffix(window)
	}
	return qb, nil
}

func (c *Compiler) columns(table string, cl query.Clauses) ([]string, error) {
	if len(cl.Projection) == 0 {
		if len(cl.Joins) == 0 {
			return []string{"*"}, nil
		}
		qualifier := cl.Alias
		if qualifier == "" {
			qualifier = c.TableName(table)
		}
		return []string{c.Dialect.QuoteIdentifier(qualifier) + ".*"}, nil
	}
	cols := make([]string, len(cl.Projection))
	for i, p := range cl.Projection {
		s, err := c.Expression(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile projection: %w", err)
		}
		cols[i] = s + " AS " + c.Dialect.QuoteIdentifier(p.Name())
	}
	return cols, nil
}

func (c *Compiler) join(j query.Join) (string, error) {
	t, ok := j.Source.(Table)
	if !ok {
		return "", &query.UnsupportedOperationError{Operation: fmt.Sprintf("join with %T", j.Source)}
	}
	if j.Condition == nil {
		return "", fmt.Errorf("%s join of %s has no condition", strings.ToLower(j.Kind.String()), t.TableName())
	}
	on, err := c.Expression(j.Condition)
	if err != nil {
		return "", fmt.Errorf("compile join: %w", err)
	}
	return fmt.Sprintf("%s JOIN %s ON %s", j.Kind, c.from(t.TableName(), j.Alias), on), nil
}

func (c *Compiler) orderBy(orderings []query.Ordering) ([]string, error) {
	out := make([]string, len(orderings))
	for i, o := range orderings {
		s, err := c.Expression(o.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile order by: %w", err)
		}
		if o.Descending {
			out[i] = s + " DESC"
		} else {
			out[i] = s + " ASC"
		}
	}
	return out, nil
}

// literals renders data in sorted field order. Types come from def when
// given; otherwise they are inferred from the values.
func (c *Compiler) literals(def schema.Definition, data map[string]value.Value) ([]string, []sq.Sqlizer, error) {
	fields := slices.Sorted(maps.Keys(data))
	vals := make([]sq.Sqlizer, len(fields))
	for i, f := range fields {
		typ := schema.InferType(data[f])
		if def != nil {
			t, ok := def.TypeOf(f)
			if !ok {
				return nil, nil, &schema.UnknownFieldError{Field: f, Source: def.Name()}
			}
			typ = t
		}
		lit, err := c.Dialect.QuoteLiteral(typ, data[f])
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", f, err)
		}
		vals[i] = sq.Expr(lit)
	}
	return fields, vals, nil
}

// Insert compiles an insert of one row. When returning names a column and
// the dialect supports it, the statement yields that column.
func (c *Compiler) Insert(table string, def schema.Definition, data map[string]value.Value, returning string) (string, error) {
	fields, vals, err := c.literals(def, data)
	if err != nil {
		return "", err
	}
	into := c.Dialect.QuoteIdentifier(c.TableName(table))
	suffix := ""
	if returning != "" && c.Dialect.Returning() {
		suffix = "RETURNING " + c.Dialect.QuoteIdentifier(returning)
	}

	if len(fields) == 0 {
		stmt := "INSERT INTO " + into + " DEFAULT VALUES"
		if _, ok := c.Dialect.(MySQL); ok {
			stmt = "INSERT INTO " + into + " () VALUES ()"
		}
		if suffix != "" {
			stmt += " " + suffix
		}
		return stmt, nil
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = c.Dialect.QuoteIdentifier(f)
	}
	values := make([]any, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	qb := sq.Insert(into).Columns(cols...).Values(values...)
	if suffix != "" {
		qb = qb.Suffix(suffix)
	}
	return toSQL(qb)
}

// Update compiles an update of the records sel matches. Fields are
// assigned in sorted order.
func (c *Compiler) Update(table string, def schema.Definition, sel query.Selection, data map[string]value.Value) (string, error) {
	if err := sel.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("update of %s assigns no fields", table)
	}
	fields, vals, err := c.literals(def, data)
	if err != nil {
		return "", err
	}
	qb := sq.Update(c.Dialect.QuoteIdentifier(c.TableName(table)))
	for i, f := range fields {
		qb = qb.Set(c.Dialect.QuoteIdentifier(f), vals[i])
	}

	m, err := c.mutation(table, sel.Clauses())
	if err != nil {
		return "", err
	}
	if m.where != "" {
		qb = qb.Where(m.where)
	}
	if m.limited {
		qb = qb.OrderBy(m.orderBy...).Limit(m.limit)
	}
	return toSQL(qb)
}

// Delete compiles a delete of the records sel matches.
func (c *Compiler) Delete(table string, sel query.Selection) (string, error) {
	if err := sel.Err(); err != nil {
		return "", err
	}
	m, err := c.mutation(table, sel.Clauses())
	if err != nil {
		return "", err
	}
	qb := sq.Delete(c.Dialect.QuoteIdentifier(c.TableName(table)))
	if m.where != "" {
		qb = qb.Where(m.where)
	}
	if m.limited {
		qb = qb.OrderBy(m.orderBy...).Limit(m.limit)
	}
	return toSQL(qb)
}

type mutation struct {
	where   string
	orderBy []string
	limited bool
	limit   uint64
}

// mutation renders the target clauses of an update or delete. A limit is
// applied directly where the dialect allows it, and otherwise through a
// row identifier subquery.
func (c *Compiler) mutation(table string, cl query.Clauses) (mutation, error) {
	var m mutation
	switch {
	case len(cl.Joins) > 0:
		return m, &query.UnsupportedOperationError{Operation: "join in update or delete"}
	case len(cl.Grouping) > 0:
		return m, &query.UnsupportedOperationError{Operation: "group by in update or delete"}
	case cl.Offset > 0:
		return m, &query.UnsupportedOperationError{Operation: "offset in update or delete"}
	}
	if cl.Predicate != nil {
		where, err := c.Expression(cl.Predicate)
		if err != nil {
			return m, fmt.Errorf("compile where: %w", err)
		}
		m.where = where
	}
	if !cl.HasLimit {
		return m, nil
	}
	orderBy, err := c.orderBy(cl.Ordering)
	if err != nil {
		return m, err
	}
	if c.Dialect.MutationLimit() {
		m.orderBy, m.limited, m.limit = orderBy, true, uint64(cl.Limit)
		return m, nil
	}

	rowID := c.Dialect.RowID()
	if rowID == "" {
		return m, &query.UnsupportedOperationError{Operation: "limit in update or delete for " + c.Dialect.Name()}
	}
	inner := sq.Select(rowID).From(c.Dialect.QuoteIdentifier(c.TableName(table)))
	if m.where != "" {
		inner = inner.Where(m.where)
	}
	inner = inner.OrderBy(orderBy...).Suffix(c.Dialect.LimitOffset(cl.Limit, true, 0))
	sub, err := toSQL(inner)
	if err != nil {
		return m, err
	}
	m.where = fmt.Sprintf("%s IN (%s)", rowID, sub)
	return m, nil
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func toSQL(b sqlizer) (string, error) {
	s, args, err := b.ToSql()
	if err != nil {
		return "", err
	}
	if len(args) > 0 {
		return "", fmt.Errorf("unexpected bound arguments in %q", s)
	}
	return s, nil
}
