// Package query defines the immutable Selection model and the DataSource
// contract that executes it.
package query

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/schema"
)

// Ordering sorts by one expression, usually a column.
type Ordering struct {
	Expr       expr.Expression
	Descending bool
}

// Projection is one output column of a read.
type Projection struct {
	Expr  expr.Expression
	Alias string
}

// Name is the key the projected value is stored under: the alias, or the
// expression text when no alias was given.
func (p Projection) Name() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Expr.String()
}

// JoinKind selects the join type.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	}
	return "INNER"
}

// Join attaches another source to a selection.
type Join struct {
	Kind      JoinKind
	Source    DataSource
	Condition expr.Expression
	Alias     string
}

// Clauses is the plain-data view of a Selection that executors and
// compilers consume. Slices are copies owned by the caller.
type Clauses struct {
	Alias          string
	Predicate      expr.Expression
	Ordering       []Ordering
	Grouping       []expr.Expression
	GroupPredicate expr.Expression
	Projection     []Projection
	Joins          []Join
	Limit          int
	HasLimit       bool
	Offset         int
	Distinct       bool
}

// SortKey is the expression o sorts by. A bare column naming a
// projection alias sorts by the projected expression, as ORDER BY does.
func (c Clauses) SortKey(o Ordering) expr.Expression {
	col, ok := o.Expr.(*expr.Column)
	if !ok || col.Table != "" || col.Model {
		return o.Expr
	}
	for _, p := range c.Projection {
		if p.Name() == col.Name {
			return p.Expr
		}
	}
	return o.Expr
}

// Selection is an immutable description of which records to read, update
// or delete. Every builder method returns a new Selection and leaves the
// receiver unchanged, so selections can be shared and extended freely.
//
// Expression text passed to builders is parsed and bound immediately. A
// failure is kept in the returned Selection and reported by Err and by
// every executor; later builders still apply.
type Selection struct {
	parser expr.Parser
	c      Clauses
	err    error
}

// New returns an empty selection that parses without caching.
func New() Selection {
	return Selection{parser: expr.DefaultParser{}}
}

// NewWithParser returns an empty selection whose builders parse with p,
// typically an *expr.Cache.
func NewWithParser(p expr.Parser) Selection {
	return Selection{parser: p}
}

// Err returns the first error recorded while building the selection.
func (s Selection) Err() error { return s.err }

// Clauses returns a copy of the selection's clauses.
func (s Selection) Clauses() Clauses {
	c := s.c
	c.Ordering = slices.Clone(s.c.Ordering)
	c.Grouping = slices.Clone(s.c.Grouping)
	c.Projection = slices.Clone(s.c.Projection)
	c.Joins = slices.Clone(s.c.Joins)
	return c
}

func (s Selection) fail(err error) Selection {
	if s.err == nil {
		s.err = err
	}
	return s
}

// build turns a builder argument into an expression: text is parsed, and
// args are bound to the placeholders of either form.
func (s Selection) build(cond any, args []any) (expr.Expression, error) {
	switch c := cond.(type) {
	case nil:
		if len(args) > 0 {
			return nil, &expr.BindingError{Reason: "arguments given without an expression"}
		}
		return nil, nil
	case string:
		return expr.ParseBind(s.Parser(), c, args...)
	case expr.Expression:
		return expr.Bind(c, args...)
	}
	return nil, fmt.Errorf("query: expected string or expression, got %T", cond)
}

// Parser returns the parser the selection's builders use.
func (s Selection) Parser() expr.Parser {
	if s.parser == nil {
		return expr.DefaultParser{}
	}
	return s.parser
}

// Where replaces the predicate. A nil condition clears it.
func (s Selection) Where(cond any, args ...any) Selection {
	e, err := s.build(cond, args)
	if err != nil {
		return s.fail(err)
	}
	s.c.Predicate = e
	return s
}

// AndWhere combines the predicate with cond using and. Without an existing
// predicate, cond becomes the predicate.
func (s Selection) AndWhere(cond any, args ...any) Selection {
	e, err := s.build(cond, args)
	if err != nil {
		return s.fail(err)
	}
	s.c.Predicate = expr.And(s.c.Predicate, e)
	return s
}

// OrWhere combines the predicate with cond using or. Without an existing
// predicate, cond becomes the predicate.
func (s Selection) OrWhere(cond any, args ...any) Selection {
	e, err := s.build(cond, args)
	if err != nil {
		return s.fail(err)
	}
	s.c.Predicate = expr.Or(s.c.Predicate, e)
	return s
}

// And is shorthand for AndWhere.
func (s Selection) And(cond any, args ...any) Selection { return s.AndWhere(cond, args...) }

// Or is shorthand for OrWhere.
func (s Selection) Or(cond any, args ...any) Selection { return s.OrWhere(cond, args...) }

// OrderBy appends an ascending ordering. A nil field clears all orderings.
func (s Selection) OrderBy(field any) Selection {
	return s.order(field, false)
}

// OrderByDescending appends a descending ordering.
func (s Selection) OrderByDescending(field any) Selection {
	return s.order(field, true)
}

func (s Selection) order(field any, desc bool) Selection {
	if field == nil {
		s.c.Ordering = nil
		return s
	}
	e, err := s.build(field, nil)
	if err != nil {
		return s.fail(err)
	}
	s.c.Ordering = append(slices.Clip(s.c.Ordering), Ordering{Expr: e, Descending: desc})
	return s
}

// ReverseOrder flips the direction of every ordering.
func (s Selection) ReverseOrder() Selection {
	reversed := make([]Ordering, len(s.c.Ordering))
	for i, o := range s.c.Ordering {
		reversed[i] = Ordering{Expr: o.Expr, Descending: !o.Descending}
	}
	s.c.Ordering = reversed
	return s
}

// Limit caps the number of records. A negative n removes the limit.
func (s Selection) Limit(n int) Selection {
	s.c.Limit, s.c.HasLimit = n, n >= 0
	if n < 0 {
		s.c.Limit = 0
	}
	return s
}

// Offset skips the first n records.
func (s Selection) Offset(n int) Selection {
	if n < 0 {
		return s.fail(fmt.Errorf("query: negative offset %d", n))
	}
	s.c.Offset = n
	return s
}

// GroupBy groups by one or more columns: a string, []string, an
// expression or []expr.Expression. An optional group predicate (with its
// arguments) filters the groups.
func (s Selection) GroupBy(columns any, having ...any) Selection {
	var exprs []expr.Expression
	switch c := columns.(type) {
	case string:
		e, err := s.build(c, nil)
		if err != nil {
			return s.fail(err)
		}
		exprs = []expr.Expression{e}
	case []string:
		for _, text := range c {
			e, err := s.build(text, nil)
			if err != nil {
				return s.fail(err)
			}
			exprs = append(exprs, e)
		}
	case expr.Expression:
		exprs = []expr.Expression{c}
	case []expr.Expression:
		exprs = slices.Clone(c)
	default:
		return s.fail(fmt.Errorf("query: cannot group by %T", columns))
	}
	s.c.Grouping = exprs
	s.c.GroupPredicate = nil
	if len(having) > 0 {
		e, err := s.build(having[0], having[1:])
		if err != nil {
			return s.fail(err)
		}
		s.c.GroupPredicate = e
	}
	return s
}

// Select appends projections. fields is an expression text, an
// expression, a []string of expression texts, a map of alias to expression
// text (applied in alias order) or a []Projection. A single alias may be
// given for a single field.
func (s Selection) Select(fields any, alias ...string) Selection {
	var add []Projection
	switch f := fields.(type) {
	case string, expr.Expression:
		e, err := s.build(f, nil)
		if err != nil {
			return s.fail(err)
		}
		p := Projection{Expr: e}
		if len(alias) > 0 {
			p.Alias = alias[0]
		}
		add = []Projection{p}
	case []string:
		for _, text := range f {
			e, err := s.build(text, nil)
			if err != nil {
				return s.fail(err)
			}
			add = append(add, Projection{Expr: e})
		}
	case map[string]string:
		for _, a := range slices.Sorted(maps.Keys(f)) {
			e, err := s.build(f[a], nil)
			if err != nil {
				return s.fail(err)
			}
			add = append(add, Projection{Expr: e, Alias: a})
		}
	case []Projection:
		add = slices.Clone(f)
	default:
		return s.fail(fmt.Errorf("query: cannot select %T", fields))
	}
	s.c.Projection = append(slices.Clip(s.c.Projection), add...)
	return s
}

// Distinct drops duplicate result rows when on is true.
func (s Selection) Distinct(on bool) Selection {
	s.c.Distinct = on
	return s
}

// As sets the alias of the selection's own source.
func (s Selection) As(alias string) Selection {
	s.c.Alias = alias
	return s
}

// InnerJoin joins source on cond.
func (s Selection) InnerJoin(source DataSource, cond any, alias string, args ...any) Selection {
	return s.join(InnerJoin, source, cond, alias, args)
}

// LeftJoin left-joins source on cond.
func (s Selection) LeftJoin(source DataSource, cond any, alias string, args ...any) Selection {
	return s.join(LeftJoin, source, cond, alias, args)
}

// RightJoin right-joins source on cond.
func (s Selection) RightJoin(source DataSource, cond any, alias string, args ...any) Selection {
	return s.join(RightJoin, source, cond, alias, args)
}

func (s Selection) join(kind JoinKind, source DataSource, cond any, alias string, args []any) Selection {
	if source == nil {
		return s.fail(fmt.Errorf("query: %s join without a source", kind))
	}
	e, err := s.build(cond, args)
	if err != nil {
		return s.fail(err)
	}
	s.c.Joins = append(slices.Clip(s.c.Joins), Join{Kind: kind, Source: source, Condition: e, Alias: alias})
	return s
}

// Fields returns the names of every column the selection references, in
// first-use order.
func (s Selection) Fields() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(e expr.Expression) {
		for _, c := range expr.Columns(e) {
			name := c.Name
			if c.Table != "" {
				name = c.Table + "." + c.Name
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	add(s.c.Predicate)
	for _, o := range s.c.Ordering {
		add(s.c.SortKey(o))
	}
	for _, g := range s.c.Grouping {
		add(g)
	}
	add(s.c.GroupPredicate)
	for _, p := range s.c.Projection {
		add(p.Expr)
	}
	return names
}

// Validate checks every unqualified column (and every column qualified by
// the selection's alias) against def.
func (s Selection) Validate(def schema.Definition) error {
	if s.err != nil {
		return s.err
	}
	for _, name := range s.Fields() {
		table, field, qualified := strings.Cut(name, ".")
		if qualified && table != s.c.Alias {
			continue
		}
		if !qualified {
			field = table
		}
		if err := schema.CheckField(def, field); err != nil {
			return err
		}
	}
	return nil
}

// String renders a readable summary of the selection.
func (s Selection) String() string {
	var parts []string
	if s.c.Distinct {
		parts = append(parts, "distinct")
	}
	if len(s.c.Projection) > 0 {
		cols := make([]string, len(s.c.Projection))
		for i, p := range s.c.Projection {
			cols[i] = p.Expr.String()
			if p.Alias != "" {
				cols[i] += " as " + p.Alias
			}
		}
		parts = append(parts, "select "+strings.Join(cols, ", "))
	}
	for _, j := range s.c.Joins {
		parts = append(parts, fmt.Sprintf("%s join %s on %s", strings.ToLower(j.Kind.String()), j.Alias, j.Condition))
	}
	if s.c.Predicate != nil {
		parts = append(parts, "where "+s.c.Predicate.String())
	}
	if len(s.c.Grouping) > 0 {
		cols := make([]string, len(s.c.Grouping))
		for i, g := range s.c.Grouping {
			cols[i] = g.String()
		}
		parts = append(parts, "group by "+strings.Join(cols, ", "))
		if s.c.GroupPredicate != nil {
			parts = append(parts, "having "+s.c.GroupPredicate.String())
		}
	}
	if len(s.c.Ordering) > 0 {
		cols := make([]string, len(s.c.Ordering))
		for i, o := range s.c.Ordering {
			cols[i] = o.Expr.String()
			if o.Descending {
				cols[i] += " desc"
			}
		}
		parts = append(parts, "order by "+strings.Join(cols, ", "))
	}
	if s.c.HasLimit {
		parts = append(parts, fmt.Sprintf("limit %d", s.c.Limit))
	}
	if s.c.Offset > 0 {
		parts = append(parts, fmt.Sprintf("offset %d", s.c.Offset))
	}
	return strings.Join(parts, " ")
}
