// Package expr implements the predicate expression language: its AST,
// lexer and parser, placeholder binding, in-memory evaluation and SQL
// rendering.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Expression is the interface all AST nodes implement. Trees are immutable:
// binding and rewriting build new nodes.
type Expression interface {
	node() // marker method

	// String renders the unquoted source form. Parsed trees render to text
	// that parses back to an equal tree.
	String() string

	// Evaluate computes the value of the expression for one row.
	Evaluate(row Row) (value.Value, error)

	// ToSQL renders the expression as SQL using q for identifiers and
	// literals.
	ToSQL(q Quoter) (string, error)
}

// Row is the field lookup an expression evaluates against.
type Row interface {
	Get(field string) (value.Value, error)
}

// Operator is an infix or prefix operator.
type Operator string

const (
	OpLike     Operator = "like"
	OpIn       Operator = "in"
	OpNotEqual Operator = "!="
	OpDiamond  Operator = "<>"
	OpGreatEq  Operator = ">="
	OpLessEq   Operator = "<="
	OpNotLess  Operator = "!<"
	OpNotGreat Operator = "!>"
	OpEqual    Operator = "="
	OpLess     Operator = "<"
	OpGreater  Operator = ">"
	OpAnd      Operator = "and"
	OpOr       Operator = "or"
	OpIs       Operator = "is"
	OpIsNot    Operator = "is not"
	OpNot      Operator = "not"
)

// Literal is a typed constant. Lists appear only after binding a list
// placeholder.
type Literal struct {
	Value value.Value
	Type  schema.DataType
}

// Column references a field, optionally qualified by a table alias or, when
// Model is set, a {Model} reference.
type Column struct {
	Table string
	Model bool
	Name  string
}

// Placeholder is an unbound argument slot: "?" (Tag empty) or "%tag".
// List placeholders ("?()", "%s()") bind a slice.
type Placeholder struct {
	Tag  string
	List bool
}

// Infix applies a binary operator. For is/is not the right operand is the
// null literal.
type Infix struct {
	Left  Expression
	Op    Operator
	Right Expression
}

// Prefix applies a unary operator (not).
type Prefix struct {
	Op      Operator
	Operand Expression
}

// Func is a function call such as COUNT(x). Function calls are built in
// code; the text grammar does not produce them.
type Func struct {
	Name string
	Args []Expression
}

// Raw is a verbatim SQL fragment. It cannot be evaluated in memory.
type Raw struct {
	SQL string
}

func (*Literal) node()     {}
func (*Column) node()      {}
func (*Placeholder) node() {}
func (*Infix) node()       {}
func (*Prefix) node()      {}
func (*Func) node()        {}
func (*Raw) node()         {}

// Lit builds a literal from a Go value, inferring its type.
func Lit(v any) *Literal {
	val := value.MustOf(v)
	return &Literal{Value: val, Type: schema.InferType(val)}
}

// Null is the null literal.
func Null() *Literal {
	return &Literal{Value: value.Null{}, Type: schema.TypeFor(schema.String)}
}

// Col builds a column reference. "table.field" splits on the first dot.
func Col(name string) *Column {
	if table, field, ok := strings.Cut(name, "."); ok {
		return &Column{Table: table, Name: field}
	}
	return &Column{Name: name}
}

// Compare builds left op right.
func Compare(left Expression, op Operator, right Expression) *Infix {
	return &Infix{Left: left, Op: op, Right: right}
}

// And joins two predicates. A nil side yields the other.
func And(left, right Expression) Expression {
	return join(left, OpAnd, right)
}

// Or joins two predicates. A nil side yields the other.
func Or(left, right Expression) Expression {
	return join(left, OpOr, right)
}

func join(left Expression, op Operator, right Expression) Expression {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return &Infix{Left: left, Op: op, Right: right}
}

// Not negates a predicate.
func Not(e Expression) *Prefix {
	return &Prefix{Op: OpNot, Operand: e}
}

// Call builds a function call.
func Call(name string, args ...Expression) *Func {
	return &Func{Name: name, Args: args}
}

// precedence levels used when deciding where parentheses are needed.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAtom
)

func precedence(e Expression) int {
	switch n := e.(type) {
	case *Infix:
		switch n.Op {
		case OpOr:
			return precOr
		case OpAnd:
			return precAnd
		}
		return precCompare
	case *Prefix:
		return precNot
	}
	return precAtom
}

// operandNeedsParens reports whether child must be parenthesized when it
// appears as an operand of parent.
func operandNeedsParens(parent *Infix, child Expression, right bool) bool {
	switch parent.Op {
	case OpAnd, OpOr:
		p, c := precedence(parent), precedence(child)
		if right {
			return c <= p
		}
		return c < p
	}
	return precedence(child) < precAtom
}

func (l *Literal) String() string {
	return literalText(l.Value)
}

func literalText(v value.Value) string {
	switch val := v.(type) {
	case nil, value.Null:
		return "null"
	case value.Bool:
		if val {
			return "true"
		}
		return "false"
	case value.Int:
		return strconv.FormatInt(int64(val), 10)
	case value.Float:
		s := strconv.FormatFloat(float64(val), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEN") {
			s += ".0"
		}
		return s
	case value.String:
		return quoteString(string(val))
	case value.List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = literalText(elem)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return quoteString(value.Text(v))
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func (c *Column) String() string {
	name := c.Name
	if !isBareName(name) {
		name = "[" + name + "]"
	}
	switch {
	case c.Model:
		return "{" + c.Table + "}." + name
	case c.Table != "":
		return c.Table + "." + name
	}
	return name
}

// isBareName reports whether s lexes as a plain name token rather than a
// keyword or something else.
func isBareName(s string) bool {
	if s == "" || isKeyword(s) {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (p *Placeholder) String() string {
	s := "?"
	if p.Tag != "" {
		s = "%" + p.Tag
	}
	if p.List {
		s += "()"
	}
	return s
}

func (e *Infix) String() string {
	left := e.Left.String()
	if operandNeedsParens(e, e.Left, false) {
		left = "(" + left + ")"
	}
	if e.Op == OpIs || e.Op == OpIsNot {
		return left + " " + string(e.Op) + " null"
	}
	right := e.Right.String()
	if operandNeedsParens(e, e.Right, true) {
		right = "(" + right + ")"
	}
	return left + " " + string(e.Op) + " " + right
}

func (e *Prefix) String() string {
	operand := e.Operand.String()
	if precedence(e.Operand) < precNot {
		operand = "(" + operand + ")"
	}
	return string(e.Op) + " " + operand
}

func (f *Func) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

func (r *Raw) String() string { return r.SQL }

// Walk visits e and its descendants depth first, left to right. Returning
// false from fn skips the children of that node.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Infix:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Prefix:
		Walk(n.Operand, fn)
	case *Func:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	}
}

// Columns returns every column referenced by e in source order.
func Columns(e Expression) []*Column {
	var cols []*Column
	Walk(e, func(n Expression) bool {
		if c, ok := n.(*Column); ok {
			cols = append(cols, c)
		}
		return true
	})
	return cols
}

// Rewrite rebuilds e bottom-up, replacing each node with the result of fn.
// Nodes fn leaves unchanged are shared with the original tree.
func Rewrite(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	if e == nil {
		return nil, nil
	}
	switch n := e.(type) {
	case *Infix:
		left, err := Rewrite(n.Left, fn)
		if err != nil {
			return nil, err
		}
		right, err := Rewrite(n.Right, fn)
		if err != nil {
			return nil, err
		}
		if left != n.Left || right != n.Right {
			e = &Infix{Left: left, Op: n.Op, Right: right}
		}
	case *Prefix:
		operand, err := Rewrite(n.Operand, fn)
		if err != nil {
			return nil, err
		}
		if operand != n.Operand {
			e = &Prefix{Op: n.Op, Operand: operand}
		}
	case *Func:
		var args []Expression
		changed := false
		for _, a := range n.Args {
			na, err := Rewrite(a, fn)
			if err != nil {
				return nil, err
			}
			changed = changed || na != a
			args = append(args, na)
		}
		if changed {
			e = &Func{Name: n.Name, Args: args}
		}
	}
	return fn(e)
}
