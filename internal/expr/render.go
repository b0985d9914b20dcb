package expr

import (
	"strings"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Quoter supplies the dialect-specific parts of SQL rendering.
type Quoter interface {
	QuoteIdentifier(name string) string
	// QuoteModel renders a {Model} reference; sources resolve model names
	// to table names or aliases.
	QuoteModel(name string) string
	QuoteLiteral(t schema.DataType, v value.Value) (string, error)
	// LikeEscape is appended after a LIKE pattern so backslash escapes
	// have the same meaning as in memory.
	LikeEscape() string
}

// likeOperator is implemented by quoters whose plain LIKE is case
// sensitive.
type likeOperator interface {
	LikeOperator() string
}

var sqlOperators = map[Operator]string{
	OpLike:     "LIKE",
	OpIn:       "IN",
	OpNotEqual: "!=",
	OpDiamond:  "<>",
	OpGreatEq:  ">=",
	OpLessEq:   "<=",
	OpNotLess:  ">=", // !< is not portable
	OpNotGreat: "<=",
	OpEqual:    "=",
	OpLess:     "<",
	OpGreater:  ">",
	OpAnd:      "AND",
	OpOr:       "OR",
	OpIs:       "IS",
	OpIsNot:    "IS NOT",
	OpNot:      "NOT",
}

func (l *Literal) ToSQL(q Quoter) (string, error) {
	switch v := l.Value.(type) {
	case nil, value.Null:
		return "NULL", nil
	case value.List:
		if len(v) == 0 {
			return "(NULL)", nil
		}
		parts := make([]string, len(v))
		for i, elem := range v {
			s, err := (&Literal{Value: elem, Type: l.Type}).ToSQL(q)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
	return q.QuoteLiteral(l.Type, l.Value)
}

func isEmptyList(e Expression) bool {
	lit, ok := e.(*Literal)
	if !ok {
		return false
	}
	list, ok := lit.Value.(value.List)
	return ok && len(list) == 0
}

func (c *Column) ToSQL(q Quoter) (string, error) {
	name := q.QuoteIdentifier(c.Name)
	switch {
	case c.Model:
		return q.QuoteModel(c.Table) + "." + name, nil
	case c.Table != "":
		return q.QuoteIdentifier(c.Table) + "." + name, nil
	}
	return name, nil
}

func (p *Placeholder) ToSQL(Quoter) (string, error) {
	return "", &BindingError{Placeholder: p.String(), Reason: "placeholder is not bound"}
}

func (e *Infix) ToSQL(q Quoter) (string, error) {
	left, err := e.Left.ToSQL(q)
	if err != nil {
		return "", err
	}
	if operandNeedsParens(e, e.Left, false) {
		left = "(" + left + ")"
	}
	op := sqlOperators[e.Op]
	if lo, ok := q.(likeOperator); ok && e.Op == OpLike {
		op = lo.LikeOperator()
	}
	if e.Op == OpIs || e.Op == OpIsNot {
		return left + " " + op + " NULL", nil
	}
	if e.Op == OpIn && isEmptyList(e.Right) {
		// IN () is invalid in most dialects. Nothing is a member of an
		// empty list, but a null operand stays unknown.
		return "CASE WHEN " + left + " IS NULL THEN NULL ELSE 1 = 0 END", nil
	}

	right, err := e.Right.ToSQL(q)
	if err != nil {
		return "", err
	}
	if operandNeedsParens(e, e.Right, true) {
		right = "(" + right + ")"
	}
	if e.Op == OpIn {
		if _, isList := e.Right.(*Literal); isList && !strings.HasPrefix(right, "(") {
			right = "(" + right + ")"
		}
	}
	s := left + " " + op + " " + right
	if e.Op == OpLike {
		s += q.LikeEscape()
	}
	return s, nil
}

func (e *Prefix) ToSQL(q Quoter) (string, error) {
	operand, err := e.Operand.ToSQL(q)
	if err != nil {
		return "", err
	}
	// Non-atomic operands are always parenthesized so the result does not
	// depend on a dialect's NOT precedence.
	if precedence(e.Operand) < precAtom {
		operand = "(" + operand + ")"
	}
	return sqlOperators[e.Op] + " " + operand, nil
}

func (f *Func) ToSQL(q Quoter) (string, error) {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		s, err := a.ToSQL(q)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return strings.ToUpper(f.Name) + "(" + strings.Join(args, ", ") + ")", nil
}

func (r *Raw) ToSQL(Quoter) (string, error) { return r.SQL, nil }
