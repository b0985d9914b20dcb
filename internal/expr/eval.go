package expr

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/dbal/internal/value"
)

// Evaluation follows SQL three-valued logic: a comparison with a null
// operand is null (unknown), and/or use Kleene logic, and callers that
// filter treat null as false.

func (l *Literal) Evaluate(Row) (value.Value, error) {
	if l.Value == nil {
		return value.Null{}, nil
	}
	return l.Value, nil
}

func (c *Column) Evaluate(row Row) (value.Value, error) {
	return row.Get(c.Name)
}

func (p *Placeholder) Evaluate(Row) (value.Value, error) {
	return nil, &BindingError{Placeholder: p.String(), Reason: "placeholder is not bound"}
}

func (e *Prefix) Evaluate(row Row) (value.Value, error) {
	if e.Op != OpNot {
		panic(fmt.Sprintf("expr: unknown prefix operator %q", e.Op))
	}
	v, err := e.Operand.Evaluate(row)
	if err != nil {
		return nil, err
	}
	truth, ok := value.Truthy(v)
	if !ok {
		return value.Null{}, nil
	}
	return value.Bool(!truth), nil
}

func (e *Infix) Evaluate(row Row) (value.Value, error) {
	switch e.Op {
	case OpAnd, OpOr:
		return e.evaluateLogical(row)
	case OpIs, OpIsNot:
		left, err := e.Left.Evaluate(row)
		if err != nil {
			return nil, err
		}
		return value.Bool(value.IsNull(left) == (e.Op == OpIs)), nil
	}

	left, err := e.Left.Evaluate(row)
	if err != nil {
		return nil, err
	}
	right, err := e.Right.Evaluate(row)
	if err != nil {
		return nil, err
	}
	if value.IsNull(left) {
		return value.Null{}, nil
	}

	switch e.Op {
	case OpIn:
		return evaluateIn(left, right), nil
	case OpLike:
		if value.IsNull(right) {
			return value.Null{}, nil
		}
		return value.Bool(Like(value.Text(left), value.Text(right))), nil
	case OpEqual, OpNotEqual, OpDiamond:
		eq, ok := value.Equal(left, right)
		if !ok {
			return value.Null{}, nil
		}
		return value.Bool(eq == (e.Op == OpEqual)), nil
	}

	cmp, ok := value.Compare(left, right)
	if !ok {
		return value.Null{}, nil
	}
	switch e.Op {
	case OpLess:
		return value.Bool(cmp < 0), nil
	case OpLessEq, OpNotGreat:
		return value.Bool(cmp <= 0), nil
	case OpGreater:
		return value.Bool(cmp > 0), nil
	case OpGreatEq, OpNotLess:
		return value.Bool(cmp >= 0), nil
	}
	panic(fmt.Sprintf("expr: unknown infix operator %q", e.Op))
}

// evaluateLogical applies Kleene and/or, skipping the right operand when
// the left one decides the result.
func (e *Infix) evaluateLogical(row Row) (value.Value, error) {
	decisive := e.Op == OpOr // true decides or, false decides and

	left, err := e.Left.Evaluate(row)
	if err != nil {
		return nil, err
	}
	lt, lok := value.Truthy(left)
	if lok && lt == decisive {
		return value.Bool(decisive), nil
	}

	right, err := e.Right.Evaluate(row)
	if err != nil {
		return nil, err
	}
	rt, rok := value.Truthy(right)
	if rok && rt == decisive {
		return value.Bool(decisive), nil
	}
	if !lok || !rok {
		return value.Null{}, nil
	}
	return value.Bool(!decisive), nil
}

// evaluateIn reports membership of left in right. A non-list right operand
// is treated as a single-element list. A miss against a list holding null
// is unknown.
func evaluateIn(left, right value.Value) value.Value {
	list, ok := right.(value.List)
	if !ok {
		list = value.List{right}
	}
	sawNull := false
	for _, item := range list {
		eq, ok := value.Equal(left, item)
		if !ok {
			sawNull = true
			continue
		}
		if eq {
			return value.Bool(true)
		}
	}
	if sawNull {
		return value.Null{}
	}
	return value.Bool(false)
}

var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "min": true, "max": true, "avg": true,
}

func (f *Func) Evaluate(row Row) (value.Value, error) {
	name := strings.ToLower(f.Name)
	if aggregateFuncs[name] {
		return nil, &UnsupportedOperationError{Operation: fmt.Sprintf("aggregate %s over in-memory rows", strings.ToUpper(name))}
	}

	args := make([]value.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Evaluate(row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if name == "coalesce" {
		for _, a := range args {
			if !value.IsNull(a) {
				return a, nil
			}
		}
		return value.Null{}, nil
	}

	if len(args) != 1 {
		return nil, &UnsupportedOperationError{Operation: fmt.Sprintf("function %s with %d arguments", f.Name, len(args))}
	}
	arg := args[0]
	if value.IsNull(arg) {
		return value.Null{}, nil
	}
	switch name {
	case "lower":
		return value.String(strings.ToLower(value.Text(arg))), nil
	case "upper":
		return value.String(strings.ToUpper(value.Text(arg))), nil
	case "length":
		return value.Int(utf8.RuneCountInString(value.Text(arg))), nil
	case "abs":
		d, ok := value.Numeric(arg)
		if !ok {
			return value.Null{}, nil
		}
		if _, isInt := arg.(value.Int); isInt {
			return value.Int(d.Abs().IntPart()), nil
		}
		f, _ := d.Abs().Float64()
		return value.Float(f), nil
	}
	return nil, &UnsupportedOperationError{Operation: fmt.Sprintf("function %s", f.Name)}
}

func (r *Raw) Evaluate(Row) (value.Value, error) {
	return nil, &UnsupportedOperationError{Operation: "raw SQL over in-memory rows"}
}

// Matches evaluates e as a predicate: only a truthy result matches, so an
// unknown (null) result does not.
func Matches(e Expression, row Row) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := e.Evaluate(row)
	if err != nil {
		return false, err
	}
	truth, ok := value.Truthy(v)
	return ok && truth, nil
}
