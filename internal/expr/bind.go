package expr

import (
	"fmt"
	"reflect"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// placeholderTypes maps placeholder tags to the data type their argument is
// coerced to.
var placeholderTypes = map[string]schema.Kind{
	"i": schema.Integer, "int": schema.Integer, "integer": schema.Integer,
	"f": schema.Float, "float": schema.Float,
	"s": schema.String, "str": schema.String, "string": schema.String,
	"t": schema.Text, "text": schema.Text,
	"b": schema.Boolean, "bool": schema.Boolean, "boolean": schema.Boolean,
	"d": schema.Date, "date": schema.Date,
	"dt": schema.DateTime, "datetime": schema.DateTime,
	"e": schema.Enum, "enum": schema.Enum,
	"o": schema.Object, "object": schema.Object,
	"bin": schema.Binary, "binary": schema.Binary,
	"u": schema.UUID, "uuid": schema.UUID,
}

// columnTags bind a field name instead of a value.
var columnTags = map[string]bool{"c": true, "column": true}

// Bind replaces the placeholders of e, left to right, with the given
// arguments. Typed placeholders coerce their argument; "?" infers the type
// from the Go value; "%c" binds a column name. Argument count must match
// the placeholder count exactly.
func Bind(e Expression, args ...any) (Expression, error) {
	next := 0
	bound, err := Rewrite(e, func(n Expression) (Expression, error) {
		ph, ok := n.(*Placeholder)
		if !ok {
			return n, nil
		}
		idx := next
		next++
		if idx >= len(args) {
			return nil, &BindingError{Index: idx, Placeholder: ph.String(), Reason: "missing argument"}
		}
		return bindPlaceholder(idx, ph, args[idx])
	})
	if err != nil {
		return nil, err
	}
	if next < len(args) {
		return nil, &BindingError{
			Index:  next,
			Reason: fmt.Sprintf("%d arguments for %d placeholders", len(args), next),
		}
	}
	return bound, nil
}

func bindPlaceholder(idx int, ph *Placeholder, arg any) (Expression, error) {
	fail := func(reason string, err error) (Expression, error) {
		return nil, &BindingError{Index: idx, Placeholder: ph.String(), Reason: reason, Err: err}
	}

	if columnTags[ph.Tag] {
		name, ok := arg.(string)
		if !ok || ph.List {
			return fail(fmt.Sprintf("column placeholder needs a string, got %T", arg), nil)
		}
		col, err := ParseColumn(name)
		if err != nil {
			return fail("invalid column name", err)
		}
		return col, nil
	}

	var typ schema.DataType
	inferred := ph.Tag == ""
	if !inferred {
		kind, ok := placeholderTypes[ph.Tag]
		if !ok {
			return fail(fmt.Sprintf("unknown placeholder type %q", ph.Tag), nil)
		}
		typ = schema.TypeFor(kind)
	}

	if ph.List {
		rv := reflect.ValueOf(arg)
		if arg == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return fail(fmt.Sprintf("list placeholder needs a slice, got %T", arg), nil)
		}
		list := make(value.List, rv.Len())
		for i := range rv.Len() {
			v, err := value.Of(rv.Index(i).Interface())
			if err != nil {
				return fail("unsupported value", err)
			}
			if inferred && i == 0 {
				typ = schema.InferType(v)
			}
			if !inferred {
				if v, err = typ.Convert(v); err != nil {
					return fail("cannot coerce list element", err)
				}
			}
			list[i] = v
		}
		if inferred && len(list) == 0 {
			typ = schema.TypeFor(schema.String)
		}
		return &Literal{Value: list, Type: typ}, nil
	}

	v, err := value.Of(arg)
	if err != nil {
		return fail("unsupported value", err)
	}
	if inferred {
		return &Literal{Value: v, Type: schema.InferType(v)}, nil
	}
	if v, err = typ.Convert(v); err != nil {
		return fail("cannot coerce argument", err)
	}
	return &Literal{Value: v, Type: typ}, nil
}

// Placeholders counts the unbound placeholders in e.
func Placeholders(e Expression) int {
	n := 0
	Walk(e, func(node Expression) bool {
		if _, ok := node.(*Placeholder); ok {
			n++
		}
		return true
	})
	return n
}

// Parser turns source text into expressions. *Cache implements it; the
// zero value of DefaultParser parses without caching.
type Parser interface {
	Parse(text string) (Expression, error)
}

// DefaultParser parses every call afresh.
type DefaultParser struct{}

func (DefaultParser) Parse(text string) (Expression, error) { return Parse(text) }

// E parses text and binds args to its placeholders.
func E(text string, args ...any) (Expression, error) {
	return ParseBind(DefaultParser{}, text, args...)
}

// MustE is E for expressions known to be valid. It panics on error.
func MustE(text string, args ...any) Expression {
	e, err := E(text, args...)
	if err != nil {
		panic(err)
	}
	return e
}

// ParseBind parses text with p and binds args.
func ParseBind(p Parser, text string, args ...any) (Expression, error) {
	e, err := p.Parse(text)
	if err != nil {
		return nil, err
	}
	return Bind(e, args...)
}
