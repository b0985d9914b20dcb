package harness

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Error kinds.
const (
	ErrLex          = "lex"
	ErrParse        = "parse"
	ErrBinding      = "binding"
	ErrUnknownField = "unknown_field"
	ErrTypeCoercion = "type_coercion"
	ErrUnsupported  = "unsupported"
	ErrOther        = "error"
)

var errorKinds = []string{
	ErrLex, ErrParse, ErrBinding, ErrUnknownField, ErrTypeCoercion, ErrUnsupported, ErrOther,
}

// ErrorKind classifies err by the most specific error type it wraps.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		le *expr.LexError
		pe *expr.ParseError
	)
	switch {
	case errors.As(err, &le):
		return ErrLex
	case errors.As(err, &pe):
		return ErrParse
	case expr.IsBindingError(err):
		return ErrBinding
	case schema.IsUnknownField(err):
		return ErrUnknownField
	case schema.IsTypeCoercion(err):
		return ErrTypeCoercion
	case expr.IsUnsupported(err):
		return ErrUnsupported
	}
	return ErrOther
}

// checkOutcome returns a message for every expectation out fails.
func checkOutcome(step Step, out Outcome) []string {
	want := step.Expect
	if kind := out.ErrorKind(); kind != want.Error {
		if want.Error == "" {
			return []string{fmt.Sprintf("unexpected error: %v", out.Err)}
		}
		return []string{fmt.Sprintf("expected %s error, got %q (%v)", want.Error, kind, out.Err)}
	}
	if want.Error != "" {
		return nil
	}

	var msgs []string
	if want.Count != nil && *want.Count != out.Count {
		msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *want.Count, out.Count))
	}
	if want.Key != nil {
		if !valuesEqual(out.Key, want.Key) {
			msgs = append(msgs, fmt.Sprintf("expected key %v, got %v", want.Key, goValue(out.Key)))
		}
	}
	if want.Rows != nil {
		if len(want.Rows) != len(out.Rows) {
			msgs = append(msgs, fmt.Sprintf("expected %d rows, got %d: %v", len(want.Rows), len(out.Rows), formatRows(out.Rows)))
			return msgs
		}
		for i, row := range want.Rows {
			if !matchRow(out.Rows[i], row) {
				msgs = append(msgs, fmt.Sprintf("row %d: expected %v, got %v", i, row, goValue(out.Rows[i])))
			}
		}
	}
	return msgs
}

// matchRow reports whether every expected field is present in actual with
// an equal value (subset semantics).
func matchRow(actual value.Object, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares an actual value with a YAML-decoded expectation.
// Numbers compare by value, so 1 matches 1.0; null matches only null.
func valuesEqual(actual value.Value, expected any) bool {
	want, err := value.Of(expected)
	if err != nil {
		return false
	}
	if value.IsNull(actual) || value.IsNull(want) {
		return value.IsNull(actual) && value.IsNull(want)
	}
	eq, ok := value.Equal(actual, want)
	return ok && eq
}

func goValue(v value.Value) any {
	if v == nil {
		return nil
	}
	return v.Go()
}

func formatRows(rows []value.Object) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Go()
	}
	return out
}

// compareBackends reports every step whose outcome differs between the
// first backend and any other.
func compareBackends(backends []Backend, outcomes map[string][]Outcome) []string {
	if len(backends) < 2 {
		return nil
	}
	base := backends[0].Name()
	var msgs []string
	for _, b := range backends[1:] {
		for i, want := range outcomes[base] {
			got := outcomes[b.Name()][i]
			if diff := diffOutcome(want, got); diff != "" {
				msgs = append(msgs, fmt.Sprintf("step %d: %s and %s disagree: %s", i+1, base, b.Name(), diff))
			}
		}
	}
	return msgs
}

func diffOutcome(a, b Outcome) string {
	if a.ErrorKind() != b.ErrorKind() {
		return fmt.Sprintf("error %q vs %q", a.ErrorKind(), b.ErrorKind())
	}
	if a.Count != b.Count {
		return fmt.Sprintf("count %d vs %d", a.Count, b.Count)
	}
	if !canonicalEqual(a.Key, b.Key) {
		return fmt.Sprintf("key %v vs %v", goValue(a.Key), goValue(b.Key))
	}
	for i := range a.Rows {
		if !canonicalEqual(a.Rows[i], b.Rows[i]) {
			return fmt.Sprintf("row %d %v vs %v", i, a.Rows[i].Go(), b.Rows[i].Go())
		}
	}
	return ""
}

func canonicalEqual(a, b value.Value) bool {
	if value.IsNull(a) || value.IsNull(b) {
		return value.IsNull(a) == value.IsNull(b)
	}
	ca, errA := value.Canonical(a)
	cb, errB := value.Canonical(b)
	return errA == nil && errB == nil && bytes.Equal(ca, cb)
}
