package expr

import (
	"errors"
	"fmt"
)

// LexError is returned when the input contains text no token matches.
type LexError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Msg)
}

// ParseError is returned when the token sequence does not match the
// grammar.
type ParseError struct {
	Input    string
	Offset   int
	Expected string
	Actual   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: expected %s, got %s", e.Offset, e.Expected, e.Actual)
}

// BindingError is returned when placeholders and arguments do not line up,
// or an argument does not fit its placeholder's type.
type BindingError struct {
	Index       int // zero-based argument index
	Placeholder string
	Reason      string
	Err         error
}

func (e *BindingError) Error() string {
	msg := fmt.Sprintf("binding argument %d", e.Index)
	if e.Placeholder != "" {
		msg += fmt.Sprintf(" to %s", e.Placeholder)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BindingError) Unwrap() error { return e.Err }

// UnsupportedOperationError is returned when an operation cannot be carried
// out by the component asked to do it, such as joins or aggregates over
// in-memory data.
type UnsupportedOperationError struct {
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Operation)
}

// IsParseError reports whether err is or wraps a LexError or ParseError.
func IsParseError(err error) bool {
	var le *LexError
	var pe *ParseError
	return errors.As(err, &le) || errors.As(err, &pe)
}

// IsBindingError reports whether err is or wraps a BindingError.
func IsBindingError(err error) bool {
	var be *BindingError
	return errors.As(err, &be)
}

// IsUnsupported reports whether err is or wraps an
// UnsupportedOperationError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}
