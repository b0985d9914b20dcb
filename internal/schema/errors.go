package schema

import (
	"errors"
	"fmt"

	"github.com/roach88/dbal/internal/value"
)

// UnknownFieldError is returned when a record or selection references a
// field its definition does not declare.
type UnknownFieldError struct {
	Field  string
	Source string // table or model name, when known
}

func (e *UnknownFieldError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("unknown field %q in %s", e.Field, e.Source)
	}
	return fmt.Sprintf("unknown field %q", e.Field)
}

// TypeCoercionError is returned when a value cannot be converted to a
// declared data type.
type TypeCoercionError struct {
	Type   DataType
	Value  value.Value
	Reason string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %s", value.Text(e.Value), e.Type.Kind, e.Reason)
}

// IsUnknownField reports whether err is or wraps an UnknownFieldError.
func IsUnknownField(err error) bool {
	var ufe *UnknownFieldError
	return errors.As(err, &ufe)
}

// IsTypeCoercion reports whether err is or wraps a TypeCoercionError.
func IsTypeCoercion(err error) bool {
	var tce *TypeCoercionError
	return errors.As(err, &tce)
}
