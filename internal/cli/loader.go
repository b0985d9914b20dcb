package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/dbal/internal/harness"
	"github.com/roach88/dbal/internal/schema"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path or table not found
	ErrCodeLoadFailed   = "E003" // Schema load failed
	ErrCodeDatabase     = "E004" // Database connection or statement failure
	ErrCodeWriteFailed  = "E005" // File write error
	ErrCodeTestFailed   = "E006" // One or more scenarios failed
	ErrCodeLex          = "E101" // Unrecognized input in an expression
	ErrCodeParse        = "E102" // Expression syntax error
	ErrCodeBinding      = "E103" // Placeholder argument mismatch
	ErrCodeUnknownField = "E104" // Field not in the table definition
	ErrCodeTypeCoercion = "E105" // Value not convertible to its field type
	ErrCodeUnsupported  = "E106" // Operation not supported by the source
)

var kindCodes = map[string]string{
	harness.ErrLex:          ErrCodeLex,
	harness.ErrParse:        ErrCodeParse,
	harness.ErrBinding:      ErrCodeBinding,
	harness.ErrUnknownField: ErrCodeUnknownField,
	harness.ErrTypeCoercion: ErrCodeTypeCoercion,
	harness.ErrUnsupported:  ErrCodeUnsupported,
}

// ErrorCode returns the output code for err.
func ErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	if code, ok := kindCodes[harness.ErrorKind(err)]; ok {
		return code
	}
	return ErrCodeGeneric
}

// LoadError represents an error that occurred while loading table
// definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadTables loads the table definitions declared by the CUE package in
// dir.
func LoadTables(dir string) ([]*schema.Table, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	tables, err := schema.LoadDir(dir)
	if err != nil {
		loadErr := &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		var cErr *schema.CompileError
		if errors.As(err, &cErr) {
			loadErr.Message = fmt.Sprintf("%s: %s", cErr.Field, cErr.Message)
			loadErr.Pos = cErr.Pos
		}
		return nil, loadErr
	}
	return tables, nil
}

// findTable returns the table named name.
func findTable(tables []*schema.Table, name string) (*schema.Table, error) {
	for _, t := range tables {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("table %q is not defined", name)}
}
