package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dbal/internal/value"
)

// CompileError represents a schema compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileTable parses a CUE value into a Table. The value is the table
// struct itself:
//
//	table: users: {
//		primary_key: ["id"]
//		fields: {
//			id:    {type: "integer", serial: true}
//			name:  "string"
//			group: {type: "enum", values: ["admin", "user"]}
//			bio:   {type: "text", nullable: true}
//			age:   int
//		}
//		keys: name_idx: {fields: ["name"], unique: true}
//	}
func CompileTable(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var name string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}
	table := NewTable(name)

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: "fields", Message: "fields are required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		typ, err := parseFieldType(iter.Value())
		if err != nil {
			return nil, err
		}
		table.AddField(iter.Label(), typ)
	}
	if len(table.fields) == 0 {
		return nil, &CompileError{Field: "fields", Message: "at least one field is required", Pos: fieldsVal.Pos()}
	}

	pkVal := v.LookupPath(cue.ParsePath("primary_key"))
	if pkVal.Exists() {
		pk, err := stringList(pkVal)
		if err != nil {
			return nil, err
		}
		table.SetPrimaryKey(pk...)
	}

	keysVal := v.LookupPath(cue.ParsePath("keys"))
	if keysVal.Exists() {
		keyIter, err := keysVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for keyIter.Next() {
			kv := keyIter.Value()
			fields, err := stringList(kv.LookupPath(cue.ParsePath("fields")))
			if err != nil {
				return nil, err
			}
			unique := false
			if u := kv.LookupPath(cue.ParsePath("unique")); u.Exists() {
				if unique, err = u.Bool(); err != nil {
					return nil, formatCUEError(err)
				}
			}
			table.AddKey(keyIter.Label(), unique, fields...)
		}
	}

	virtualVal := v.LookupPath(cue.ParsePath("virtual"))
	if virtualVal.Exists() {
		names, err := stringList(virtualVal)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			table.AddVirtual(n)
		}
	}

	if err := table.Validate(); err != nil {
		return nil, &CompileError{Field: "keys", Message: err.Error(), Pos: v.Pos()}
	}
	return table, nil
}

// parseFieldType accepts a type name string, a bare CUE kind (int, string,
// ...) or a struct with type and modifiers.
func parseFieldType(v cue.Value) (DataType, error) {
	if s, err := v.String(); err == nil {
		k, err := ParseKind(s)
		if err != nil {
			return DataType{}, &CompileError{Field: "type", Message: err.Error(), Pos: v.Pos()}
		}
		return TypeFor(k), nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return extractType(v)
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return DataType{}, &CompileError{Field: "type", Message: "field type is required", Pos: v.Pos()}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return DataType{}, formatCUEError(err)
	}
	k, err := ParseKind(typeName)
	if err != nil {
		return DataType{}, &CompileError{Field: "type", Message: err.Error(), Pos: typeVal.Pos()}
	}
	typ := TypeFor(k)

	if b, ok, err := optionalBool(v, "nullable"); err != nil {
		return DataType{}, err
	} else if ok {
		typ.Nullable = b
	}
	if b, ok, err := optionalBool(v, "serial"); err != nil {
		return DataType{}, err
	} else if ok {
		typ.Serial = b
	}
	if l := v.LookupPath(cue.ParsePath("length")); l.Exists() {
		n, err := l.Int64()
		if err != nil {
			return DataType{}, formatCUEError(err)
		}
		typ.Length = int(n)
	}
	if vals := v.LookupPath(cue.ParsePath("values")); vals.Exists() {
		if typ.Values, err = stringList(vals); err != nil {
			return DataType{}, err
		}
	}
	if d := v.LookupPath(cue.ParsePath("default")); d.Exists() {
		var raw any
		if err := d.Decode(&raw); err != nil {
			return DataType{}, formatCUEError(err)
		}
		def, err := value.Of(raw)
		if err != nil {
			return DataType{}, &CompileError{Field: "default", Message: err.Error(), Pos: d.Pos()}
		}
		if typ.Default, err = typ.Convert(def); err != nil {
			return DataType{}, &CompileError{Field: "default", Message: err.Error(), Pos: d.Pos()}
		}
	}
	return typ, nil
}

// extractType maps an unconstrained CUE kind to a data type.
func extractType(v cue.Value) (DataType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return TypeFor(String), nil
	case cue.IntKind:
		return TypeFor(Integer), nil
	case cue.FloatKind, cue.NumberKind:
		return TypeFor(Float), nil
	case cue.BoolKind:
		return TypeFor(Boolean), nil
	case cue.BytesKind:
		return TypeFor(Binary), nil
	case cue.ListKind, cue.StructKind:
		return TypeFor(Object), nil
	default:
		return DataType{}, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func optionalBool(v cue.Value, path string) (bool, bool, error) {
	bv := v.LookupPath(cue.ParsePath(path))
	if !bv.Exists() {
		return false, false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}

func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "list", Message: "list is required", Pos: v.Pos()}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// LoadDir loads every table declared under the top-level "table" struct of
// the .cue files in dir. Files may omit the package clause; files that
// declare one must all declare the same package.
func LoadDir(dir string) ([]*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = filepath.Join(abs, filepath.Base(m))
	}

	// Named files load as one instance whether or not they declare a
	// package; a directory argument would skip package-less files.
	ctx := cuecontext.New()
	instances := load.Instances(matches, &load.Config{Dir: abs})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	root := ctx.BuildInstance(instances[0])
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileTables(root)
}

// LoadString compiles tables from CUE source text.
func LoadString(src string) ([]*Table, error) {
	root := cuecontext.New().CompileString(src)
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileTables(root)
}

func compileTables(root cue.Value) ([]*Table, error) {
	tablesVal := root.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &CompileError{Field: "table", Message: "no tables declared", Pos: root.Pos()}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var tables []*Table
	for iter.Next() {
		t, err := CompileTable(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("table.%s: %w", iter.Label(), err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
