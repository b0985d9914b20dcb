package schema

import (
	"fmt"
	"slices"
)

// Definition describes the fields of a source. Records and selections
// consult it to validate field names and coerce values.
type Definition interface {
	Name() string
	Fields() []string
	TypeOf(field string) (DataType, bool)
	PrimaryKey() []string
}

// Key is a named index over one or more fields.
type Key struct {
	Name   string
	Fields []string
	Unique bool
}

// Table is the concrete Definition built in code, from CUE or by
// introspecting a database.
type Table struct {
	name    string
	fields  []string
	types   map[string]DataType
	primary []string
	keys    []Key
	virtual map[string]bool
}

// NewTable creates an empty definition.
func NewTable(name string) *Table {
	return &Table{
		name:    name,
		types:   make(map[string]DataType),
		virtual: make(map[string]bool),
	}
}

// AddField declares a field. Redeclaring a field replaces its type and
// keeps its position.
func (t *Table) AddField(name string, typ DataType) *Table {
	if _, ok := t.types[name]; !ok {
		t.fields = append(t.fields, name)
	}
	t.types[name] = typ
	return t
}

// AddVirtual declares a field that records carry but sources never
// persist.
func (t *Table) AddVirtual(name string) *Table {
	t.virtual[name] = true
	return t
}

// SetPrimaryKey sets the primary key fields.
func (t *Table) SetPrimaryKey(fields ...string) *Table {
	t.primary = slices.Clone(fields)
	return t
}

// AddKey declares a secondary index.
func (t *Table) AddKey(name string, unique bool, fields ...string) *Table {
	t.keys = append(t.keys, Key{Name: name, Fields: slices.Clone(fields), Unique: unique})
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) Fields() []string { return slices.Clone(t.fields) }

func (t *Table) TypeOf(field string) (DataType, bool) {
	typ, ok := t.types[field]
	return typ, ok
}

func (t *Table) PrimaryKey() []string { return slices.Clone(t.primary) }

// Keys returns the secondary keys in declaration order.
func (t *Table) Keys() []Key { return slices.Clone(t.keys) }

// Key looks up a secondary key by name.
func (t *Table) Key(name string) (Key, bool) {
	for _, k := range t.keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// IsUnique reports whether the named key is unique. The primary key is
// reported under the name "PRIMARY".
func (t *Table) IsUnique(name string) bool {
	if name == "PRIMARY" {
		return len(t.primary) > 0
	}
	k, ok := t.Key(name)
	return ok && k.Unique
}

func (t *Table) IsVirtual(field string) bool { return t.virtual[field] }

// Validate checks that every key references declared fields.
func (t *Table) Validate() error {
	for _, f := range t.primary {
		if _, ok := t.types[f]; !ok {
			return fmt.Errorf("primary key of %s: %w", t.name, &UnknownFieldError{Field: f, Source: t.name})
		}
	}
	for _, k := range t.keys {
		for _, f := range k.Fields {
			if _, ok := t.types[f]; !ok {
				return fmt.Errorf("key %s of %s: %w", k.Name, t.name, &UnknownFieldError{Field: f, Source: t.name})
			}
		}
	}
	return nil
}

// HasField reports whether def declares field (virtual fields included).
func HasField(def Definition, field string) bool {
	if _, ok := def.TypeOf(field); ok {
		return true
	}
	v, ok := def.(interface{ IsVirtual(string) bool })
	return ok && v.IsVirtual(field)
}

// CheckField returns an UnknownFieldError when def does not declare field.
func CheckField(def Definition, field string) error {
	if HasField(def, field) {
		return nil
	}
	return &UnknownFieldError{Field: field, Source: def.Name()}
}

// SerialField returns the single serial primary key field of def, if any.
func SerialField(def Definition) (string, DataType, bool) {
	pk := def.PrimaryKey()
	if len(pk) != 1 {
		return "", DataType{}, false
	}
	typ, ok := def.TypeOf(pk[0])
	if !ok || !typ.Serial {
		return "", DataType{}, false
	}
	return pk[0], typ, true
}
