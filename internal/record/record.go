// Package record holds the mutable field container that sources read into
// and write from.
package record

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Record is a set of named values. A record created from a definition only
// accepts the fields the definition declares; an ad-hoc record (projection
// results) accepts the fields it was created with.
type Record struct {
	def     schema.Definition
	fields  []string
	values  map[string]value.Value
	virtual map[string]value.Value
	changed map[string]bool
	isNew   bool
	saved   bool
}

// New creates an empty record for def. All declared fields start as their
// default value, or null.
func New(def schema.Definition) *Record {
	r := &Record{
		def:     def,
		fields:  def.Fields(),
		values:  make(map[string]value.Value),
		virtual: make(map[string]value.Value),
		changed: make(map[string]bool),
		isNew:   true,
	}
	for _, f := range r.fields {
		typ, _ := def.TypeOf(f)
		if typ.Default != nil {
			r.values[f] = typ.Default
		} else {
			r.values[f] = value.Null{}
		}
	}
	return r
}

// Decode builds a saved record from raw data as read from a source. Every
// value is coerced to its declared type; fields missing from data are null.
// Keys that are not declared fields are rejected.
func Decode(def schema.Definition, data map[string]any) (*Record, error) {
	r := New(def)
	for k, raw := range data {
		v, err := value.Of(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		if err := r.set(k, v); err != nil {
			return nil, err
		}
	}
	r.isNew = false
	r.saved = true
	clear(r.changed)
	return r, nil
}

// FromValues builds an ad-hoc record with the given field order.
func FromValues(fields []string, vals map[string]value.Value) *Record {
	r := &Record{
		fields:  slices.Clone(fields),
		values:  make(map[string]value.Value, len(fields)),
		virtual: make(map[string]value.Value),
		changed: make(map[string]bool),
		saved:   true,
	}
	for _, f := range fields {
		if v, ok := vals[f]; ok && v != nil {
			r.values[f] = v
		} else {
			r.values[f] = value.Null{}
		}
	}
	return r
}

// FromMap builds an ad-hoc record from plain Go values. Fields are ordered
// by name.
func FromMap(data map[string]any) (*Record, error) {
	vals := make(map[string]value.Value, len(data))
	for k, raw := range data {
		v, err := value.Of(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		vals[k] = v
	}
	return FromValues(slices.Sorted(maps.Keys(data)), vals), nil
}

// Definition returns the definition the record was built from, or nil for
// ad-hoc records.
func (r *Record) Definition() schema.Definition { return r.def }

// Fields returns the field names in declaration order.
func (r *Record) Fields() []string { return slices.Clone(r.fields) }

// Get returns the value of a field, including virtual fields.
func (r *Record) Get(field string) (value.Value, error) {
	if v, ok := r.values[field]; ok {
		return v, nil
	}
	if v, ok := r.virtual[field]; ok {
		return v, nil
	}
	if r.isVirtual(field) {
		return value.Null{}, nil
	}
	return nil, r.unknown(field)
}

// Set assigns a field, coercing the value to the declared type.
func (r *Record) Set(field string, raw any) error {
	v, err := value.Of(raw)
	if err != nil {
		return fmt.Errorf("field %s: %w", field, err)
	}
	if err := r.set(field, v); err != nil {
		return err
	}
	r.saved = false
	return nil
}

func (r *Record) set(field string, v value.Value) error {
	if r.isVirtual(field) {
		r.virtual[field] = v
		return nil
	}
	if _, ok := r.values[field]; !ok {
		return r.unknown(field)
	}
	if r.def != nil {
		typ, _ := r.def.TypeOf(field)
		converted, err := typ.Convert(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		v = converted
	}
	r.values[field] = v
	r.changed[field] = true
	return nil
}

func (r *Record) isVirtual(field string) bool {
	if r.def == nil {
		return false
	}
	v, ok := r.def.(interface{ IsVirtual(string) bool })
	return ok && v.IsVirtual(field)
}

func (r *Record) unknown(field string) error {
	ufe := &schema.UnknownFieldError{Field: field}
	if r.def != nil {
		ufe.Source = r.def.Name()
	}
	return ufe
}

// Data returns the persisted fields as a map of values.
func (r *Record) Data() map[string]value.Value {
	return maps.Clone(r.values)
}

// Map returns the persisted fields as plain Go values.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v.Go()
	}
	return out
}

// Changed returns the fields assigned since the record was last saved.
func (r *Record) Changed() map[string]value.Value {
	out := make(map[string]value.Value, len(r.changed))
	for f := range r.changed {
		out[f] = r.values[f]
	}
	return out
}

// IsNew reports whether the record has never been stored.
func (r *Record) IsNew() bool { return r.isNew }

// IsSaved reports whether the record matches its stored state.
func (r *Record) IsSaved() bool { return r.saved }

// MarkSaved records that the record was written to its source.
func (r *Record) MarkSaved() {
	r.isNew = false
	r.saved = true
	clear(r.changed)
}

// Clone returns an independent copy.
func (r *Record) Clone() *Record {
	c := *r
	c.fields = slices.Clone(r.fields)
	c.values = maps.Clone(r.values)
	c.virtual = maps.Clone(r.virtual)
	c.changed = maps.Clone(r.changed)
	return &c
}

// Project builds an ad-hoc record holding a subset of fields.
func (r *Record) Project(fields ...string) (*Record, error) {
	vals := make(map[string]value.Value, len(fields))
	for _, f := range fields {
		v, err := r.Get(f)
		if err != nil {
			return nil, err
		}
		vals[f] = v
	}
	return FromValues(fields, vals), nil
}
