package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/record"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Source is a query.DataSource backed by an ordered slice of records.
// Rows are keyed by an auto-incrementing integer starting at zero. Source
// is safe for concurrent use.
type Source struct {
	def schema.Definition

	mu      sync.RWMutex
	rows    []Row
	nextKey int64
}

var (
	_ query.DataSource = (*Source)(nil)
	_ query.Counter    = (*Source)(nil)
)

// New returns an empty source for def.
func New(def schema.Definition) *Source {
	return &Source{def: def}
}

// Load decodes and appends records, as if each had been read from storage.
func (s *Source) Load(data ...map[string]any) error {
	recs := make([]*record.Record, len(data))
	for i, d := range data {
		r, err := record.Decode(s.def, d)
		if err != nil {
			return fmt.Errorf("load %s row %d: %w", s.def.Name(), i, err)
		}
		recs[i] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.append(r)
	}
	return nil
}

func (s *Source) append(r *record.Record) value.Value {
	key := value.Int(s.nextKey)
	s.nextKey++
	s.rows = append(s.rows, Row{Key: key, Record: r})
	return key
}

// Len returns the number of stored records.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Rows returns a snapshot of the stored rows. Records are copies.
func (s *Source) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = Row{Key: r.Key, Record: r.Record.Clone()}
	}
	return out
}

func (s *Source) Definition() schema.Definition { return s.def }

func (s *Source) Read(_ context.Context, sel query.Selection) ([]*record.Record, error) {
	s.mu.RLock()
	rows, err := Execute(sel, s.rows)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	recs := make([]*record.Record, len(rows))
	for i, r := range rows {
		recs[i] = r.Record.Clone()
	}
	return recs, nil
}

func (s *Source) Count(_ context.Context, sel query.Selection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := Execute(sel, s.rows)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Insert stores a new record and returns its primary key, or the row key
// when the definition has no single-field primary key. A null serial
// primary key is generated: the next integer for integer keys, a random
// UUID for UUID keys.
func (s *Source) Insert(_ context.Context, data map[string]any) (value.Value, error) {
	r := record.New(s.def)
	for _, f := range slices.Sorted(maps.Keys(data)) {
		if err := r.Set(f, data[f]); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	serial, typ, hasSerial := schema.SerialField(s.def)
	if hasSerial {
		current, _ := r.Get(serial)
		if value.IsNull(current) {
			generated, err := s.generate(serial, typ)
			if err != nil {
				return nil, err
			}
			if err := r.Set(serial, generated.Go()); err != nil {
				return nil, err
			}
		}
	}
	r.MarkSaved()
	key := s.append(r)

	if pk := s.def.PrimaryKey(); len(pk) == 1 {
		return r.Get(pk[0])
	}
	return key, nil
}

func (s *Source) generate(field string, typ schema.DataType) (value.Value, error) {
	if v, ok := typ.Generate(); ok {
		return v, nil
	}
	if typ.Kind != schema.Integer {
		return nil, &query.UnsupportedOperationError{Operation: "serial " + typ.String() + " field " + field}
	}
	var next int64 = 1
	for _, row := range s.rows {
		v, err := row.Record.Get(field)
		if err != nil {
			return nil, err
		}
		if n, ok := v.(value.Int); ok && int64(n) >= next {
			next = int64(n) + 1
		}
	}
	return value.Int(next), nil
}

// Update assigns data to every targeted record. Either all targets are
// updated or none are.
func (s *Source) Update(_ context.Context, sel query.Selection, data map[string]any) (int, error) {
	fields := slices.Sorted(maps.Keys(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := Targets(sel, s.rows)
	if err != nil {
		return 0, err
	}
	updated := make(map[value.Value]*record.Record, len(targets))
	for _, t := range targets {
		r := t.Record.Clone()
		for _, f := range fields {
			if err := r.Set(f, data[f]); err != nil {
				return 0, err
			}
		}
		r.MarkSaved()
		updated[t.Key] = r
	}
	for i, row := range s.rows {
		if r, ok := updated[row.Key]; ok {
			s.rows[i].Record = r
		}
	}
	return len(targets), nil
}

// Delete removes every targeted record.
func (s *Source) Delete(_ context.Context, sel query.Selection) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, err := Targets(sel, s.rows)
	if err != nil {
		return 0, err
	}
	doomed := make(map[value.Value]bool, len(targets))
	for _, t := range targets {
		doomed[t.Key] = true
	}
	s.rows = slices.DeleteFunc(s.rows, func(r Row) bool { return doomed[r.Key] })
	return len(targets), nil
}

// JoinWith returns nil: memory sources do not join.
func (s *Source) JoinWith(query.DataSource) query.DataSource { return nil }
