package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/schema"
)

// Scenario defines a conformance scenario: a table, its initial rows and a
// sequence of operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is CUE source declaring one or more tables.
	Schema string `yaml:"schema"`

	// Table names the table under test.
	Table string `yaml:"table"`

	// Rows are inserted in order before the first step.
	Rows []map[string]any `yaml:"rows,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Operation names.
const (
	OpRead   = "read"
	OpCount  = "count"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

var operations = []string{OpRead, OpCount, OpInsert, OpUpdate, OpDelete}

// Step is one operation against the table.
type Step struct {
	Op     string         `yaml:"op"`
	Query  QuerySpec      `yaml:"query,omitempty"`
	Data   map[string]any `yaml:"data,omitempty"`
	Expect Expect         `yaml:"expect"`
}

// QuerySpec describes a selection in YAML.
type QuerySpec struct {
	Where      string            `yaml:"where,omitempty"`
	Args       []any             `yaml:"args,omitempty"`
	Order      []OrderSpec       `yaml:"order,omitempty"`
	Group      []string          `yaml:"group,omitempty"`
	Having     string            `yaml:"having,omitempty"`
	HavingArgs []any             `yaml:"having_args,omitempty"`
	Select     map[string]string `yaml:"select,omitempty"` // alias -> expression
	Distinct   bool              `yaml:"distinct,omitempty"`
	Limit      *int              `yaml:"limit,omitempty"`
	Offset     int               `yaml:"offset,omitempty"`
}

// OrderSpec is one ordering term.
type OrderSpec struct {
	By   string `yaml:"by"`
	Desc bool   `yaml:"desc,omitempty"`
}

// Expect is the expected outcome of a step. Unset fields are not checked.
type Expect struct {
	// Rows is matched in order; each row is a subset match.
	Rows  []map[string]any `yaml:"rows,omitempty"`
	Count *int             `yaml:"count,omitempty"`
	Key   any              `yaml:"key,omitempty"`
	// Error is the expected error kind.
	Error string `yaml:"error,omitempty"`
}

// Selection builds the query.Selection q describes. Build errors
// are deferred to the selection, as with hand-written builders.
func (q QuerySpec) Selection() query.Selection {
	return q.SelectionWith(expr.DefaultParser{})
}

// SelectionWith is Selection with expressions parsed by p.
func (q QuerySpec) SelectionWith(p expr.Parser) query.Selection {
	sel := query.NewWithParser(p)
	if q.Where != "" {
		sel = sel.Where(q.Where, q.Args...)
	}
	for _, o := range q.Order {
		if o.Desc {
			sel = sel.OrderByDescending(o.By)
		} else {
			sel = sel.OrderBy(o.By)
		}
	}
	if len(q.Group) > 0 {
		if q.Having != "" {
			sel = sel.GroupBy(q.Group, append([]any{q.Having}, q.HavingArgs...)...)
		} else {
			sel = sel.GroupBy(q.Group)
		}
	}
	if len(q.Select) > 0 {
		sel = sel.Select(q.Select)
	}
	if q.Distinct {
		sel = sel.Distinct(true)
	}
	if q.Limit != nil {
		sel = sel.Limit(*q.Limit)
	}
	if q.Offset != 0 {
		sel = sel.Offset(q.Offset)
	}
	return sel
}

// Definition compiles the scenario schema and returns the table under test.
func (s *Scenario) Definition() (*schema.Table, error) {
	tables, err := schema.LoadString(s.Schema)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	for _, t := range tables {
		if t.Name() == s.Table {
			return t, nil
		}
	}
	return nil, fmt.Errorf("schema declares no table %q", s.Table)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if !slices.Contains(operations, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Expect.Error != "" && !slices.Contains(errorKinds, step.Expect.Error) {
			return fmt.Errorf("steps[%d]: unknown error kind %q", i, step.Expect.Error)
		}
		switch step.Op {
		case OpInsert, OpUpdate:
			if step.Data == nil {
				return fmt.Errorf("steps[%d]: %s requires data", i, step.Op)
			}
		}
		if step.Op == OpInsert && step.Query.Where != "" {
			return fmt.Errorf("steps[%d]: insert takes no query", i)
		}
	}
	return nil
}
