package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dbal/internal/querysql"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Dialects lists the dialects a scenario snapshot is compiled for.
var Dialects = []string{"sqlite", "mysql", "postgres"}

// CompileSnapshot renders the SQL every step compiles to in each dialect.
// Steps that fail to compile record their error kind instead.
func CompileSnapshot(scenario *Scenario) (string, error) {
	def, err := scenario.Definition()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, step := range scenario.Steps {
		fmt.Fprintf(&b, "-- step %d: %s\n", i+1, step.Op)
		for _, name := range Dialects {
			d, err := querysql.DialectFor(name)
			if err != nil {
				return "", err
			}
			stmt, err := compileStep(querysql.NewCompiler(d), def, step)
			if err != nil {
				stmt = "error: " + ErrorKind(err)
			}
			fmt.Fprintf(&b, "%s: %s\n", name, stmt)
		}
	}
	return b.String(), nil
}

func compileStep(c *querysql.Compiler, def *schema.Table, step Step) (string, error) {
	sel := step.Query.Selection()
	switch step.Op {
	case OpRead:
		return c.Select(def.Name(), sel)
	case OpCount:
		return c.Count(def.Name(), sel.Limit(-1).Offset(0).OrderBy(nil))
	case OpInsert:
		data, err := coerce(def, step.Data)
		if err != nil {
			return "", err
		}
		returning := ""
		if serial, _, ok := schema.SerialField(def); ok {
			if _, given := data[serial]; !given {
				returning = serial
			}
		}
		return c.Insert(def.Name(), def, data, returning)
	case OpUpdate:
		data, err := coerce(def, step.Data)
		if err != nil {
			return "", err
		}
		return c.Update(def.Name(), def, sel, data)
	case OpDelete:
		return c.Delete(def.Name(), sel)
	}
	return "", fmt.Errorf("unknown op %q", step.Op)
}

func coerce(def *schema.Table, data map[string]any) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(data))
	for _, f := range slices.Sorted(maps.Keys(data)) {
		typ, ok := def.TypeOf(f)
		if !ok {
			return nil, &schema.UnknownFieldError{Field: f, Source: def.Name()}
		}
		v, err := value.Of(data[f])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
		if out[f], err = typ.Convert(v); err != nil {
			return nil, fmt.Errorf("field %s: %w", f, err)
		}
	}
	return out, nil
}

// RunWithGolden runs a scenario on the default backends, fails t for every
// result error, and compares the compiled SQL against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	snapshot, err := CompileSnapshot(scenario)
	if err != nil {
		t.Fatalf("compile %s: %v", scenario.Name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(snapshot))
	return result
}
