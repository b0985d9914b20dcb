package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dbal/internal/memory"
	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	SelectionOptions
	Schema string // optional CUE schema directory
	Table  string
}

// DataFile is the document eval reads: records plus an optional table
// definition. A file holding only a list is read as the records.
type DataFile struct {
	Table  string           `yaml:"table"`
	Schema string           `yaml:"schema"` // inline CUE
	Rows   []map[string]any `yaml:"rows"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <data.yaml>",
		Short: "Run a selection in memory against YAML records",
		Long: `Load records from a YAML file into an in-memory source and run a
selection against them. The table definition comes from --schema and
--table, from the file's inline schema, or is inferred from the records.

Examples:
  dbal eval users.yaml --where "name like ?" --arg "fo%"
  dbal eval users.yaml --group-by group --select "g=group" --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	addSelectionFlags(cmd, &opts.SelectionOptions)
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema directory")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table name (defaults to the file's table)")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	file, err := readDataFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	def, err := opts.definition(file)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Loaded %d record(s) into %s", len(file.Rows), def.Name())

	src := memory.New(def)
	if err := src.Load(file.Rows...); err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	sel, err := opts.Selection(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	return runSelection(cmd.Context(), formatter, src, sel, opts.Count)
}

// runSelection reads or counts sel on src and prints the outcome.
func runSelection(ctx context.Context, formatter *OutputFormatter, src query.DataSource, sel query.Selection, count bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if count {
		n, err := query.Count(ctx, src, sel)
		if err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		if formatter.JSON() {
			return formatter.Success(map[string]int{"count": n})
		}
		fmt.Fprintln(formatter.Writer, n)
		return nil
	}

	recs, err := query.All(ctx, src, sel)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	rows := make([]value.Object, len(recs))
	for i, r := range recs {
		rows[i] = value.Object(r.Data())
	}
	return formatter.Rows(rows)
}

func readDataFile(path string) (*DataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	var rows []map[string]any
	if err := yaml.Unmarshal(data, &rows); err == nil {
		return &DataFile{Rows: rows}, nil
	}
	var file DataFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return &file, nil
}

// definition resolves the table definition for file.
func (o *EvalOptions) definition(file *DataFile) (*schema.Table, error) {
	name := o.Table
	if name == "" {
		name = file.Table
	}
	switch {
	case o.Schema != "":
		tables, err := LoadTables(o.Schema)
		if err != nil {
			return nil, err
		}
		return findTable(tables, name)
	case file.Schema != "":
		tables, err := schema.LoadString(file.Schema)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		if name == "" && len(tables) == 1 {
			return tables[0], nil
		}
		return findTable(tables, name)
	}
	if name == "" {
		name = "data"
	}
	return inferDefinition(name, file.Rows)
}

// inferDefinition declares every field seen in rows as nullable, typed by
// its non-null values. Integers widen to float when both appear; fields
// that are always null are strings.
func inferDefinition(name string, rows []map[string]any) (*schema.Table, error) {
	kinds := make(map[string]schema.Kind)
	for _, row := range rows {
		for field, raw := range row {
			v, err := value.Of(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			if value.IsNull(v) {
				if _, ok := kinds[field]; !ok {
					kinds[field] = 0
				}
				continue
			}
			if kinds[field], err = widen(field, kinds[field], schema.InferType(v).Kind); err != nil {
				return nil, err
			}
		}
	}

	t := schema.NewTable(name)
	for _, field := range slices.Sorted(maps.Keys(kinds)) {
		k := kinds[field]
		if k == 0 {
			k = schema.String
		}
		t.AddField(field, schema.TypeFor(k).AsNullable())
	}
	return t, t.Validate()
}

func widen(field string, seen, next schema.Kind) (schema.Kind, error) {
	switch {
	case seen == 0, seen == next:
		return next, nil
	case seen == schema.Integer && next == schema.Float, seen == schema.Float && next == schema.Integer:
		return schema.Float, nil
	}
	return 0, fmt.Errorf("field %s mixes %s and %s values; declare a schema", field, seen, next)
}
