package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	DDL     bool
	Dialect string
}

// TableSummary describes one validated table.
type TableSummary struct {
	Name       string            `json:"name"`
	Fields     map[string]string `json:"fields"`
	PrimaryKey []string          `json:"primary_key,omitempty"`
	DDL        string            `json:"ddl,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Tables []TableSummary `json:"tables"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate CUE table definitions",
		Long: `Load the CUE table definitions in a directory and check them: field
types must be known and keys must reference declared fields. With --ddl
the CREATE TABLE statement of every table is printed as well.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DDL, "ddl", false, "print CREATE TABLE statements")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect for --ddl (default from config)")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	tables, err := LoadTables(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			_ = formatter.Error(loadErr.Code, loadErr.Message, map[string]any{
				"file": loadErr.Pos.Filename(),
				"line": loadErr.Pos.Line(),
			})
			return WrapExitError(ExitFailure, "validation failed", err)
		}
		return formatter.Fail(ExitCommandError, err)
	}

	result := ValidationResult{Valid: true}
	for _, t := range tables {
		formatter.VerboseLog("Validating table: %s", t.Name())
		if err := t.Validate(); err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		summary := TableSummary{
			Name:       t.Name(),
			Fields:     make(map[string]string),
			PrimaryKey: t.PrimaryKey(),
		}
		for _, f := range t.Fields() {
			typ, _ := t.TypeOf(f)
			summary.Fields[f] = typ.String()
		}
		if opts.DDL {
			compiler, err := opts.compiler(opts.Dialect)
			if err != nil {
				return formatter.Fail(ExitCommandError, err)
			}
			if summary.DDL, err = compiler.CreateTable(t); err != nil {
				return formatter.Fail(ExitFailure, err)
			}
		}
		result.Tables = append(result.Tables, summary)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	formatter.Pass("%d table(s) valid", len(tables))
	for _, s := range result.Tables {
		if s.DDL != "" {
			fmt.Fprintf(formatter.Writer, "%s;\n", s.DDL)
		}
	}
	return nil
}
