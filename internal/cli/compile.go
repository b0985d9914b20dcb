package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	SelectionOptions
	Dialect string
	Schema  string // optional CUE schema directory to validate against
}

// CompileResult is the output of the compile command.
type CompileResult struct {
	Table   string `json:"table"`
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <table>",
		Short: "Compile a selection to SQL",
		Long: `Build a selection from flags and print the SQL statement it compiles
to. With --schema the selection's fields are checked against the table's
definition first.

Examples:
  dbal compile users --where "group = ?" --arg admin --order-by name
  dbal compile users --group-by group --select "g=group" --dialect postgres
  dbal compile users --where "active = %b" --arg true --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	addSelectionFlags(cmd, &opts.SelectionOptions)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (default from config)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema directory to validate against")

	return cmd
}

func runCompile(opts *CompileOptions, table string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	compiler, err := opts.compiler(opts.Dialect)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	sel, err := opts.Selection(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	if opts.Schema != "" {
		tables, err := LoadTables(opts.Schema)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		def, err := findTable(tables, table)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		if err := sel.Validate(def); err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		formatter.VerboseLog("Validated selection against %s", def.Name())
	}

	var stmt string
	if opts.Count {
		stmt, err = compiler.Count(table, sel)
	} else {
		stmt, err = compiler.Select(table, sel)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	if formatter.JSON() {
		return formatter.Success(CompileResult{Table: table, Dialect: compiler.Dialect.Name(), SQL: stmt})
	}
	fmt.Fprintln(formatter.Writer, stmt)
	return nil
}
