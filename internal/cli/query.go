package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	SelectionOptions
	Driver string
	DSN    string
	Schema string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Run a selection against a database",
		Long: `Run a selection against a table of the configured database and print
the decoded records. The table definition is read from the CUE schema
directory; tables it does not declare are introspected (SQLite only).

Exit codes:
  0 - Query succeeded
  1 - The selection was rejected (parse, binding or field errors)
  2 - Command error (unreachable database, unknown table, etc.)

Examples:
  dbal query users --where "age >= %i" --arg 18 --order-by name
  dbal query users --driver sqlite --dsn ./app.db --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	addSelectionFlags(cmd, &opts.SelectionOptions)
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver: sqlite, mysql or postgres (default from config)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name (default from config)")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema directory (default from config)")

	return cmd
}

func runQuery(opts *QueryOptions, table string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	driver, dsn := cfg.Driver, cfg.DSN
	if opts.Driver != "" {
		driver = opts.Driver
	}
	if opts.DSN != "" {
		dsn = opts.DSN
	}

	db, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
	}
	defer db.Close()
	db.Compiler().Prefix = cfg.TablePrefix

	def, err := opts.definition(ctx, db, table)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Table %s: %v", def.Name(), def.Fields())

	sel, err := opts.Selection(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	return runSelection(ctx, formatter, db.Table(def), sel, opts.Count)
}

// definition finds table in the schema directory, falling back to
// introspection when no directory was named and the configured one does
// not declare it.
func (o *QueryOptions) definition(ctx context.Context, db *store.DB, table string) (*schema.Table, error) {
	if o.Schema != "" {
		tables, err := LoadTables(o.Schema)
		if err != nil {
			return nil, err
		}
		return findTable(tables, table)
	}

	if dir := o.Config.SchemaDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			tables, err := LoadTables(dir)
			if err != nil {
				return nil, err
			}
			def, err := findTable(tables, table)
			if err == nil {
				return def, nil
			}
		}
	}

	def, err := db.Introspect(ctx, table)
	if err != nil {
		if expr.IsUnsupported(err) {
			return nil, err
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return def, nil
}
