package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dbal/internal/config"
	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/querysql"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is loaded on first use unless already set.
	Config *config.Config

	parser expr.Parser
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dbal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dbal",
		Short: "dbal - selections over memory and SQL",
		Long: `Build selections over table definitions and run them in memory
or compile them to SQL for SQLite, MySQL and PostgreSQL.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := opts.LoadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "loading configuration", err)
			}
			setupLogging(cmd.ErrOrStderr(), cfg.Level(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default .dbal.yaml in . or $HOME)")

	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// LoadConfig returns the configuration, loading it on the first call.
func (o *RootOptions) LoadConfig() (*config.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	o.Config = cfg
	return cfg, nil
}

// Parser returns the expression parser shared by the command's
// selections, backed by a parse cache sized from the configuration.
func (o *RootOptions) Parser() (expr.Parser, error) {
	if o.parser != nil {
		return o.parser, nil
	}
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, err
	}
	cache, err := expr.NewCache(cfg.ParseCache)
	if err != nil {
		return nil, err
	}
	o.parser = cache
	return cache, nil
}

// dialect resolves a dialect flag, falling back to the configured one.
func (o *RootOptions) dialect(name string) (querysql.Dialect, error) {
	if name == "" {
		cfg, err := o.LoadConfig()
		if err != nil {
			return nil, err
		}
		name = cfg.Dialect
	}
	return querysql.DialectFor(name)
}

// compiler returns a compiler for the named (or configured) dialect that
// applies the configured table prefix.
func (o *RootOptions) compiler(dialect string) (*querysql.Compiler, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, err
	}
	d, err := o.dialect(dialect)
	if err != nil {
		return nil, err
	}
	c := querysql.NewCompiler(d)
	c.Prefix = cfg.TablePrefix
	return c, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// setupLogging installs the default slog handler. --verbose lowers the
// level to debug, which logs every SQL statement.
func setupLogging(w io.Writer, level slog.Level, verbose bool) {
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
