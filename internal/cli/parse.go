package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/querysql"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Dialect string
	Args    []string
}

// ParseResult is the output of the parse command.
type ParseResult struct {
	Expression string `json:"expression"`
	SQL        string `json:"sql,omitempty"`
	Dialect    string `json:"dialect"`
	AST        any    `json:"ast"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Parse an expression and show its tree and SQL",
		Long: `Parse a predicate expression, bind any --arg values to its
placeholders and print the syntax tree together with its SQL rendering.

Examples:
  dbal parse "name = ? and age >= %i" --arg foo --arg 18
  dbal parse "id in %i()" --arg "[1, 2, 3]" --dialect mysql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (default from config)")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "placeholder argument, in order (YAML scalar or list)")

	return cmd
}

func runParse(opts *ParseOptions, text string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dialect, err := opts.dialect(opts.Dialect)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	args, err := decodeArgs(opts.Args)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	p, err := opts.Parser()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	// Without --arg the tree keeps its placeholders.
	e, err := p.Parse(text)
	if err == nil && len(args) > 0 {
		e, err = expr.Bind(e, args...)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	result := ParseResult{
		Expression: e.String(),
		Dialect:    dialect.Name(),
		AST:        describe(e),
	}
	// Unbound placeholders have no SQL form.
	if expr.Placeholders(e) == 0 {
		if result.SQL, err = querysql.NewCompiler(dialect).Expression(e); err != nil {
			return formatter.Fail(ExitFailure, err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "expression: %s\n", result.Expression)
	if result.SQL != "" {
		fmt.Fprintf(w, "%s: %s\n", result.Dialect, result.SQL)
	}
	tree, err := json.MarshalIndent(result.AST, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(tree))
	return nil
}

// describe converts an expression tree to nested maps for JSON output.
func describe(e expr.Expression) map[string]any {
	switch n := e.(type) {
	case *expr.Literal:
		return map[string]any{"node": "literal", "type": n.Type.String(), "value": n.Value}
	case *expr.Column:
		m := map[string]any{"node": "column", "name": n.Name}
		if n.Table != "" {
			m["table"] = n.Table
		}
		if n.Model {
			m["model"] = true
		}
		return m
	case *expr.Placeholder:
		return map[string]any{"node": "placeholder", "tag": n.Tag, "list": n.List}
	case *expr.Infix:
		return map[string]any{"node": "infix", "op": string(n.Op), "left": describe(n.Left), "right": describe(n.Right)}
	case *expr.Prefix:
		return map[string]any{"node": "prefix", "op": string(n.Op), "operand": describe(n.Operand)}
	case *expr.Func:
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			args[i] = describe(a)
		}
		return map[string]any{"node": "func", "name": n.Name, "args": args}
	case *expr.Raw:
		return map[string]any{"node": "raw", "sql": n.SQL}
	}
	return map[string]any{"node": fmt.Sprintf("%T", e)}
}
