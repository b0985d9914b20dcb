package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dbal/internal/harness"
	"github.com/roach88/dbal/internal/query"
)

// SelectionOptions holds the flags that build a selection.
type SelectionOptions struct {
	Where      string
	Args       []string
	OrderBy    []string
	Desc       bool
	Limit      int
	Offset     int
	GroupBy    []string
	Having     string
	HavingArgs []string
	Select     map[string]string
	Distinct   bool
	Count      bool
}

// addSelectionFlags registers the selection flags on cmd.
func addSelectionFlags(cmd *cobra.Command, opts *SelectionOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.Where, "where", "w", "", "filter predicate, e.g. \"age > ? and name like ?\"")
	f.StringArrayVar(&opts.Args, "arg", nil, "placeholder argument, in order (YAML scalar or list)")
	f.StringArrayVar(&opts.OrderBy, "order-by", nil, "order by expression (repeatable)")
	f.BoolVar(&opts.Desc, "desc", false, "order descending")
	f.IntVar(&opts.Limit, "limit", -1, "maximum number of records")
	f.IntVar(&opts.Offset, "offset", 0, "number of records to skip")
	f.StringArrayVar(&opts.GroupBy, "group-by", nil, "group by expression (repeatable)")
	f.StringVar(&opts.Having, "having", "", "group predicate")
	f.StringArrayVar(&opts.HavingArgs, "having-arg", nil, "group predicate placeholder argument")
	f.StringToStringVar(&opts.Select, "select", nil, "projection as alias=expression (repeatable)")
	f.BoolVar(&opts.Distinct, "distinct", false, "drop duplicate result rows")
	f.BoolVar(&opts.Count, "count", false, "count matching records instead of returning them")
}

// QuerySpec converts the flags to the scenario form of a selection.
// Arguments are decoded as YAML, so 42 is an integer and [1, 2] a list.
func (o *SelectionOptions) QuerySpec() (harness.QuerySpec, error) {
	args, err := decodeArgs(o.Args)
	if err != nil {
		return harness.QuerySpec{}, err
	}
	havingArgs, err := decodeArgs(o.HavingArgs)
	if err != nil {
		return harness.QuerySpec{}, err
	}

	spec := harness.QuerySpec{
		Where:      o.Where,
		Args:       args,
		Group:      o.GroupBy,
		Having:     o.Having,
		HavingArgs: havingArgs,
		Select:     o.Select,
		Distinct:   o.Distinct,
		Offset:     o.Offset,
	}
	for _, by := range o.OrderBy {
		spec.Order = append(spec.Order, harness.OrderSpec{By: by, Desc: o.Desc})
	}
	if o.Limit >= 0 {
		limit := o.Limit
		spec.Limit = &limit
	}
	return spec, nil
}

// Selection builds the selection, parsing with root's shared parser.
func (o *SelectionOptions) Selection(root *RootOptions) (query.Selection, error) {
	spec, err := o.QuerySpec()
	if err != nil {
		return query.Selection{}, err
	}
	p, err := root.Parser()
	if err != nil {
		return query.Selection{}, err
	}
	sel := spec.SelectionWith(p)
	if err := sel.Err(); err != nil {
		return query.Selection{}, err
	}
	if o.Count {
		sel = sel.Limit(-1).Offset(0).OrderBy(nil)
	}
	return sel, nil
}

func decodeArgs(raw []string) ([]any, error) {
	out := make([]any, len(raw))
	for i, s := range raw {
		if err := yaml.Unmarshal([]byte(s), &out[i]); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
	}
	return out, nil
}
