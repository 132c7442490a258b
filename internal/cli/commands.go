package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leandroluk/orm"
	"github.com/leandroluk/orm/core"
)

// NewProtocolsCommand lists the canonical protocol names.
func NewProtocolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List supported protocols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeYAML(cmd.OutOrStdout(), orm.Protocols())
		},
	}
}

// NewPingCommand checks that a connection can be opened.
func NewPingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect and run the store's trivial query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(ctx context.Context, driver core.Driver) error {
				if err := driver.Ping(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "ok %s %s\n", driver.Protocol(), driver.ID())
				return err
			})
		},
	}
}

// NewInferCommand prints the property types of one or more tables, keyed by
// table name.
func NewInferCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "infer <table>...",
		Short: "Print the property type of every column of one or more tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(ctx context.Context, driver core.Driver) error {
				fns := make([]func(ctx context.Context) (map[string]core.PropertyType, error), len(args))
				for i, table := range args {
					fns[i] = func(ctx context.Context) (map[string]core.PropertyType, error) {
						return driver.Infer(ctx, table)
					}
				}
				results, err := core.Collect(ctx, fns...)
				if err != nil {
					return err
				}
				tables := make(map[string]map[string]core.PropertyType, len(results))
				for i, properties := range results {
					tables[args[i]] = properties
				}
				return writeYAML(cmd.OutOrStdout(), tables)
			})
		},
	}
}

type queryFlags struct {
	fields []string
	where  []string
	order  []string
	limit  int
	offset int
}

func (f *queryFlags) bind(cmd *cobra.Command, paginated bool) {
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "condition such as name=bob, age>=18 or name~b% (repeatable)")
	if !paginated {
		return
	}
	cmd.Flags().StringSliceVarP(&f.fields, "fields", "f", nil, "fields to return (default all)")
	cmd.Flags().StringArrayVarP(&f.order, "order", "o", nil, "order by field, field:Z for descending (repeatable)")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", -1, "maximum number of rows")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "rows to skip")
}

func (f *queryFlags) options() *core.FindOptions {
	options := core.NewFindOptions().WithOffset(f.offset)
	if f.limit >= 0 {
		options = options.WithLimit(f.limit)
	}
	for _, item := range f.order {
		field, direction, _ := strings.Cut(item, ":")
		options = options.OrderBy(field, direction)
	}
	return options
}

// NewFindCommand prints the rows of a table matching the given conditions.
func NewFindCommand(opts *RootOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "find <table>",
		Short: "Print the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conditions, err := ParseConditions(flags.where)
			if err != nil {
				return err
			}
			return withDriver(cmd, opts, func(ctx context.Context, driver core.Driver) error {
				rows, err := driver.Find(ctx, flags.fields, args[0], conditions, flags.options())
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), rows)
			})
		},
	}
	flags.bind(cmd, true)
	return cmd
}

// NewCountCommand prints the number of rows matching the given conditions.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Count the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conditions, err := ParseConditions(flags.where)
			if err != nil {
				return err
			}
			return withDriver(cmd, opts, func(ctx context.Context, driver core.Driver) error {
				count, err := driver.Count(ctx, args[0], conditions, nil)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), count)
				return err
			})
		},
	}
	flags.bind(cmd, false)
	return cmd
}

// NewClearCommand removes every row of the given tables, one at a time.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <table>...",
		Short: "Remove every row of one or more tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDriver(cmd, opts, func(ctx context.Context, driver core.Driver) error {
				tasks := make([]core.Task, len(args))
				for i, table := range args {
					tasks[i] = core.Task{Name: table, Run: func(ctx context.Context) error {
						return driver.Clear(ctx, table)
					}}
				}
				return core.Serial(ctx, tasks...)
			})
		},
	}
}

// NewExecCommand runs a raw query and prints the rows it returns.
func NewExecCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <query> [arg]...",
		Short: "Run a raw query with bound arguments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				bound = append(bound, ParseValue(arg))
			}
			return withDriver(cmd, opts, func(ctx context.Context, driver core.Driver) error {
				rows, err := driver.ExecQuery(ctx, args[0], bound...)
				if err != nil {
					return err
				}
				return writeYAML(cmd.OutOrStdout(), rows)
			})
		},
	}
}
