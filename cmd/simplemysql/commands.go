package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shrek82/simplemysql/config"
	"github.com/shrek82/simplemysql/core"
	"github.com/shrek82/simplemysql/logger"
)

type options struct {
	url      string
	params   []string
	debug    bool
	envFiles []string
	total    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "simplemysql",
		Short: "Run SQL through the simplemysql facade",
		Long: `Run a single statement and print the result as JSON.

Placeholders are either named (:name, filled from --param name=value) or
positional (?, filled from the arguments after the statement). The
connection string comes from --url or MYSQL_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.url, "url", "", "connection string, overrides MYSQL_URL")
	pf.StringArrayVarP(&opts.params, "param", "p", nil, "named parameter as name=value (repeatable)")
	pf.BoolVar(&opts.debug, "debug", false, "log every statement to stderr")
	pf.StringArrayVar(&opts.envFiles, "env-file", nil, "read configuration from this .env file (repeatable)")

	root.AddCommand(
		accessorCmd(opts, "query", "Print the full result: fields, rows and header", runQuery),
		rowsCmd(opts),
		accessorCmd(opts, "row", "Print the first row", runRow),
		accessorCmd(opts, "col", "Print the first column of every row", runCol),
		accessorCmd(opts, "val", "Print the first column of the first row", runVal),
		accessorCmd(opts, "insert", "Run an INSERT and print the generated id", runInsert),
		emulateCmd(opts),
	)
	return root
}

type runFunc func(ctx context.Context, db *core.DB, query string, args []any) (any, error)

func accessorCmd(opts *options, name, short string, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <sql> [args...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, args, run)
		},
	}
}

func rowsCmd(opts *options) *cobra.Command {
	cmd := accessorCmd(opts, "rows", "Print all rows", runRows)
	cmd.Flags().BoolVar(&opts.total, "total", false, "also print FOUND_ROWS() of the statement")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !opts.total {
			return execute(cmd, opts, args, runRows)
		}
		return execute(cmd, opts, args, func(ctx context.Context, db *core.DB, query string, qargs []any) (any, error) {
			rows, err := db.Rows(ctx, query, qargs...)
			if err != nil {
				return nil, err
			}
			total, err := db.Total(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"rows": rows, "total": total}, nil
		})
	}
	return cmd
}

func emulateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "emulate <sql> [args...]",
		Short: "Print the statement with its parameters inlined, without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, args, func(_ context.Context, db *core.DB, query string, qargs []any) (any, error) {
				s, err := db.Emulate(query, qargs...)
				if err != nil {
					return nil, err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil, nil
			})
		},
	}
}

func execute(cmd *cobra.Command, opts *options, args []string, run runFunc) error {
	qargs, err := queryArgs(opts.params, args[1:])
	if err != nil {
		return err
	}

	cfg, err := dbConfig(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	db, err := core.Open(cfg)
	if err != nil {
		return err
	}
	defer db.End()

	out, err := run(cmd.Context(), db, args[0], qargs)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func dbConfig(opts *options, stderr io.Writer) (core.Config, error) {
	var cfg core.Config
	if opts.url != "" {
		l := logger.NewStdLogger()
		cfg = core.Config{ConnectionString: opts.url, Logger: l}
	} else {
		s, err := config.Load(opts.envFiles...)
		if err != nil {
			return cfg, err
		}
		cfg = s.DBConfig(nil)
	}

	cfg.Logger.SetOutput(stderr)
	if opts.debug {
		cfg.Logger.SetLevel(logger.LogLevelDebug)
	}
	if opts.total {
		// FOUND_ROWS() only sees the previous statement of its own session
		cfg.MaxOpenConns = 1
	}
	return cfg, nil
}

// queryArgs turns --param flags into a single Params argument, or passes the
// positional arguments through. Mixing both is an error.
func queryArgs(params []string, positional []string) ([]any, error) {
	if len(params) > 0 && len(positional) > 0 {
		return nil, fmt.Errorf("use either --param or positional arguments, not both")
	}
	if len(params) > 0 {
		p := core.Params{}
		for _, kv := range params {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid --param %q, want name=value", kv)
			}
			p[name] = value
		}
		return []any{p}, nil
	}
	args := make([]any, len(positional))
	for i, a := range positional {
		args[i] = a
	}
	return args, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runQuery(ctx context.Context, db *core.DB, query string, args []any) (any, error) {
	res, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"fields": res.Fields, "rows": res.Rows}
	if res.Header != nil {
		out["header"] = res.Header
	}
	return out, nil
}

func runRows(ctx context.Context, db *core.DB, query string, args []any) (any, error) {
	return db.Rows(ctx, query, args...)
}

func runRow(ctx context.Context, db *core.DB, query string, args []any) (any, error) {
	return db.Row(ctx, query, args...)
}

func runCol(ctx context.Context, db *core.DB, query string, args []any) (any, error) {
	return db.Col(ctx, query, args...)
}

func runVal(ctx context.Context, db *core.DB, query string, args []any) (any, error) {
	v, err := db.Val(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return jsonValue{v}, nil
}

func runInsert(ctx context.Context, db *core.DB, query string, args []any) (any, error) {
	id, err := db.Insert(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if !id.Valid {
		return jsonValue{nil}, nil
	}
	return id.Int64, nil
}

// jsonValue prints a nil value as null instead of skipping the output.
type jsonValue struct{ v any }

func (j jsonValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.v)
}
