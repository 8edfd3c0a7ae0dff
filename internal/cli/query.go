package cli

import (
	"context"
	"fmt"

	"pdqctl/internal/download"
	"pdqctl/internal/fetcher"
	"pdqctl/internal/output"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// forEachTarget runs fn for every target with at most limit calls in flight.
// All targets run even if some fail; the first error is returned.
func forEachTarget(ctx context.Context, limit int, targets []target, fn func(ctx context.Context, t target) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	errs := make([]error, len(targets))
	for i, t := range targets {
		g.Go(func() error {
			errs[i] = fn(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Check queries against a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueryVerifyCmd(a))
	return cmd
}

func newQueryVerifyCmd(a *app) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify that queries parse against their schema",
		Long: `Verify queries with GET {server}/verifyQuery/{schema}/{query}/{sql}.

The stored SQL of each query is used unless --sql is given. Newlines, carriage
returns and tabs in the SQL are replaced with spaces before sending.

Exit codes:
  0 = every query is valid
  1 = a query is invalid or a request failed
  3 = invalid flags or configuration

Examples:
  pdqctl query verify --schema 0 --query 0,1
  pdqctl query verify --schema 0 --query 2 --sql "SELECT a FROM R"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			client, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			targets, err := a.resolve(ctx, &tf, fetcher.NewFetcher(client, a.log))
			if err != nil {
				return err
			}
			mgr, err := a.newOutput(cmd)
			if err != nil {
				return err
			}
			defer func() { err = closeOutput(mgr, err) }()

			return forEachTarget(ctx, a.cfg.Runtime.Concurrency, targets, func(ctx context.Context, t target) error {
				valid, err := client.VerifyQuery(ctx, t.SchemaID, t.QueryID, download.SimplifySQL(t.SQL))
				if err != nil {
					return fmt.Errorf("verify schema %d, query %d: %w", t.SchemaID, t.QueryID, err)
				}
				mgr.Emit(output.QueryVerified(t.ref(), valid))
				if !valid {
					return fmt.Errorf("schema %d, query %d is not valid", t.SchemaID, t.QueryID)
				}
				return nil
			})
		},
	}
	tf.register(cmd)
	return cmd
}
