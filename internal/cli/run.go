package cli

import (
	"context"
	"errors"
	"fmt"

	"pdqctl/internal/download"
	"pdqctl/internal/fetcher"
	"pdqctl/internal/output"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run queries and fetch their results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRunShowCmd(a), newRunDownloadCmd(a))
	return cmd
}

func newRunShowCmd(a *app) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Run queries and print their results",
		Long: `Run queries with GET {server}/run/{schema}/{query}/{sql} and print the
result rows and the runtime.

Examples:
  pdqctl run show --schema 0 --query 1
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
				res, err := client.Run(ctx, t.SchemaID, t.QueryID, download.SimplifySQL(t.SQL))
				if err != nil {
					return fmt.Errorf("run schema %d, query %d: %w", t.SchemaID, t.QueryID, err)
				}
				mgr.Emit(output.RunCompleted(t.ref(), res))
				return nil
			})
		},
	}
	tf.register(cmd)
	return cmd
}

func newRunDownloadCmd(a *app) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Run a query and save its results as CSV",
		Long: `Compute the plan of a query, then download its results with
GET {server}/downloadRun/{schema}/{query}/{sql}.

The results are saved as results.csv, so only one --query is accepted.

Examples:
  pdqctl run download --schema 0 --query 1 --out ./results
  pdqctl run download --schema 0 --query 1 --out - | head
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(tf.queries) > 1 {
				return usageError(errors.New("run download accepts exactly one --query"))
			}
			ctx := cmd.Context()
			client, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			saver, err := a.newSaver(cmd)
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

			t := targets[0]
			p, err := computePlan(ctx, client, t)
			if err != nil {
				mgr.Emit(output.FileFailed(t.ref(), download.RunFileName, err))
				return err
			}
			b := download.NewRunButton(ctx, props(t, p), client, saver, a.log)
			defer b.Unmount()
			return click(mgr, t, b)
		},
	}
	tf.register(cmd)
	return cmd
}
