package cli

import (
	"context"
	"fmt"

	"pdqctl/internal/download"
	"pdqctl/internal/fetcher"
	"pdqctl/internal/output"
	"pdqctl/internal/pdq"

	"github.com/spf13/cobra"
)

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute and download query plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newPlanShowCmd(a), newPlanDownloadCmd(a))
	return cmd
}

func newPlanShowCmd(a *app) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Compute and print the best plan of queries",
		Long: `Compute plans with GET {server}/plan/{schema}/{query}/{sql} and print the
best plan of each.

Examples:
  pdqctl plan show --schema 0 --query 1
  pdqctl plan show --schema 0 --query 0,1 --format ndjson
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
				p, err := computePlan(ctx, client, t)
				if err != nil {
					return err
				}
				mgr.Emit(output.PlanComputed(p))
				return nil
			})
		},
	}
	tf.register(cmd)
	return cmd
}

func newPlanDownloadCmd(a *app) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Compute plans and save them as XML",
		Long: `Compute the plan of each query, then download it with
GET {server}/downloadPlan/{schema}/{query}/{sql}.

Each plan is saved as PDQ_plan_schema{schema}_query{query}.xml in --out, in a
MinIO bucket with --save-to minio, or streamed to stdout with --out -.

Exit codes:
  0 = every plan saved
  1 = a plan could not be computed, downloaded or saved
  3 = invalid flags or configuration

Examples:
  pdqctl plan download --schema 0 --query 1 --out ./plans
  pdqctl plan download --schema 0 --query 0,1,2 --concurrency 2
  pdqctl plan download --schema 0 --query 1 --out - > plan.xml
  pdqctl plan download --schema 0 --query 1 --save-to minio \
    --minio-endpoint localhost:9000 --minio-bucket plans
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
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

			return forEachTarget(ctx, a.cfg.Runtime.Concurrency, targets, func(ctx context.Context, t target) error {
				p, err := computePlan(ctx, client, t)
				if err != nil {
					mgr.Emit(output.FileFailed(t.ref(), download.PlanFileName(t.SchemaID, t.QueryID), err))
					return err
				}
				b := download.NewButton(ctx, props(t, p), client, saver, a.log)
				defer b.Unmount()
				return click(mgr, t, b)
			})
		},
	}
	tf.register(cmd)
	return cmd
}

func computePlan(ctx context.Context, client *pdq.Client, t target) (*pdq.Plan, error) {
	p, err := client.Plan(ctx, t.SchemaID, t.QueryID, download.SimplifySQL(t.SQL))
	if err != nil {
		return nil, fmt.Errorf("compute plan for schema %d, query %d: %w", t.SchemaID, t.QueryID, err)
	}
	return p, nil
}

func props(t target, p *pdq.Plan) download.Props {
	return download.Props{
		ID:       t.QueryID,
		SchemaID: t.SchemaID,
		QueryID:  t.QueryID,
		SQL:      t.SQL,
		Plan:     p.Ref(),
	}
}

type clickable interface {
	FileName() string
	Click() (download.Saved, error)
}

func click(mgr *output.Manager, t target, b clickable) error {
	saved, err := b.Click()
	if err != nil {
		mgr.Emit(output.FileFailed(t.ref(), b.FileName(), err))
		return err
	}
	mgr.Emit(output.FileSaved(t.ref(), saved.Name, saved.Bytes))
	return nil
}
