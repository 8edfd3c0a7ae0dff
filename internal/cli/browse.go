package cli

import (
	"errors"

	"pdqctl/internal/fetcher"
	"pdqctl/internal/store"
	"pdqctl/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var errNoStdoutBrowse = errors.New("browse cannot stream files to stdout; use --out <dir>")

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse schemas and download plans interactively",
		Long: `Open an interactive browser over the schema list.

Keys:
  up/down, k/j   select a query
  p              compute the plan of the selected query
  d              download the plan as PDQ_plan_schema{S}_query{Q}.xml
  D              download the results as results.csv
  ?              toggle the download tooltip
  r              reload the schema list
  q, ctrl+c      quit

The download buttons are disabled until the plan of the selected query has
been computed. Quitting cancels any download still in flight.

Logs go to stderr; use --log-level disabled to keep the screen clean.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			if a.cfg.StdoutSave() {
				return usageError(errNoStdoutBrowse)
			}
			saver, err := a.newSaver(cmd)
			if err != nil {
				return err
			}

			m := tui.New(ctx, fetcher.NewFetcher(client, a.log), store.New(), client, saver, a.log)
			return tui.Run(m,
				tea.WithContext(ctx),
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
		},
	}
}
