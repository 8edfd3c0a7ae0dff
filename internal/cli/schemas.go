package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"pdqctl/internal/fetcher"
	"pdqctl/internal/output"

	"github.com/spf13/cobra"
)

func newSchemasCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List schemas and inspect their relations",
		Long: `Inspect the schemas known to the planner server.

Examples:
  # List every schema and its queries
  pdqctl schemas list

  # Print the relations of schema 0
  pdqctl schemas relations 0
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newSchemasListCmd(a),
		newSchemaDocumentCmd(a, "relations", "Print the relations of a schema", (*fetcher.Fetcher).Relations),
		newSchemaDocumentCmd(a, "dependencies", "Print the dependencies of a schema", (*fetcher.Fetcher).Dependencies),
	)
	return cmd
}

func newSchemasListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schemas and their queries",
		Long: `Fetch the schema list from GET {server}/initSchemas.

Output:
  text:   a table of schema ID, name, query ID and SQL
  json:   an array of events (fetch.resolved or fetch.failed)
  ndjson: fetch.started followed by fetch.resolved or fetch.failed

Exit codes:
  0 = schemas listed
  1 = the server could not be reached or answered with an error
  3 = invalid flags or configuration

Examples:
  pdqctl schemas list
  pdqctl schemas list --no-console --emit ndjson
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			client, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			mgr, err := a.newOutput(cmd)
			if err != nil {
				return err
			}
			defer func() { err = closeOutput(mgr, err) }()

			_, err = a.loadSchemas(ctx, fetcher.NewFetcher(client, a.log), mgr.Listener(nil))
			return err
		},
	}
}

type documentFunc func(f *fetcher.Fetcher, ctx context.Context, schemaID int) (json.RawMessage, error)

func newSchemaDocumentCmd(a *app, kind, short string, fetch documentFunc) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <schema-id>",
		Short: short,
		Long: fmt.Sprintf(`%s.

The document is fetched from GET {server}/get%s?id=<schema-id> and printed
as indented JSON, or as a schema.document event with --format json|ndjson.

Examples:
  pdqctl schemas %s 0
`, short, capitalize(kind), kind),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return usageError(fmt.Errorf("invalid schema id %q", args[0]))
			}

			ctx := cmd.Context()
			client, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			mgr, err := a.newOutput(cmd)
			if err != nil {
				return err
			}
			defer func() { err = closeOutput(mgr, err) }()

			doc, err := fetch(fetcher.NewFetcher(client, a.log), ctx, id)
			if err != nil {
				return fmt.Errorf("get %s of schema %d: %w", kind, id, err)
			}
			mgr.Emit(output.SchemaDocument(id, kind, doc))
			return nil
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
