package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"pdqctl/internal/config"
	"pdqctl/internal/errs"
	"pdqctl/internal/fetcher"
	"pdqctl/internal/filestore"
	"pdqctl/internal/filestore/minio"
	"pdqctl/internal/logger"
	"pdqctl/internal/output"
	"pdqctl/internal/pdq"
	"pdqctl/internal/store"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const helpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{end}}{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
  PDQ_TOKEN        Bearer token sent to the planner server (when --token is not set)
  PDQ_TOKEN_FILE   File holding the bearer token (when PDQ_TOKEN is not set)
  PDQ_<KEY>        Any config key, dots replaced by underscores, e.g.
                   PDQ_SERVER_URL, PDQ_SAVE_MINIO_ACCESS_KEY

  Precedence (lowest to highest): defaults, config file, environment, flags.

  Examples:
    # macOS/Linux
    export PDQ_SERVER_URL="http://planner:8080"
    export PDQ_TOKEN="<your_token>"
    pdqctl schemas list

    # Windows PowerShell
    $env:PDQ_SERVER_URL = "http://planner:8080"
    pdqctl schemas list

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, used, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return usageError(err)
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	if cfg.StdoutSave() && len(cfg.Output.Emit) > 0 {
		return usageError(errors.New("--emit cannot be combined with --out -"))
	}
	a.cfg = cfg
	a.log = logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if used != "" {
		a.log.Debug().Str("path", used).Msg("loaded config file")
	}
	cmd.SetContext(logger.WithContext(commandContext(cmd), a.log))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) newClient(ctx context.Context) (*pdq.Client, error) {
	token, source, err := pdq.ResolveAuthToken(a.cfg.Server.Token)
	if err != nil {
		return nil, usageError(fmt.Errorf("failed to resolve auth token: %w", err))
	}
	if source != "" {
		a.log.Debug().Str("source", string(source)).Msg("using bearer token")
	}

	c, err := pdq.NewClient(ctx, a.cfg.Server.URL, token,
		pdq.WithVerbose(a.cfg.Log.Verbose, a.log),
		pdq.WithTimeout(a.cfg.Server.Timeout),
	)
	if err != nil {
		return nil, usageError(err)
	}
	return c, nil
}

func (a *app) newSaver(cmd *cobra.Command) (filestore.Saver, error) {
	switch filestore.Backend(a.cfg.Save.Backend) {
	case filestore.BackendMinIO:
		m := a.cfg.Save.MinIO
		s, err := minio.New(minio.Config{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
			Region:    m.Region,
			Bucket:    m.Bucket,
			Prefix:    m.Prefix,
		})
		if err != nil {
			return nil, usageError(err)
		}
		return s, nil
	default:
		if a.cfg.StdoutSave() {
			return filestore.WriterSaver{W: cmd.OutOrStdout()}, nil
		}
		return filestore.NewDirSaver(a.cfg.Save.Dir), nil
	}
}

// newOutput wires the sinks selected by the output flags. When saved files
// stream to stdout, the console moves to stderr.
func (a *app) newOutput(cmd *cobra.Command) (*output.Manager, error) {
	mgr := output.NewManager()
	mgr.OnError(func(err error) {
		a.log.Warn().Err(err).Msg("failed to write event")
	})

	if !a.cfg.Output.NoConsole {
		var w io.Writer = cmd.OutOrStdout()
		if a.cfg.StdoutSave() {
			w = cmd.ErrOrStderr()
		}
		if err := mgr.AddSink(output.NewConsoleSink(w, a.cfg.Output.Format)); err != nil {
			return nil, err
		}
	}
	for _, format := range a.cfg.Output.Emit {
		sink, err := output.NewEmitSink(cmd.OutOrStdout(), format)
		if err != nil {
			return nil, usageError(err)
		}
		if err := mgr.AddSink(sink); err != nil {
			return nil, err
		}
	}
	if a.cfg.Output.EventsOut != "" {
		sink, err := output.NewFileSink(a.cfg.Output.EventsOut, a.cfg.Output.EventsFormat)
		if err != nil {
			return nil, usageError(err)
		}
		if err := mgr.AddSink(sink); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// closeOutput closes mgr and folds a close error into err.
func closeOutput(mgr *output.Manager, err error) error {
	if cerr := mgr.Close(); cerr != nil && err == nil {
		return fmt.Errorf("failed to close output: %w", cerr)
	}
	return err
}

// loadSchemas runs the schema list fetch into a fresh store and returns the
// resolved list. listener may be nil.
func (a *app) loadSchemas(ctx context.Context, f *fetcher.Fetcher, listener store.Listener) (pdq.InitialInfo, error) {
	st := store.New()
	if listener != nil {
		unsubscribe := st.Subscribe(listener)
		defer unsubscribe()
	}
	if err := f.GetInitialData()(ctx, st.Dispatch); err != nil {
		return pdq.InitialInfo{}, err
	}
	loaded, ok := st.State().(store.Loaded)
	if !ok {
		return pdq.InitialInfo{}, fmt.Errorf("schema list in state %s", st.State())
	}
	return pdq.InitialInfo{Schemas: loaded.Schemas}, nil
}

// target is one (schema, query) pair a command works on, with its SQL.
type target struct {
	SchemaID int
	QueryID  int
	SQL      string
}

func (t target) ref() *pdq.PlanRef {
	return &pdq.PlanRef{SchemaID: t.SchemaID, QueryID: t.QueryID}
}

// targetFlags are the --schema/--query/--sql flags shared by query, plan
// and run commands.
type targetFlags struct {
	schema  int
	queries []int
	sql     string
}

func (tf *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&tf.schema, "schema", -1, "Schema ID (required)")
	cmd.Flags().IntSliceVar(&tf.queries, "query", nil, "Query ID (required; repeatable; comma-separated accepted)")
	cmd.Flags().StringVar(&tf.sql, "sql", "", "SQL to use instead of the query's stored SQL (single --query only)")
}

func (tf *targetFlags) validate() error {
	if tf.schema < 0 {
		return usageError(errors.New("--schema is required"))
	}
	if len(tf.queries) == 0 {
		return usageError(errors.New("--query is required"))
	}
	for _, q := range tf.queries {
		if q < 0 {
			return usageError(fmt.Errorf("invalid --query %d", q))
		}
	}
	if tf.sql != "" && len(tf.queries) > 1 {
		return usageError(errors.New("--sql requires exactly one --query"))
	}
	return nil
}

// resolve returns one target per --query. The stored SQL comes from the
// schema list unless --sql is given.
func (a *app) resolve(ctx context.Context, tf *targetFlags, f *fetcher.Fetcher) ([]target, error) {
	if err := tf.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tf.sql) != "" {
		return []target{{SchemaID: tf.schema, QueryID: tf.queries[0], SQL: tf.sql}}, nil
	}

	info, err := a.loadSchemas(ctx, f, nil)
	if err != nil {
		return nil, err
	}
	schema, ok := info.Find(tf.schema)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("schema %d not found", tf.schema))
	}
	out := make([]target, 0, len(tf.queries))
	for _, id := range tf.queries {
		q, ok := schema.Query(id)
		if !ok {
			return nil, errs.New(errs.ErrKindNotFound, fmt.Sprintf("query %d not found in schema %d", id, tf.schema))
		}
		out = append(out, target{SchemaID: tf.schema, QueryID: id, SQL: q.SQL})
	}
	return out, nil
}
