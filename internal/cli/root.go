package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"pdqctl/internal/config"
	"pdqctl/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// Exit codes returned by Execute.
const (
	ExitOK      = 0
	ExitFailed  = 1 // the command ran and at least one request failed
	ExitUsage   = 3 // invalid flags or configuration; nothing ran
	exitUnknown = ExitFailed
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUnknown
}

// NewRootCmd builds the full command tree. Every call returns fresh flag
// state, so tests can run commands in-process.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pdqctl",
		Short: "Browse planner schemas, compute plans and download them",
		Long: `pdqctl talks to a PDQ planner server over its REST API.

It lists the schemas and queries the server knows about, verifies queries,
computes plans and runs them, and downloads plans (.xml) and results (.csv).

Examples:
	# List schemas and their queries
	pdqctl schemas list --server http://localhost:8080

	# Compute the plan of query 1 in schema 0 and save it as XML
	pdqctl plan download --schema 0 --query 1 --out ./plans

	# Browse schemas interactively
	pdqctl browse

	# Print build info
	pdqctl version

Output:
	By default, commands write human-readable output to stdout.
	Structured output is available via --format, --emit and --events-out.
	Downloaded files go to --out (a directory, or - for stdout) or to a
	MinIO bucket with --save-to minio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	d := config.New()
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, flags.FlagConfig, "", "Config file (default: ./pdqctl.yaml if present)")

	// Server
	pf.String(flags.FlagServer, d.Server.URL, "Base URL of the planner server")
	pf.String(flags.FlagToken, "", "Bearer token for the planner server (default: $PDQ_TOKEN or $PDQ_TOKEN_FILE)")
	pf.Duration(flags.FlagTimeout, d.Server.Timeout, "Timeout for each request to the server")

	// Output
	pf.String(flags.FlagFormat, d.Output.Format, "Console output format: text|json|ndjson")
	pf.StringSlice(flags.FlagEmit, nil, "Emit an additional event stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	pf.String(flags.FlagEventsOut, "", "Record events to this path")
	pf.String(flags.FlagEventsFormat, "", "Format for --events-out: json|ndjson (default: inferred from file extension)")
	pf.Bool(flags.FlagNoConsole, false, "Suppress console output (use with --emit/--events-out)")

	// Saving
	pf.String(flags.FlagSaveTo, d.Save.Backend, "Where downloaded files go: dir|minio")
	pf.String(flags.FlagOut, d.Save.Dir, "Directory for downloaded files (- streams them to stdout)")
	pf.String(flags.FlagMinIOEndpoint, "", "MinIO endpoint as host:port (with --save-to minio)")
	pf.String(flags.FlagMinIOBucket, "", "MinIO bucket (with --save-to minio)")
	pf.String(flags.FlagMinIOPrefix, "", "Object key prefix (with --save-to minio)")
	pf.Bool(flags.FlagMinIOSSL, false, "Use TLS for MinIO")

	// Logging
	pf.String(flags.FlagLogLevel, d.Log.Level, "Log level: trace|debug|info|warn|error|disabled")
	pf.String(flags.FlagLogFormat, d.Log.Format, "Log format: console|json")
	pf.Bool(flags.FlagVerbose, false, "Log every request to the planner server")

	// Runtime
	pf.Int(flags.FlagConcurrency, d.Runtime.Concurrency, "Maximum parallel requests when several queries are given")

	root.SetHelpTemplate(helpTemplate)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	root.AddCommand(
		newSchemasCmd(a),
		newQueryCmd(a),
		newPlanCmd(a),
		newRunCmd(a),
		newBrowseCmd(a),
		newVersionCmd(),
	)

	root.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	root.SetVersionTemplate("{{.Version}}\n")
	return root
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCode(err))
	}
}
