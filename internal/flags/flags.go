// Package flags defines canonical CLI flag names and the configuration keys
// they set. Keeping both here avoids drift between the cobra wiring and the
// koanf loader, which only sees flag names.
//
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.PersistentFlags().String(flags.FlagServer, "", "...")
//	key := flags.ConfigKey(flags.FlagServer) // "server.url"
package flags

const (
	FlagConfig = "config"

	// Server
	FlagServer  = "server"
	FlagToken   = "token"
	FlagTimeout = "timeout"

	// Output
	FlagFormat       = "format"
	FlagEmit         = "emit"
	FlagEventsOut    = "events-out"
	FlagEventsFormat = "events-format"
	FlagNoConsole    = "no-console"

	// Saving
	FlagSaveTo        = "save-to"
	FlagOut           = "out"
	FlagMinIOEndpoint = "minio-endpoint"
	FlagMinIOBucket   = "minio-bucket"
	FlagMinIOPrefix   = "minio-prefix"
	FlagMinIOSSL      = "minio-ssl"

	// Logging
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
	FlagVerbose   = "verbose"

	// Runtime
	FlagConcurrency = "concurrency"
)

var configKeys = map[string]string{
	FlagServer:        "server.url",
	FlagToken:         "server.token",
	FlagTimeout:       "server.timeout",
	FlagFormat:        "output.format",
	FlagEmit:          "output.emit",
	FlagEventsOut:     "output.events_out",
	FlagEventsFormat:  "output.events_format",
	FlagNoConsole:     "output.no_console",
	FlagSaveTo:        "save.backend",
	FlagOut:           "save.dir",
	FlagMinIOEndpoint: "save.minio.endpoint",
	FlagMinIOBucket:   "save.minio.bucket",
	FlagMinIOPrefix:   "save.minio.prefix",
	FlagMinIOSSL:      "save.minio.use_ssl",
	FlagLogLevel:      "log.level",
	FlagLogFormat:     "log.format",
	FlagVerbose:       "log.verbose",
	FlagConcurrency:   "runtime.concurrency",
}

// ConfigKey returns the configuration key a flag sets, or "" if the flag is
// not backed by configuration.
func ConfigKey(flag string) string {
	return configKeys[flag]
}
