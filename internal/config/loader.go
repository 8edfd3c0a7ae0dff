package config

import (
	"fmt"
	"os"
	"strings"

	"pdqctl/internal/flags"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read into the config.
// PDQ_SERVER_URL sets server.url, PDQ_SAVE_MINIO_ACCESS_KEY sets
// save.minio.access_key, and so on.
const EnvPrefix = "PDQ_"

// DefaultFiles are looked up in the working directory when no --config is given.
var DefaultFiles = []string{"pdqctl.yaml", "pdqctl.yml"}

// defaultValues mirrors New() as flat koanf keys.
func defaultValues() map[string]interface{} {
	d := New()
	return map[string]interface{}{
		"server.url":            d.Server.URL,
		"server.token":          d.Server.Token,
		"server.timeout":        d.Server.Timeout.String(),
		"output.format":         d.Output.Format,
		"output.emit":           []string{},
		"output.events_out":     d.Output.EventsOut,
		"output.events_format":  d.Output.EventsFormat,
		"output.no_console":     d.Output.NoConsole,
		"save.backend":          d.Save.Backend,
		"save.dir":              d.Save.Dir,
		"save.minio.endpoint":   "",
		"save.minio.access_key": "",
		"save.minio.secret_key": "",
		"save.minio.use_ssl":    false,
		"save.minio.region":     "",
		"save.minio.bucket":     "",
		"save.minio.prefix":     "",
		"log.level":             d.Log.Level,
		"log.format":            d.Log.Format,
		"log.verbose":           d.Log.Verbose,
		"runtime.concurrency":   d.Runtime.Concurrency,
	}
}

// envKeys maps "server_url" style names to "server.url" keys. Key segments
// contain underscores themselves, so the mapping cannot be derived by
// splitting on "_".
func envKeys() map[string]string {
	out := make(map[string]string)
	for key := range defaultValues() {
		out[strings.ReplaceAll(key, ".", "_")] = key
	}
	return out
}

// FindConfigFile returns the config file to use.
// Priority: explicit path > pdqctl.yaml > pdqctl.yml
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration from defaults, the config file, PDQ_*
// environment variables and explicitly set flags, in increasing precedence.
// The result is not validated.
func Load(cfgFile string, fs *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := FindConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment. Unknown PDQ_ variables (PDQ_TOKEN, PDQ_TOKEN_FILE) are
	// skipped here and handled by the token resolver.
	keys := envKeys()
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return keys[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := flags.ConfigKey(f.Name)
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := New()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, used, nil
}
