package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - flag names and keys in internal/flags
	// - defaults in defaultValues (loader.go)
	Server  Server  `koanf:"server"`
	Output  Output  `koanf:"output"`
	Save    Save    `koanf:"save"`
	Log     Log     `koanf:"log"`
	Runtime Runtime `koanf:"runtime"`
}

type Server struct {
	// URL is the base URL of the planner REST server (see --server).
	URL string `koanf:"url"`

	// Token is an optional bearer token (see --token). When empty, PDQ_TOKEN
	// and PDQ_TOKEN_FILE are consulted.
	Token string `koanf:"token"`

	// Timeout bounds each request to the server (see --timeout). Must be > 0.
	Timeout time.Duration `koanf:"timeout"`
}

type Output struct {
	// Format controls the human-facing console sink format (see --format).
	// Allowed values: text, json, ndjson.
	Format string `koanf:"format"`

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string `koanf:"emit"`

	// EventsOut records events to this path (see --events-out).
	EventsOut string `koanf:"events_out"`

	// EventsFormat selects the format for --events-out (see --events-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the file extension.
	EventsFormat string `koanf:"events_format"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `koanf:"no_console"`
}

type Save struct {
	// Backend picks where downloaded files go (see --save-to).
	// Allowed values: dir, minio.
	Backend string `koanf:"backend"`

	// Dir is the target directory for the dir backend (see --out).
	// "-" writes file contents to stdout instead.
	Dir string `koanf:"dir"`

	MinIO MinIO `koanf:"minio"`
}

type MinIO struct {
	Endpoint string `koanf:"endpoint"`
	// AccessKey and SecretKey are only read from the config file or the
	// environment, never from flags.
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
}

type Log struct {
	// Level is the zerolog level (see --log-level).
	Level string `koanf:"level"`

	// Format is json or console (see --log-format).
	Format string `koanf:"format"`

	// Verbose logs every request to the planner server (see --verbose).
	Verbose bool `koanf:"verbose"`
}

type Runtime struct {
	// Concurrency bounds parallel downloads when several queries are given
	// (see --concurrency). Must be >= 1.
	Concurrency int `koanf:"concurrency"`
}

// StdoutDir is the Save.Dir value that streams files to stdout.
const StdoutDir = "-"

func New() *Config {
	return &Config{
		Server: Server{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Output: Output{
			Format: "text",
		},
		Save: Save{
			Backend: "dir",
			Dir:     ".",
		},
		Log: Log{
			Level:  "warn",
			Format: "console",
		},
		Runtime: Runtime{
			Concurrency: 4,
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Output.Emit = splitCommaList(c.Output.Emit)

	// Server validation
	c.Server.URL = strings.TrimSpace(c.Server.URL)
	if c.Server.URL == "" {
		return errors.New("--server must not be empty")
	}
	if c.Server.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	// Output validation
	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		return errors.New("--format must be one of: text, json, ndjson")
	}
	if c.Output.Format != "text" && c.Output.Format != "json" && c.Output.Format != "ndjson" {
		return fmt.Errorf("unsupported --format: %s (must be one of: text, json, ndjson)", c.Output.Format)
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.EventsOut != "" {
		c.Output.EventsFormat = normalizeEnumValue(c.Output.EventsFormat)
		if c.Output.EventsFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.EventsOut))
			switch ext {
			case ".json":
				c.Output.EventsFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.EventsFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer events format from file extension (missing extension); use --events-format")
				}
				return fmt.Errorf("cannot infer events format from file extension %q; use --events-format", ext)
			}
		} else if c.Output.EventsFormat != "json" && c.Output.EventsFormat != "ndjson" {
			return fmt.Errorf("unsupported events format: %s", c.Output.EventsFormat)
		}
	}

	// Save validation
	c.Save.Backend = normalizeEnumValue(c.Save.Backend)
	if c.Save.Backend == "" {
		c.Save.Backend = "dir"
	}
	switch c.Save.Backend {
	case "dir":
		if strings.TrimSpace(c.Save.Dir) == "" {
			c.Save.Dir = "."
		}
	case "minio":
		if strings.TrimSpace(c.Save.MinIO.Endpoint) == "" {
			return errors.New("--minio-endpoint is required with --save-to minio")
		}
		if strings.TrimSpace(c.Save.MinIO.Bucket) == "" {
			return errors.New("--minio-bucket is required with --save-to minio")
		}
	default:
		return fmt.Errorf("unsupported --save-to: %s (must be one of: dir, minio)", c.Save.Backend)
	}

	// Log validation
	c.Log.Level = normalizeEnumValue(c.Log.Level)
	switch c.Log.Level {
	case "":
		c.Log.Level = "warn"
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("unsupported --log-level: %s (must be one of: trace, debug, info, warn, error, disabled)", c.Log.Level)
	}
	c.Log.Format = normalizeEnumValue(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported --log-format: %s (must be one of: console, json)", c.Log.Format)
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}

	return nil
}

// StdoutSave reports whether downloaded files should be streamed to stdout.
func (c *Config) StdoutSave() bool {
	return c.Save.Backend == "dir" && c.Save.Dir == StdoutDir
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
