package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestNew_IsValid(t *testing.T) {
	cfg := New()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.StdoutSave() {
		t.Fatalf("default save target must be a directory")
	}
}

func TestValidate_NormalizesCommaDelimitedEmit(t *testing.T) {
	cfg := New()
	cfg.Output.Emit = []string{"JSON, ndjson", ",,"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	want := []string{"json", "ndjson"}
	if !reflect.DeepEqual(cfg.Output.Emit, want) {
		t.Fatalf("Emit normalized mismatch: got %v want %v", cfg.Output.Emit, want)
	}
}

func TestValidate_InfersEventsFormat(t *testing.T) {
	tests := []struct {
		path    string
		format  string
		want    string
		wantErr string
	}{
		{path: "events.json", want: "json"},
		{path: "out/events.ndjson", want: "ndjson"},
		{path: "events.jsonl", want: "ndjson"},
		{path: "events.log", format: "NDJSON", want: "ndjson"},
		{path: "events", wantErr: "missing extension"},
		{path: "events.txt", wantErr: "cannot infer events format"},
		{path: "events.json", format: "xml", wantErr: "unsupported events format"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.format, func(t *testing.T) {
			cfg := New()
			cfg.Output.EventsOut = tt.path
			cfg.Output.EventsFormat = tt.format
			err := cfg.Validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() returned error: %v", err)
			}
			if cfg.Output.EventsFormat != tt.want {
				t.Fatalf("EventsFormat = %q, want %q", cfg.Output.EventsFormat, tt.want)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty server", mutate: func(c *Config) { c.Server.URL = " " }, wantErr: "--server"},
		{name: "zero timeout", mutate: func(c *Config) { c.Server.Timeout = 0 }, wantErr: "--timeout"},
		{name: "bad format", mutate: func(c *Config) { c.Output.Format = "yaml" }, wantErr: "unsupported --format"},
		{name: "empty format", mutate: func(c *Config) { c.Output.Format = "" }, wantErr: "--format must be one of"},
		{name: "bad emit", mutate: func(c *Config) { c.Output.Emit = []string{"text"} }, wantErr: "unsupported --emit"},
		{name: "bad backend", mutate: func(c *Config) { c.Save.Backend = "s3" }, wantErr: "unsupported --save-to"},
		{name: "minio without endpoint", mutate: func(c *Config) { c.Save.Backend = "minio"; c.Save.MinIO.Bucket = "b" }, wantErr: "--minio-endpoint"},
		{name: "minio without bucket", mutate: func(c *Config) { c.Save.Backend = "minio"; c.Save.MinIO.Endpoint = "localhost:9000" }, wantErr: "--minio-bucket"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "--log-level"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "--log-format"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Runtime.Concurrency = 0 }, wantErr: "--concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NormalizesEnums(t *testing.T) {
	cfg := New()
	cfg.Output.Format = " JSON "
	cfg.Save.Backend = "MinIO"
	cfg.Save.MinIO.Endpoint = "localhost:9000"
	cfg.Save.MinIO.Bucket = "plans"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Format = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.Output.Format != "json" || cfg.Save.Backend != "minio" || cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("not normalized: %+v", cfg)
	}
}

func TestStdoutSave(t *testing.T) {
	cfg := New()
	cfg.Save.Dir = StdoutDir
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if !cfg.StdoutSave() {
		t.Fatalf("--out - must stream to stdout")
	}
}
