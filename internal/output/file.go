package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdqctl/internal/errs"
)

// FileSink records events to the --events-out file. Writes are buffered;
// NDJSON lines are flushed one by one so the file can be followed while a
// command is still running.
type FileSink struct {
	*stream
	path string
	file *os.File
	buf  *bufio.Writer
}

// FormatForPath infers json or ndjson from the file extension.
func FormatForPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	default:
		return "", fmt.Errorf("cannot infer events format from file extension %q", ext)
	}
}

// NewFileSink creates (or truncates) path. An empty format is inferred from
// the extension.
func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "events path required")
	}
	if format == "" {
		f, err := FormatForPath(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "events file "+path, err)
		}
		format = f
	}
	if format != "json" && format != "ndjson" {
		return nil, errs.New(errs.ErrKindInvalidInput, "unsupported events format: "+format)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.ErrKindStorageFailed, "create events directory", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "create events file", err)
	}

	buf := bufio.NewWriter(f)
	st, _ := newStream(buf, format)
	return &FileSink{stream: st, path: path, file: f, buf: buf}, nil
}

// Path returns the file being written.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(v any) error { return s.write(v) }

// Close writes the JSON array (json mode), flushes, and closes the file.
func (s *FileSink) Close() error {
	err := s.end()
	if ferr := s.buf.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if cerr := s.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
