package output

import (
	"fmt"
	"io"
)

// EmitSink writes the additional machine stream selected by --emit.
//
//   - json: one array of result events on Close
//   - ndjson: every Event as it happens, one per line
type EmitSink struct {
	*stream
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	st, err := newStream(w, format)
	if err != nil {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{stream: st}, nil
}

func (s *EmitSink) Write(v any) error { return s.write(v) }
func (s *EmitSink) Close() error      { return s.end() }
