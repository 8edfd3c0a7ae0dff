package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// flush pushes buffered output through when w buffers (bufio.Writer and
// friends). Other writers are left alone.
func flush(w io.Writer) error {
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// writeLine writes e as one NDJSON line.
func writeLine(w io.Writer, e Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return err
	}
	return flush(w)
}

// writeArray writes the aggregated events as an indented JSON array. No
// events still produce "[]".
func writeArray(w io.Writer, events []Event) error {
	if events == nil {
		events = []Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return err
	}
	return flush(w)
}

// stream is the structured half every sink shares. In "json" it keeps the
// aggregated events until end; in "ndjson" it writes each Event as it comes.
// Values that are not Events are ignored.
type stream struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	events []Event
}

func newStream(w io.Writer, format string) (*stream, error) {
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported structured format: %s", format)
	}
	return &stream{w: w, format: format}, nil
}

func (s *stream) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		if e, ok := aggregated(v); ok {
			s.events = append(s.events, e)
		}
		return nil
	}
	e, ok := v.(Event)
	if !ok {
		return nil
	}
	return writeLine(s.w, e)
}

// end writes the JSON array, if any.
func (s *stream) end() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format != "json" {
		return nil
	}
	return writeArray(s.w, s.events)
}
