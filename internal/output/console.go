package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"pdqctl/internal/pdq"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// ConsoleSink is the human-facing sink. "text" renders each event as it
// arrives; "json" and "ndjson" behave like the emit sink.
type ConsoleSink struct {
	mu     sync.Mutex
	writer io.Writer
	format string // "text", "json", "ndjson"
	st     *stream
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	s := &ConsoleSink{writer: w, format: format}
	if format != "text" {
		// An unknown format is reported by Write and Close.
		s.st, _ = newStream(w, format)
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	switch {
	case s.format == "text":
		e, ok := v.(Event)
		if !ok {
			return nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := renderText(s.writer, e); err != nil {
			return err
		}
		return flush(s.writer)
	case s.st != nil:
		return s.st.write(v)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	switch {
	case s.format == "text":
		return nil
	case s.st != nil:
		return s.st.end()
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func renderText(w io.Writer, e Event) error {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	bold := color.New(color.Bold)

	var err error
	switch e.Type {
	case EventFetchResolved:
		renderSchemas(w, e.Schemas)
	case EventFetchFailed:
		_, err = red.Fprintf(w, "[FAILED] could not load schemas: %s\n", e.Error)
	case EventFileSaved:
		_, err = green.Fprintf(w, "[SAVED] %s (%d bytes)\n", e.File, e.Bytes)
	case EventFileFailed:
		_, err = red.Fprintf(w, "[FAILED] %s: %s\n", e.File, e.Error)
	case EventPlanComputed:
		p := e.Plan
		if _, err = bold.Fprintf(w, "Plan for schema %d, query %d", p.SchemaID, p.QueryID); err != nil {
			return err
		}
		if p.ComputationTime > 0 {
			_, _ = fmt.Fprintf(w, " (%.3fs)", p.ComputationTime)
		}
		_, err = fmt.Fprintf(w, "\n%s\n", p.BestPlan)
	case EventQueryVerified:
		if e.Valid != nil && *e.Valid {
			_, err = green.Fprintf(w, "[VALID] schema %d, query %d\n", e.Ref.SchemaID, e.Ref.QueryID)
		} else {
			_, err = red.Fprintf(w, "[INVALID] schema %d, query %d\n", e.Ref.SchemaID, e.Ref.QueryID)
		}
	case EventRunCompleted:
		err = renderResults(w, e)
	case EventSchemaDocument:
		err = renderDocument(w, e)
	}
	// fetch.started and unknown events have no text form.
	return err
}

func renderSchemas(w io.Writer, schemas []pdq.Schema) {
	if len(schemas) == 0 {
		_, _ = fmt.Fprintln(w, "(0 schemas)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Schema", "Name", "Query", "SQL"})
	for _, s := range schemas {
		if len(s.Queries) == 0 {
			t.AppendRow(table.Row{s.ID, s.Name, "", ""})
			continue
		}
		for _, q := range s.Queries {
			t.AppendRow(table.Row{s.ID, s.Name, q.ID, q.SQL})
		}
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d schemas)\n", len(schemas))
}

// renderResults prints run results. The planner returns rows as arrays of
// strings with the header first; anything else is printed as JSON.
func renderResults(w io.Writer, e Event) error {
	var rows [][]string
	if err := json.Unmarshal(e.Results, &rows); err != nil || len(rows) == 0 {
		_, err := fmt.Fprintf(w, "%s\n", e.Results)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(toRow(rows[0]))
	for _, r := range rows[1:] {
		t.AppendRow(toRow(r))
	}
	t.Render()
	_, err := fmt.Fprintf(w, "(%d rows, %.3fs)\n", len(rows)-1, e.Runtime)
	return err
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func renderDocument(w io.Writer, e Event) error {
	var v any
	if err := json.Unmarshal(e.Document, &v); err != nil {
		_, err = fmt.Fprintf(w, "%s\n", e.Document)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
