package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"pdqctl/internal/pdq"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var fixtureSchemas = []pdq.Schema{
	{ID: 0, Name: "university", Queries: []pdq.Query{
		{ID: 0, SQL: "SELECT name FROM student"},
		{ID: 1, SQL: "SELECT s.name\nFROM student s"},
	}},
	{ID: 1, Name: "empty"},
}

func TestConsoleSink_TextRendersSchemaTable(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, "text")

	require.NoError(t, sink.Write(Event{Type: EventFetchStarted}))
	assert.Empty(t, buf.String(), "fetch.started has no text form")

	require.NoError(t, sink.Write(Event{Type: EventFetchResolved, Schemas: fixtureSchemas}))
	require.NoError(t, sink.Close())

	out := buf.String()
	for _, want := range []string{"Schema", "Name", "SQL", "university", "SELECT name FROM student", "empty", "(2 schemas)"} {
		assert.Contains(t, out, want)
	}
}

func TestConsoleSink_TextEvents(t *testing.T) {
	valid, invalid := true, false
	ref := &pdq.PlanRef{SchemaID: 1, QueryID: 2}

	tests := []struct {
		name  string
		event Event
		want  []string
	}{
		{name: "fetch failed", event: Event{Type: EventFetchFailed, Error: "connection refused"}, want: []string{"[FAILED]", "could not load schemas", "connection refused"}},
		{name: "file saved", event: FileSaved(ref, "PDQ_plan_schema1_query2.xml", 10), want: []string{"[SAVED] PDQ_plan_schema1_query2.xml (10 bytes)"}},
		{name: "file failed", event: FileFailed(ref, "results.csv", errors.New("denied")), want: []string{"[FAILED] results.csv", "denied"}},
		{name: "valid", event: QueryVerified(ref, valid), want: []string{"[VALID] schema 1, query 2"}},
		{name: "invalid", event: QueryVerified(ref, invalid), want: []string{"[INVALID] schema 1, query 2"}},
		{name: "plan", event: PlanComputed(&pdq.Plan{SchemaID: 1, QueryID: 2, BestPlan: "Project(Access(R))", ComputationTime: 0.5}), want: []string{"Plan for schema 1, query 2", "(0.500s)", "Project(Access(R))"}},
		{name: "run", event: RunCompleted(ref, &pdq.RunResults{Results: json.RawMessage(`[["a","b"],["1","2"],["3","4"]]`), Runtime: 0.25}), want: []string{"a", "3", "(2 rows, 0.250s)"}},
		{name: "run raw", event: RunCompleted(ref, &pdq.RunResults{Results: json.RawMessage(`{"odd":true}`)}), want: []string{`{"odd":true}`}},
		{name: "document", event: SchemaDocument(3, "relations", json.RawMessage(`{"relations":["R"]}`)), want: []string{`"relations": [`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewConsoleSink(&buf, "text").Write(tt.event))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestConsoleSink_JSONAggregatesOnClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, "json")

	require.NoError(t, sink.Write(Event{Type: EventFetchStarted}))
	require.NoError(t, sink.Write(Event{Type: EventFetchResolved, Schemas: fixtureSchemas}))
	require.NoError(t, sink.Write("ignored"))
	assert.Empty(t, buf.String())

	require.NoError(t, sink.Close())
	var got []Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, EventFetchResolved, got[0].Type)
	assert.Equal(t, fixtureSchemas, got[0].Schemas)
}

func TestConsoleSink_JSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleSink(&buf, "json").Close())
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() error {
	f.flushes++
	return nil
}

func TestConsoleSink_NDJSONStreamsAndFlushes(t *testing.T) {
	w := &flushRecorder{}
	sink := NewConsoleSink(w, "ndjson")

	require.NoError(t, sink.Write(Event{Type: EventFetchStarted}))
	require.NoError(t, sink.Write(FileSaved(&pdq.PlanRef{SchemaID: 1, QueryID: 2}, "PDQ_plan_schema1_query2.xml", 3)))
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"type":"fetch.started"}`, lines[0])
	assert.JSONEq(t, `{"type":"file.saved","ref":{"schemaID":1,"queryID":2},"file":"PDQ_plan_schema1_query2.xml","bytes":3}`, lines[1])
	assert.Equal(t, 2, w.flushes)
}

func TestConsoleSink_UnsupportedFormat(t *testing.T) {
	sink := NewConsoleSink(&bytes.Buffer{}, "yaml")
	assert.Error(t, sink.Write(Event{Type: EventFileSaved}))
	assert.Error(t, sink.Close())
}
