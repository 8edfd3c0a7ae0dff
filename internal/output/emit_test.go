package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"pdqctl/internal/pdq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmitSink_Validation(t *testing.T) {
	_, err := NewEmitSink(nil, "json")
	assert.Error(t, err)
	_, err = NewEmitSink(&bytes.Buffer{}, "text")
	assert.Error(t, err)
}

func TestEmitSink_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewEmitSink(&buf, "ndjson")
	require.NoError(t, err)

	require.NoError(t, sink.Write(Event{Type: EventFetchStarted}))
	require.NoError(t, sink.Write(Event{Type: EventFetchFailed, Error: "boom", ErrorKind: "connection_failed"}))
	require.NoError(t, sink.Write(42))
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"type":"fetch.failed","error":"boom","error_kind":"connection_failed"}`, lines[1])
}

func TestEmitSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewEmitSink(&buf, "json")
	require.NoError(t, err)

	require.NoError(t, sink.Write(Event{Type: EventFetchStarted}))
	require.NoError(t, sink.Write(PlanComputed(&pdq.Plan{SchemaID: 2, QueryID: 0, BestPlan: "Access(T)"})))
	require.NoError(t, sink.Close())

	var got []Event
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, EventPlanComputed, got[0].Type)
	assert.Equal(t, "Access(T)", got[0].Plan.BestPlan)
	assert.True(t, got[0].Ref.Matches(2, 0))
}
