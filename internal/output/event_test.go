package output

import (
	"errors"
	"testing"

	"pdqctl/internal/errs"
	"pdqctl/internal/pdq"
	"pdqctl/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestEventFromAction(t *testing.T) {
	schemas := []pdq.Schema{{ID: 1, Name: "s1"}}

	assert.Equal(t, Event{Type: EventFetchStarted}, EventFromAction(store.Fetching()))
	assert.Equal(t, Event{Type: EventFetchResolved, Schemas: schemas}, EventFromAction(store.Resolved(pdq.InitialInfo{Schemas: schemas})))

	cause := errs.Wrap(errs.ErrKindMalformedResponse, "decode initSchemas", errors.New("unexpected EOF"))
	failed := EventFromAction(store.Error(cause))
	assert.Equal(t, EventFetchFailed, failed.Type)
	assert.Equal(t, "malformed_response", failed.ErrorKind)
	assert.Contains(t, failed.Error, "unexpected EOF")
}

func TestFileEvents(t *testing.T) {
	ref := &pdq.PlanRef{SchemaID: 1, QueryID: 2}

	saved := FileSaved(ref, "PDQ_plan_schema1_query2.xml", 42)
	assert.Equal(t, EventFileSaved, saved.Type)
	assert.Equal(t, 42, saved.Bytes)

	failed := FileFailed(ref, "PDQ_plan_schema1_query2.xml", errs.New(errs.ErrKindStorageFailed, "disk full"))
	assert.Equal(t, "storage_failed", failed.ErrorKind)

	plain := FileFailed(ref, "x", errors.New("plain"))
	assert.Equal(t, "unknown", plain.ErrorKind)
}

func TestAggregatedSkipsFetchStarted(t *testing.T) {
	_, ok := aggregated(Event{Type: EventFetchStarted})
	assert.False(t, ok)
	_, ok = aggregated("not an event")
	assert.False(t, ok)
	_, ok = aggregated(Event{Type: EventFileSaved})
	assert.True(t, ok)
}
