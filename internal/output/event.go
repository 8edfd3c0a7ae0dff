package output

import (
	"encoding/json"

	"pdqctl/internal/errs"
	"pdqctl/internal/pdq"
	"pdqctl/internal/store"
)

const (
	EventFetchStarted   = "fetch.started"
	EventFetchResolved  = "fetch.resolved"
	EventFetchFailed    = "fetch.failed"
	EventFileSaved      = "file.saved"
	EventFileFailed     = "file.failed"
	EventPlanComputed   = "plan.computed"
	EventQueryVerified  = "query.verified"
	EventRunCompleted   = "run.completed"
	EventSchemaDocument = "schema.document"
)

// Event is a lifecycle record for structured output.
//
// In NDJSON mode sinks emit every Event, one JSON object per line. JSON mode
// aggregates the result events and skips fetch.started.
type Event struct {
	Type string `json:"type"`
	// Ref is the (schema, query) pair the event is about, if any.
	Ref       *pdq.PlanRef    `json:"ref,omitempty"`
	Schemas   []pdq.Schema    `json:"schemas,omitempty"`
	Plan      *pdq.Plan       `json:"plan,omitempty"`
	Valid     *bool           `json:"valid,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`
	Runtime   float64         `json:"runtime,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Document  json.RawMessage `json:"document,omitempty"`
	File      string          `json:"file,omitempty"`
	Bytes     int             `json:"bytes,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// EventFromAction maps a schema-list action to its event.
func EventFromAction(a store.Action) Event {
	switch a.Type {
	case store.ActionFetching:
		return Event{Type: EventFetchStarted}
	case store.ActionResolved:
		return Event{Type: EventFetchResolved, Schemas: a.SchemaList}
	case store.ActionError:
		e := Event{Type: EventFetchFailed}
		setError(&e, a.Err)
		return e
	default:
		return Event{Type: string(a.Type)}
	}
}

func FileSaved(ref *pdq.PlanRef, name string, n int) Event {
	return Event{Type: EventFileSaved, Ref: ref, File: name, Bytes: n}
}

func FileFailed(ref *pdq.PlanRef, name string, err error) Event {
	e := Event{Type: EventFileFailed, Ref: ref, File: name}
	setError(&e, err)
	return e
}

func PlanComputed(p *pdq.Plan) Event {
	return Event{Type: EventPlanComputed, Ref: p.Ref(), Plan: p}
}

func QueryVerified(ref *pdq.PlanRef, valid bool) Event {
	return Event{Type: EventQueryVerified, Ref: ref, Valid: &valid}
}

func RunCompleted(ref *pdq.PlanRef, r *pdq.RunResults) Event {
	return Event{Type: EventRunCompleted, Ref: ref, Results: r.Results, Runtime: r.Runtime}
}

// SchemaDocument carries a relations or dependencies document.
func SchemaDocument(schemaID int, kind string, doc json.RawMessage) Event {
	return Event{Type: EventSchemaDocument, Ref: &pdq.PlanRef{SchemaID: schemaID}, Kind: kind, Document: doc}
}

func setError(e *Event, err error) {
	if err == nil {
		return
	}
	e.Error = err.Error()
	e.ErrorKind = errs.KindOf(err).String()
}

// aggregated reports whether JSON aggregate mode keeps v.
func aggregated(v any) (Event, bool) {
	e, ok := v.(Event)
	if !ok || e.Type == EventFetchStarted {
		return Event{}, false
	}
	return e, true
}
