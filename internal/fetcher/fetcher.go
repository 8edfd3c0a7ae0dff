package fetcher

import (
	"context"
	"encoding/json"
	"fmt"

	"pdqctl/internal/pdq"
	"pdqctl/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const initSchemasKey = "initSchemas"

// Source is the part of the planner API the fetcher needs. *pdq.Client
// implements it.
type Source interface {
	InitSchemas(ctx context.Context) (pdq.InitialInfo, error)
	Relations(ctx context.Context, schemaID int) (json.RawMessage, error)
	Dependencies(ctx context.Context, schemaID int) (json.RawMessage, error)
}

// Dispatch delivers an action to whoever owns the state. (*store.Store).Dispatch
// satisfies it.
type Dispatch func(store.Action)

// Thunk performs asynchronous work and dispatches lifecycle actions as it goes.
type Thunk func(ctx context.Context, dispatch Dispatch) error

type Fetcher struct {
	source Source
	// flights collapses concurrent requests for the same resource.
	flights singleflight.Group
	docs    docCache
	log     zerolog.Logger
}

func NewFetcher(source Source, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		log:    log,
	}
}

// GetInitialData returns a thunk that loads the schema list.
//
// The thunk dispatches FETCHING immediately, then exactly one of RESOLVED
// (carrying the payload's schemas) or ERROR (carrying the cause). Failures
// are returned too, but never retried. If ctx ends before the response
// arrives, the owner is considered gone: nothing more is dispatched and the
// context error is returned.
//
// Concurrent thunks share one in-flight request; each still dispatches its
// own actions. The shared request is detached from every caller's ctx, so
// one owner going away never fails the others. The client timeout bounds it.
func (f *Fetcher) GetInitialData() Thunk {
	return func(ctx context.Context, dispatch Dispatch) error {
		if ctx == nil {
			return fmt.Errorf("GetInitialData: nil context")
		}
		if dispatch == nil {
			return fmt.Errorf("GetInitialData: nil dispatch")
		}
		if f == nil || f.source == nil {
			return fmt.Errorf("GetInitialData: nil source (use NewFetcher)")
		}

		dispatch(store.Fetching())

		shared := context.WithoutCancel(ctx)
		ch := f.flights.DoChan(initSchemasKey, func() (interface{}, error) {
			return f.source.InitSchemas(shared)
		})

		var res struct {
			info pdq.InitialInfo
			err  error
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-ch:
			if r.Err != nil {
				res.err = r.Err
			} else {
				res.info, _ = r.Val.(pdq.InitialInfo)
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if res.err != nil {
			f.log.Debug().Err(res.err).Msg("schema list fetch failed")
			dispatch(store.Error(res.err))
			return fmt.Errorf("fetch schemas: %w", res.err)
		}

		f.log.Debug().Int("schemas", len(res.info.Schemas)).Msg("schema list resolved")
		dispatch(store.Resolved(res.info))
		return nil
	}
}

// Relations returns the relations document for a schema, cached per schema.
func (f *Fetcher) Relations(ctx context.Context, schemaID int) (json.RawMessage, error) {
	return f.cached(ctx, "relations", schemaID, Source.Relations)
}

// Dependencies returns the dependencies document for a schema, cached per schema.
func (f *Fetcher) Dependencies(ctx context.Context, schemaID int) (json.RawMessage, error) {
	return f.cached(ctx, "dependencies", schemaID, Source.Dependencies)
}

// Forget drops cached documents for a schema.
func (f *Fetcher) Forget(schemaID int) {
	f.docs.forget(schemaID)
}

func (f *Fetcher) cached(ctx context.Context, kind string, schemaID int, fetch func(Source, context.Context, int) (json.RawMessage, error)) (json.RawMessage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("Fetch: nil context")
	}
	if f == nil || f.source == nil {
		return nil, fmt.Errorf("Fetch: nil source (use NewFetcher)")
	}

	key := docKey{kind: kind, schemaID: schemaID}
	if doc, ok := f.docs.get(key); ok {
		return doc, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := f.flights.DoChan(key.String(), func() (interface{}, error) {
		return fetch(f.source, shared, schemaID)
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, r.Err
	}

	doc := r.Val.(json.RawMessage)
	f.docs.put(key, doc)
	return doc, nil
}
