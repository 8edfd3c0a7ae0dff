// Package store holds the schema-list state and serializes the actions that
// change it.
//
// A Store is owned by whoever creates it (the CLI command, the TUI model) and
// passed explicitly to the code that dispatches into it.
package store

import (
	"sync"

	"pdqctl/internal/pdq"
)

type ActionType string

const (
	ActionFetching ActionType = "FETCHING"
	ActionResolved ActionType = "RESOLVED"
	ActionError    ActionType = "ERROR"
)

// Action is one lifecycle signal of a schema-list fetch.
//
// Only RESOLVED carries SchemaList; only ERROR carries Err.
type Action struct {
	Type       ActionType
	SchemaList []pdq.Schema
	Err        error
}

func Fetching() Action {
	return Action{Type: ActionFetching}
}

// Resolved builds a RESOLVED action from the /initSchemas payload.
func Resolved(info pdq.InitialInfo) Action {
	return Action{Type: ActionResolved, SchemaList: info.Schemas}
}

func Error(err error) Action {
	return Action{Type: ActionError, Err: err}
}

// State is one of Idle, Loading, Loaded or Failed.
type State interface {
	isState()
	String() string
}

type Idle struct{}

type Loading struct{}

type Loaded struct {
	Schemas []pdq.Schema
}

// Failed keeps the cause so callers can distinguish a dead server from a
// garbled payload even when they only show a generic message.
type Failed struct {
	Err error
}

func (Idle) isState()    {}
func (Loading) isState() {}
func (Loaded) isState()  {}
func (Failed) isState()  {}

func (Idle) String() string    { return "idle" }
func (Loading) String() string { return "fetching" }
func (Loaded) String() string  { return "resolved" }
func (Failed) String() string  { return "failed" }

// Reduce returns the state after applying a. Unknown actions leave s as is.
func Reduce(s State, a Action) State {
	switch a.Type {
	case ActionFetching:
		return Loading{}
	case ActionResolved:
		return Loaded{Schemas: a.SchemaList}
	case ActionError:
		return Failed{Err: a.Err}
	default:
		if s == nil {
			return Idle{}
		}
		return s
	}
}

// Listener is called after every dispatch with the action and the new state.
// A listener may dispatch; the nested action is delivered once the current
// one has reached every listener.
type Listener func(a Action, s State)

// Store applies actions one at a time and notifies listeners in
// registration order. Listeners run on the dispatching goroutine, outside the
// store lock. An action dispatched while another is being delivered is queued
// and delivered, in order, by the goroutine already delivering.
type Store struct {
	mu         sync.Mutex
	state      State
	nextID     int
	listeners  map[int]Listener
	order      []int
	pending    []Action
	delivering bool
}

func New() *Store {
	return &Store{
		state:     Idle{},
		listeners: make(map[int]Listener),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and notifies listeners. If a dispatch is already being
// delivered, a is queued behind it and Dispatch returns at once.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.pending = append(s.pending, a)
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()

	finished := false
	defer func() {
		if finished {
			return
		}
		// A listener panicked. Drop the queue so the store stays usable.
		s.mu.Lock()
		s.delivering = false
		s.pending = nil
		s.mu.Unlock()
	}()

	for {
		next, state, listeners, ok := s.advance()
		if !ok {
			finished = true
			return
		}
		for _, l := range listeners {
			l(next, state)
		}
	}
}

// advance applies the oldest queued action. It reports false, and ends the
// delivery, once the queue is empty.
func (s *Store) advance() (Action, State, []Listener, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		s.delivering = false
		return Action{}, nil, nil, false
	}
	a := s.pending[0]
	s.pending = s.pending[1:]
	s.state = Reduce(s.state, a)

	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	return a, s.state, listeners, true
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
