package output

import (
	"errors"
	"fmt"

	"pdqctl/internal/store"
)

// Sink is a destination for events.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans events out to every sink. Sinks are added before the first
// event; Write is then safe from several goroutines as long as each sink is.
type Manager struct {
	sinks []Sink
	onErr func(error)
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

// OnError sets where Emit reports sink failures.
func (m *Manager) OnError(fn func(error)) {
	m.onErr = fn
}

// Write hands v to every sink. One failing sink does not stop the others.
func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

// Emit writes e. A sink failure goes to the OnError handler instead of
// failing the caller: losing an event must not fail a download.
func (m *Manager) Emit(e Event) {
	if err := m.Write(e); err != nil && m != nil && m.onErr != nil {
		m.onErr(err)
	}
}

// Listener returns a store listener that writes every action as an Event.
// Sink errors go to onErr, or to the OnError handler when onErr is nil.
func (m *Manager) Listener(onErr func(error)) store.Listener {
	if onErr == nil && m != nil {
		onErr = m.onErr
	}
	return func(a store.Action, _ store.State) {
		if err := m.Write(EventFromAction(a)); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Close closes every sink and joins their errors.
func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
