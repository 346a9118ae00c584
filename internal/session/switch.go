package session

import (
	"sync"
	"sync/atomic"
)

// BooleanSource reads an externally driven toggle
type BooleanSource interface {
	State() bool
}

// BooleanSink publishes a boolean state to an external indicator
type BooleanSink interface {
	PublishState(state bool)
}

// TextSink publishes a string to an external display
type TextSink interface {
	PublishText(text string)
}

// Switch is a concurrency-safe toggle usable as both source and sink. It is
// the in-process stand-in for a host switch widget.
type Switch struct {
	name  string
	state atomic.Bool

	mu        sync.RWMutex
	listeners []func(bool)
}

// NewSwitch creates a named switch with an initial state
func NewSwitch(name string, initial bool) *Switch {
	s := &Switch{name: name}
	s.state.Store(initial)
	return s
}

// Name returns the switch name
func (s *Switch) Name() string {
	return s.name
}

// State returns the current state
func (s *Switch) State() bool {
	return s.state.Load()
}

// PublishState sets the state and notifies listeners when it changed
func (s *Switch) PublishState(state bool) {
	if s.state.Swap(state) == state {
		return
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// OnChange registers a callback invoked after every state change
func (s *Switch) OnChange(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// TextSensor is a concurrency-safe text display
type TextSensor struct {
	name string
	text atomic.Pointer[string]
}

// NewTextSensor creates a named, empty text sensor
func NewTextSensor(name string) *TextSensor {
	t := &TextSensor{name: name}
	empty := ""
	t.text.Store(&empty)
	return t
}

// Name returns the sensor name
func (t *TextSensor) Name() string {
	return t.name
}

// PublishText replaces the displayed text
func (t *TextSensor) PublishText(text string) {
	t.text.Store(&text)
}

// Text returns the displayed text
func (t *TextSensor) Text() string {
	return *t.text.Load()
}
