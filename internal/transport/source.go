// Package transport delivers named events from the console backend to
// registered handlers. The primary source is a dialing WebSocket connection;
// a Redis pub/sub source is available for deployments that fan events out
// through Redis instead.
package transport

import (
	"encoding/json"
	"sync"
)

// Source is a connection to one event stream. Handlers are registered once,
// before Start, and are invoked for every matching event whenever the
// source is connected. Close tears the source down fully: no retry timers
// or reader goroutines survive it.
type Source interface {
	// On registers a handler for a named event.
	On(event string, fn func(data json.RawMessage))

	// Start begins delivering events in the background.
	Start()

	// Connected reports whether the source currently holds a live
	// connection. This flag is the only externally observable effect of
	// the connect/reconnect cycle.
	Connected() bool

	// Close disconnects and releases all resources.
	Close() error
}

// dispatcher fans one decoded event out to its registered handlers.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]func(json.RawMessage)
}

func (d *dispatcher) On(event string, fn func(json.RawMessage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[string][]func(json.RawMessage))
	}
	d.handlers[event] = append(d.handlers[event], fn)
}

func (d *dispatcher) emit(event string, data json.RawMessage) {
	d.mu.RLock()
	fns := d.handlers[event]
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}
}
