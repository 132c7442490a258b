// Package core provides the fundamental building blocks of the orm driver layer.
// This file defines the event dispatcher drivers use to report connection-level
// errors to observers such as an external reconnection policy.
package core

import "sync"

// Event represents an event that can be emitted by a Driver.
type Event string

const (
	// EventError is emitted when a connection-level error is observed.
	EventError Event = "error"
)

// EventHandler defines the callback signature for event listeners.
type EventHandler func(err error)

// Events manages the handlers registered on one driver instance and
// dispatches them when the corresponding events are emitted.
//
// The zero value is ready to use. Each driver owns its own Events; there is
// no process-wide dispatcher.
type Events struct {
	mutex       sync.RWMutex
	handlerList map[Event][]EventHandler
}

// On registers an EventHandler for a specific Event. Events other than
// EventError are accepted but never emitted.
//
// Example:
//
//	driver.On(core.EventError, func(err error) {
//	    log.WithError(err).Warn("connection lost")
//	})
func (e *Events) On(event Event, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.handlerList == nil {
		e.handlerList = make(map[Event][]EventHandler)
	}
	e.handlerList[event] = append(e.handlerList[event], handler)
}

// Emit triggers all registered handlers for the given Event.
//
// Handlers are executed asynchronously in separate goroutines.
func (e *Events) Emit(event Event, err error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	for _, h := range e.handlerList[event] {
		go h(err)
	}
}

// Listeners returns the number of handlers registered for event.
func (e *Events) Listeners(event Event) int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return len(e.handlerList[event])
}
