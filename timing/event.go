// Package timing drives the simulated machine: hardware time advances in
// cycles, and everything that happens (instruction execution, timer firing,
// scancodes arriving) is an event scheduled on the engine.
package timing

// Cycle is a point in simulated machine time.
type Cycle uint64

// A Handler processes events. Events are plain data structs; handlers type
// switch on the payload:
//
//	func (h *myHandler) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *TickEvent:
//	        ...
//	    }
//	    return nil
//	}
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current machine cycle.
type TimeTeller interface {
	CurrentCycle() Cycle
}

// EventScheduler schedules events on the machine timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event FutureEvent)
}

// FutureEvent is the engine-facing wrapper for an event payload. Payloads are
// typically pointers so large structs are not copied.
type FutureEvent struct {
	// Event is the data payload delivered to the handler.
	Event any

	// Time is the cycle when the event should be processed.
	Time Cycle

	// Handler is the object that will process this event.
	Handler Handler

	// IsSecondary marks events processed after all primary events of the
	// same cycle. Device state synchronization uses secondary events.
	IsSecondary bool
}
