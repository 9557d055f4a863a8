package modhost

import (
	"errors"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event is an alias for the CloudEvents Event type. Site events carry
// the CloudEvents envelope for interoperability with external consumers.
type Event = cloudevents.Event

// NewSiteEvent creates a CloudEvent for a site-level event.
func NewSiteEvent(eventType, source string, data any) Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// newEventID generates identifiers using UUIDv7 for time-ordered
// uniqueness, falling back to v4 if v7 generation fails.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// Emitter is a thin handle for firing one named event into a site.
// Listeners run synchronously, in module initialization order and in
// registration order within a module, each with its owning module as
// execution context.
type Emitter struct {
	d     *Distributor
	event string
}

// Event returns the event name the emitter fires.
func (e *Emitter) Event() string { return e.event }

// Emit delivers the event to every registered listener. Listener errors
// do not stop delivery; they are joined and returned after the full
// fan-out.
func (e *Emitter) Emit(data any) error {
	ev := NewSiteEvent(e.event, "modhost/"+e.d.site, data)
	var errs []error
	for _, code := range e.d.order {
		rt := e.d.runtimes[code]
		if rt == nil || !rt.Loaded() {
			continue
		}
		for _, reg := range rt.listeners[e.event] {
			handler, err := e.d.listenerHandler(rt, reg)
			if err != nil {
				errs = append(errs, fmt.Errorf("listener on %s: %w", code, err))
				continue
			}
			req := e.d.newRequest("", "", nil, rt)
			req.Event = &ev
			if _, err := handler(req); err != nil {
				errs = append(errs, fmt.Errorf("listener on %s: %w", code, err))
			}
		}
	}
	return errors.Join(errs...)
}
