// Package event defines the wire-level Event record and the time-ordered
// queue that holds events awaiting dispatch.
package event

import "github.com/scarab-sim/scarab/internal/kernel/clock"

// EntityID is a stable, globally unique string (a UUID) assigned to an
// entity on registration. Never reused, never rewritten.
type EntityID string

// Reserved event names. These four families plus the shutdown event are
// produced exclusively by the kernel; any other event name is a user event.
const (
	NameTimeUpdated        = "scarab.time.updated"
	NameEntityCreated      = "scarab.entity.created"
	NameEntityChanged      = "scarab.entity.changed"
	NameEntityDestroyed    = "scarab.entity.destroyed"
	NameSimulationShutdown = "scarab.simulation.shutdown"
)

// Event is the tagged record dispatched by the Router and broadcast to the
// control channel. TargetID is nullable; the zero value (empty string)
// means "no target, broadcast to every matching subscriber".
type Event struct {
	Name     string
	SimTime  clock.SimTime
	TargetID EntityID
	Payload  map[string]any
}

// HasTarget reports whether this event is addressed to a single entity.
func (e Event) HasTarget() bool {
	return e.TargetID != ""
}
