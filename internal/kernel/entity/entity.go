// Package entity holds the entity registry: id assignment, reflection over
// each entity's declared handler bindings, and the tracked property set
// used for change detection.
package entity

import "github.com/scarab-sim/scarab/internal/kernel/event"

// HandlerKind identifies which lifecycle or event family a HandlerBinding
// subscribes to.
type HandlerKind uint8

const (
	HandlerCreated HandlerKind = iota
	HandlerChanged
	HandlerDestroyed
	HandlerTimeUpdated
	HandlerShutdown
	HandlerNamedEvent
)

// EventSender lets a handler enqueue a new event without the entity holding
// a reference to the Router itself — the Go answer to the original's
// monkey-patched send_event, threaded through the handler invocation
// instead of injected onto the entity.
type EventSender interface {
	Send(event.Event) error
}

// HandlerBinding pairs a handler kind with the selector it's interested in
// (an entity's ScarabName for entity-kind bindings, an event name for
// HandlerNamedEvent) and the invoker itself. TimeUpdated and Shutdown
// bindings ignore Selector.
type HandlerBinding struct {
	Kind     HandlerKind
	Selector string
	Invoke   func(ev event.Event, send EventSender) error
}

// Entity is the contract a registered value must satisfy. There is no
// runtime reflection over method metadata here — Go has no attribute
// decorators, so handler discovery is an explicit method instead, per the
// kernel's design notes on reimplementing attribute-decorator discovery.
type Entity interface {
	// ScarabName is the domain-level string tag used to select handlers and
	// populate EntityView, distinct from the entity's Go type name.
	ScarabName() string
	// Describe returns this entity's handler bindings, evaluated once at
	// registration time.
	Describe() []HandlerBinding
}

// ViewProvider lets an entity override the reflection-based EntityView
// construction with an explicit map of public properties.
type ViewProvider interface {
	PublicView() map[string]any
}

// Conformer lets an entity declare a Go struct type it claims to conform
// to. Registration validates every field of that type is present on the
// entity by name, and the resulting EntityView is restricted to exactly
// those fields (plus the three mandatory keys) instead of every exported
// field. Grounded on the original's EntityWrapper._scarab_does_conform.
type Conformer interface {
	ConformsTo() any
}
