package router

import (
	"sync"

	"github.com/scarab-sim/scarab/internal/kernel/entity"
	"github.com/scarab-sim/scarab/internal/kernel/event"
)

// subscriber pairs a registered entity's id with one of its handler
// bindings, so the index can filter by target id without losing track of
// which entity a binding belongs to.
type subscriber struct {
	entityID event.EntityID
	binding  entity.HandlerBinding
}

// subscriberIndex is a twofold lookup structure: by event name (for named
// events) and by (kind, scarab_name) pair (for entity-lifecycle and
// entity-change bindings). Lists are append-only in registration order,
// giving a stable, deterministic invocation order; lookups are O(1)
// expected via the map layer.
type subscriberIndex struct {
	mu sync.RWMutex

	byEntityKind map[entity.HandlerKind]map[string][]subscriber
	timeUpdated  []subscriber
	shutdown     []subscriber
	named        map[string][]subscriber
}

func newSubscriberIndex() *subscriberIndex {
	return &subscriberIndex{
		byEntityKind: make(map[entity.HandlerKind]map[string][]subscriber),
		named:        make(map[string][]subscriber),
	}
}

// add indexes every handler binding a freshly registered descriptor
// declares.
func (idx *subscriberIndex) add(id event.EntityID, bindings []entity.HandlerBinding) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, b := range bindings {
		sub := subscriber{entityID: id, binding: b}
		switch b.Kind {
		case entity.HandlerTimeUpdated:
			idx.timeUpdated = append(idx.timeUpdated, sub)
		case entity.HandlerShutdown:
			idx.shutdown = append(idx.shutdown, sub)
		case entity.HandlerNamedEvent:
			idx.named[b.Selector] = append(idx.named[b.Selector], sub)
		default: // Created, Changed, Destroyed
			bySelector := idx.byEntityKind[b.Kind]
			if bySelector == nil {
				bySelector = make(map[string][]subscriber)
				idx.byEntityKind[b.Kind] = bySelector
			}
			bySelector[b.Selector] = append(bySelector[b.Selector], sub)
		}
	}
}

// remove drops every binding belonging to id. Called on Unregister so a
// destroyed entity stops receiving events.
func (idx *subscriberIndex) remove(id event.EntityID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	filter := func(subs []subscriber) []subscriber {
		out := subs[:0:0]
		for _, s := range subs {
			if s.entityID != id {
				out = append(out, s)
			}
		}
		return out
	}

	idx.timeUpdated = filter(idx.timeUpdated)
	idx.shutdown = filter(idx.shutdown)
	for name, subs := range idx.named {
		idx.named[name] = filter(subs)
	}
	for kind, bySelector := range idx.byEntityKind {
		for selector, subs := range bySelector {
			idx.byEntityKind[kind][selector] = filter(subs)
		}
		_ = kind
	}
}

// lookup returns the candidate subscribers for a classified event.
func (idx *subscriberIndex) lookup(kind entity.HandlerKind, selector string, eventName string) []subscriber {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	switch kind {
	case entity.HandlerTimeUpdated:
		return append([]subscriber(nil), idx.timeUpdated...)
	case entity.HandlerShutdown:
		return append([]subscriber(nil), idx.shutdown...)
	case entity.HandlerNamedEvent:
		return append([]subscriber(nil), idx.named[eventName]...)
	default:
		return append([]subscriber(nil), idx.byEntityKind[kind][selector]...)
	}
}
