// Package router implements the central event dispatcher: it looks up
// subscribers for a given event, applies target-id filtering, invokes
// handlers in stable registration order, and catches and logs per-handler
// failures without aborting the tick.
package router

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/scarab-sim/scarab/internal/kernel/clock"
	"github.com/scarab-sim/scarab/internal/kernel/entity"
	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/kernel/kerr"
	"github.com/scarab-sim/scarab/internal/kernel/snapshot"
	"github.com/scarab-sim/scarab/internal/observability/log"
)

// Observer receives every event the Router dispatches, already serialized
// to JSON once on the dispatch thread — grounded on the teacher's
// EventBusObserver hook in internal/core/events/bus. The Control Server and
// the optional Event Logger both implement this.
type Observer interface {
	Observe(ev event.Event, payload []byte)
}

var _ entity.EventSender = (*Router)(nil)

// Router owns the subscriber index and holds non-owning references to the
// Registry, Queue, and Clock it coordinates between — Simulation owns all
// of these; Router just wires them together, matching the one-directional
// ownership the design notes call for.
type Router struct {
	registry *entity.Registry
	queue    *event.Queue
	clk      *clock.Clock
	log      log.Log

	index *subscriberIndex

	obsMu     sync.RWMutex
	observers []Observer
}

func New(registry *entity.Registry, queue *event.Queue, clk *clock.Clock, logger log.Log) *Router {
	return &Router{
		registry: registry,
		queue:    queue,
		clk:      clk,
		log:      logger.With(log.String("component", "router")),
		index:    newSubscriberIndex(),
	}
}

// AddObserver registers a new broadcast/log destination. Not safe to call
// concurrently with dispatch once it matters which events an observer
// misses — in practice this is called once at wiring time, before Run.
func (r *Router) AddObserver(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Register assigns e an id, indexes its handler bindings, and synthesizes
// a scarab.entity.created event at the current sim time.
func (r *Router) Register(e entity.Entity) (event.EntityID, error) {
	id, err := r.registry.Register(e)
	if err != nil {
		return "", err
	}

	desc, _ := r.registry.Get(id)
	r.index.add(id, desc.Handlers)

	view, _ := r.registry.View(id)
	created := event.Event{
		Name:    event.NameEntityCreated,
		SimTime: r.clk.Now(),
		Payload: map[string]any{"entity": view},
	}
	if err := r.queue.Push(created); err != nil {
		return id, err
	}
	return id, nil
}

// Unregister removes an entity's descriptor and synthesizes a
// scarab.entity.destroyed event carrying its last-known view.
func (r *Router) Unregister(id event.EntityID) error {
	view, hadView := r.registry.View(id)

	if _, err := r.registry.Unregister(id); err != nil {
		return err
	}
	r.index.remove(id)

	if hadView {
		destroyed := event.Event{
			Name:    event.NameEntityDestroyed,
			SimTime: r.clk.Now(),
			Payload: map[string]any{"entity": view},
		}
		return r.queue.Push(destroyed)
	}
	return nil
}

// Send enqueues ev onto the queue at its declared sim time, defaulting to
// now if the caller left SimTime unset. This is the cascaded, "now"-timed
// send path; Simulation.SendEvent wraps it with the externally-submitted
// "next tick" default described in the design notes.
func (r *Router) Send(ev event.Event) error {
	if ev.SimTime == 0 {
		ev.SimTime = r.clk.Now()
	}
	return r.queue.Push(ev)
}

// DispatchDue drains every event due at or before now, including any
// change events cascaded during handler invocation — it keeps draining
// until the queue has nothing left at or before now, so same-tick cascades
// are fully resolved before the run loop advances.
func (r *Router) DispatchDue(now clock.SimTime) {
	for {
		due := r.queue.DrainDue(now)
		if len(due) == 0 {
			return
		}
		for _, ev := range due {
			r.dispatchOne(ev)
		}
	}
}

func (r *Router) dispatchOne(ev event.Event) {
	kind, selector := classify(ev)
	subs := r.index.lookup(kind, selector, ev.Name)

	if ev.HasTarget() {
		subs = filterByTarget(subs, ev.TargetID)
		if len(subs) == 0 {
			r.log.Debug("targeted event matched no subscriber",
				log.String("event_name", ev.Name), log.String("target_id", string(ev.TargetID)))
		}
	}

	for _, sub := range subs {
		r.invoke(ev, sub)
	}

	r.broadcast(ev)
}

func (r *Router) invoke(ev event.Event, sub subscriber) {
	before, hadBefore := r.registry.Snapshot(sub.entityID)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logFault(ev, sub.entityID, recoveredAsError(rec))
			}
		}()
		if err := sub.binding.Invoke(ev, r); err != nil {
			r.logFault(ev, sub.entityID, err)
		}
	}()

	if !hadBefore {
		return
	}
	after, stillExists := r.registry.Snapshot(sub.entityID)
	if !stillExists {
		return
	}

	changedNames := snapshot.Diff(before, after)
	if len(changedNames) == 0 {
		return
	}

	view, ok := r.registry.View(sub.entityID)
	if !ok {
		return
	}
	changed := event.Event{
		Name:    event.NameEntityChanged,
		SimTime: ev.SimTime,
		Payload: map[string]any{"entity": view, "changed_properties": changedNames},
	}
	if err := r.queue.Push(changed); err != nil {
		r.log.Error("failed to enqueue cascaded change event", log.Error(err))
	}
}

func (r *Router) logFault(ev event.Event, id event.EntityID, cause error) {
	fault := &kerr.HandlerFault{EventName: ev.Name, EntityID: string(id), Cause: cause}
	r.log.Error("handler fault", log.Error(fault))
}

func (r *Router) broadcast(ev event.Event) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()
	if len(observers) == 0 {
		return
	}

	data, err := json.Marshal(envelope(ev))
	if err != nil {
		r.log.Error("failed to marshal event envelope", log.Error(err), log.String("event_name", ev.Name))
		return
	}

	for _, obs := range observers {
		obs.Observe(ev, data)
	}
}

func filterByTarget(subs []subscriber, target event.EntityID) []subscriber {
	out := make([]subscriber, 0, len(subs))
	for _, s := range subs {
		if s.entityID == target {
			out = append(out, s)
		}
	}
	return out
}

// classify maps a wire event name to its handler kind and, for entity-kind
// bindings, the scarab_name selector carried in its payload.
func classify(ev event.Event) (entity.HandlerKind, string) {
	switch ev.Name {
	case event.NameTimeUpdated:
		return entity.HandlerTimeUpdated, ""
	case event.NameSimulationShutdown:
		return entity.HandlerShutdown, ""
	case event.NameEntityCreated:
		return entity.HandlerCreated, selectorOf(ev)
	case event.NameEntityChanged:
		return entity.HandlerChanged, selectorOf(ev)
	case event.NameEntityDestroyed:
		return entity.HandlerDestroyed, selectorOf(ev)
	default:
		return entity.HandlerNamedEvent, ev.Name
	}
}

func selectorOf(ev event.Event) string {
	if v, ok := ev.Payload["entity"].(entity.View); ok {
		return v.ScarabName
	}
	return ""
}

func recoveredAsError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("handler panicked: %v", rec)
}
