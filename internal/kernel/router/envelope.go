package router

import "github.com/scarab-sim/scarab/internal/kernel/event"

// envelope builds the JSON-ready map for an event's wire frame. A user
// event's payload replaces the envelope's top-level fields entirely except
// for event_name and sim_time, which are always present — so the envelope
// is just the payload with those two keys layered on top. The four system
// event families already carry everything they need in their payload
// (entity, changed_properties, previous_time), so no per-kind special-casing
// is needed here.
func envelope(ev event.Event) map[string]any {
	out := make(map[string]any, len(ev.Payload)+2)
	for k, v := range ev.Payload {
		out[k] = v
	}
	out["event_name"] = ev.Name
	out["sim_time"] = ev.SimTime
	return out
}
