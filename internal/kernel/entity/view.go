package entity

import (
	"encoding/json"

	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/pkg/encoding"
)

var _ encoding.Serializable[View] = &View{}

const (
	viewKeyName       = "scarab_name"
	viewKeyID         = "scarab_id"
	viewKeyConformsTo = "scarab_conforms_to"
)

// View is the serialised, public-properties projection of an entity that
// flows in created/changed/destroyed events. Go structs can't merge ad-hoc
// fields onto a fixed schema, so View keeps the three mandatory keys as
// typed fields and the public properties in a plain map, and merges them
// into one flat JSON object on marshal — this is the Go-native answer to "EntityView as a public
// properties dict" from the design notes.
//
// View also implements pkg/encoding's Serializable contract via Serialize
// and Deserialize, so it round-trips through the same interface the rest of
// this repo uses for wire payloads.
type View struct {
	ScarabName string
	ScarabID   event.EntityID
	ConformsTo string // empty means no conforms-to tag
	Properties map[string]any
}

func (v View) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Properties)+3)
	for k, val := range v.Properties {
		out[k] = val
	}
	out[viewKeyName] = v.ScarabName
	out[viewKeyID] = string(v.ScarabID)
	if v.ConformsTo == "" {
		out[viewKeyConformsTo] = nil
	} else {
		out[viewKeyConformsTo] = v.ConformsTo
	}
	return json.Marshal(out)
}

func (v *View) UnmarshalJSON(data []byte) error {
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if name, ok := raw[viewKeyName].(string); ok {
		v.ScarabName = name
		delete(raw, viewKeyName)
	}
	if id, ok := raw[viewKeyID].(string); ok {
		v.ScarabID = event.EntityID(id)
		delete(raw, viewKeyID)
	}
	if conforms, ok := raw[viewKeyConformsTo].(string); ok {
		v.ConformsTo = conforms
	}
	delete(raw, viewKeyConformsTo)

	v.Properties = raw
	return nil
}

// Serialize implements pkg/encoding.Serializable[View].
func (v View) Serialize() ([]byte, error) {
	return json.Marshal(v)
}

// Deserialize implements pkg/encoding.Serializable[View].
func (v *View) Deserialize(data []byte) error {
	return json.Unmarshal(data, v)
}
