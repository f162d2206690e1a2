package entity

import (
	"encoding/json"
	"testing"

	"github.com/scarab-sim/scarab/internal/kernel/event"
)

func TestViewMarshalInjectsMandatoryKeys(t *testing.T) {
	v := View{
		ScarabName: "sensor",
		ScarabID:   event.EntityID("abc-123"),
		Properties: map[string]any{"temp": float64(70)},
	}

	data, err := v.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["scarab_name"] != "sensor" {
		t.Fatalf("expected scarab_name injected, got %+v", raw)
	}
	if raw["scarab_id"] != "abc-123" {
		t.Fatalf("expected scarab_id injected, got %+v", raw)
	}
	if raw["temp"] != float64(70) {
		t.Fatalf("expected property preserved, got %+v", raw)
	}
}

func TestViewRoundTrip(t *testing.T) {
	original := View{
		ScarabName: "sensor",
		ScarabID:   event.EntityID("abc-123"),
		ConformsTo: "Thermometer",
		Properties: map[string]any{"temp": float64(70)},
	}

	data, err := original.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	var restored View
	if err := restored.Deserialize(data); err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if restored.ScarabName != original.ScarabName {
		t.Fatalf("expected scarab name to round-trip, got %q", restored.ScarabName)
	}
	if restored.ScarabID != original.ScarabID {
		t.Fatalf("expected scarab id to round-trip, got %q", restored.ScarabID)
	}
	if restored.ConformsTo != original.ConformsTo {
		t.Fatalf("expected conforms_to to round-trip, got %q", restored.ConformsTo)
	}
	if restored.Properties["temp"] != float64(70) {
		t.Fatalf("expected temp property to round-trip, got %+v", restored.Properties)
	}
}
