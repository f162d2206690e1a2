package event

import "testing"

func TestHasTarget(t *testing.T) {
	if (Event{}).HasTarget() {
		t.Fatalf("zero-value event should have no target")
	}
	if !(Event{TargetID: "abc"}).HasTarget() {
		t.Fatalf("event with TargetID set should report HasTarget")
	}
}
