package event

import "testing"

func TestDrainDueOrdersBySimTimeThenSequence(t *testing.T) {
	q := NewQueue()
	_ = q.Push(Event{Name: "b", SimTime: 5})
	_ = q.Push(Event{Name: "a", SimTime: 5})
	_ = q.Push(Event{Name: "early", SimTime: 2})
	_ = q.Push(Event{Name: "late", SimTime: 10})

	due := q.DrainDue(5)
	if len(due) != 3 {
		t.Fatalf("expected 3 due events, got %d", len(due))
	}
	want := []string{"early", "b", "a"}
	for i, name := range want {
		if due[i].Name != name {
			t.Fatalf("position %d: expected %q, got %q", i, name, due[i].Name)
		}
	}

	if _, ok := q.PeekNextTime(); !ok {
		t.Fatalf("expected a remaining event")
	}
	rest := q.DrainDue(10)
	if len(rest) != 1 || rest[0].Name != "late" {
		t.Fatalf("expected only 'late' remaining, got %+v", rest)
	}
}

func TestDrainDueEmptyQueue(t *testing.T) {
	q := NewQueue()
	if due := q.DrainDue(100); len(due) != 0 {
		t.Fatalf("expected no events, got %d", len(due))
	}
	if _, ok := q.PeekNextTime(); ok {
		t.Fatalf("expected no next time on empty queue")
	}
}

func TestLenTracksPendingEvents(t *testing.T) {
	q := NewQueue()
	_ = q.Push(Event{Name: "x", SimTime: 1})
	_ = q.Push(Event{Name: "y", SimTime: 2})
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	q.DrainDue(1)
	if q.Len() != 1 {
		t.Fatalf("expected len 1 after draining, got %d", q.Len())
	}
}
