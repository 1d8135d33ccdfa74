package session

import "testing"

func ev(dst string) *Event {
	return &Event{DstIP: dst}
}

func TestWindowAppendBelowCapacity(t *testing.T) {
	w := newEventWindow(5)
	w.Append(ev("a"))
	w.Append(ev("b"))

	if w.Len() != 2 {
		t.Errorf("Expected len 2, got %d", w.Len())
	}
	if w.Cap() != 5 {
		t.Errorf("Expected cap 5, got %d", w.Cap())
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := newEventWindow(3)
	for _, d := range []string{"a", "b", "c", "d", "e"} {
		w.Append(ev(d))
	}

	if w.Len() != 3 {
		t.Fatalf("Expected len 3, got %d", w.Len())
	}

	got := w.Recent(3)
	want := []string{"c", "d", "e"}
	for i := range want {
		if got[i].DstIP != want[i] {
			t.Errorf("Recent[%d]: expected %s, got %s", i, want[i], got[i].DstIP)
		}
	}
}

func TestWindowRecentPartial(t *testing.T) {
	w := newEventWindow(10)
	for _, d := range []string{"a", "b", "c", "d"} {
		w.Append(ev(d))
	}

	got := w.Recent(2)
	if len(got) != 2 || got[0].DstIP != "c" || got[1].DstIP != "d" {
		t.Errorf("Expected [c d], got %v", got)
	}
}

func TestWindowRecentMoreThanStored(t *testing.T) {
	w := newEventWindow(10)
	w.Append(ev("a"))

	got := w.Recent(50)
	if len(got) != 1 || got[0].DstIP != "a" {
		t.Errorf("Expected [a], got %v", got)
	}
}

func TestWindowRecentAfterWrap(t *testing.T) {
	w := newEventWindow(4)
	for i := 0; i < 10; i++ {
		w.Append(ev(string(rune('a' + i))))
	}

	got := w.Recent(4)
	want := []string{"g", "h", "i", "j"}
	for i := range want {
		if got[i].DstIP != want[i] {
			t.Errorf("Recent[%d]: expected %s, got %s", i, want[i], got[i].DstIP)
		}
	}
}
