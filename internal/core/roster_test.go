package core

import (
	"testing"
	"time"
)

func TestRosterKeepsRegistrationOrder(t *testing.T) {
	r := NewRoster()
	at := time.Unix(100, 0)
	r.Register("a", "Alice", at)
	r.Register("b", "Bob", at.Add(time.Second))
	r.Register("c", "Carol", at.Add(2*time.Second))

	renamed := r.Register("a", "Alicia", at.Add(time.Hour))
	if renamed.Name != "Alicia" || !renamed.ConnectedAt.Equal(at) {
		t.Fatalf("rename should keep ConnectedAt: %+v", renamed)
	}

	if _, ok := r.Remove("b"); !ok {
		t.Fatalf("expected b to be removed")
	}
	if _, ok := r.Remove("b"); ok {
		t.Fatalf("second remove should report false")
	}

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "Alicia" || snap[1].Name != "Carol" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}

	snap[0].Name = "mutated"
	if s, _ := r.Get("a"); s.Name != "Alicia" {
		t.Fatalf("snapshot must not alias roster entries")
	}
}
