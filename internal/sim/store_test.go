package sim

import (
	"fmt"
	"testing"
)

func storeWith(n int) (*Store, []*Element) {
	s := NewStore()
	var els []*Element
	for i := 0; i < n; i++ {
		e := &Element{ID: fmt.Sprintf("e%d", i), Kind: KindPlant}
		s.Add(e)
		els = append(els, e)
	}
	return s, els
}

func TestStore_CompactPreservesOrder(t *testing.T) {
	s, els := storeWith(5)

	s.Mark(els[1].ID)
	s.Mark(els[3].ID)
	s.Mark(els[3].ID) // idempotent

	removed := s.Compact()
	if len(removed) != 2 || removed[0].ID != "e1" || removed[1].ID != "e3" {
		t.Fatalf("removed: %v", ids(removed))
	}
	if got := ids(s.All()); len(got) != 3 || got[0] != "e0" || got[1] != "e2" || got[2] != "e4" {
		t.Fatalf("kept: %v", got)
	}
	// Index stays consistent after compaction.
	for _, e := range s.All() {
		if s.Get(e.ID) != e {
			t.Fatalf("index broken for %s", e.ID)
		}
	}
	if s.Get("e1") != nil {
		t.Fatal("removed element still reachable")
	}
}

func TestStore_AliveReflectsMarks(t *testing.T) {
	s, els := storeWith(2)
	if !s.Alive(els[0].ID) {
		t.Fatal("fresh element not alive")
	}
	s.Mark(els[0].ID)
	if s.Alive(els[0].ID) {
		t.Fatal("marked element still alive")
	}
	if s.Alive("missing") {
		t.Fatal("unknown id alive")
	}
	s.Mark("missing") // no-op
	if got := len(s.Compact()); got != 1 {
		t.Fatalf("compact removed %d, want 1", got)
	}
}

func TestStore_CompactWithoutMarksIsCheap(t *testing.T) {
	s, _ := storeWith(3)
	if removed := s.Compact(); removed != nil {
		t.Fatalf("unexpected removals: %v", ids(removed))
	}
	if s.Len() != 3 {
		t.Fatalf("len: got %d want 3", s.Len())
	}
}

func ids(els []*Element) []string {
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.ID
	}
	return out
}
