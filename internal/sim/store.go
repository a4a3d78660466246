package sim

// Store keeps elements in a dense, insertion-ordered slice. Updates mark
// elements for removal instead of splicing mid-iteration; Compact drops the
// marked ones in one pass at the frame boundary.
type Store struct {
	elems  []*Element
	index  map[string]int
	marked map[string]bool
}

func NewStore() *Store {
	return &Store{
		index:  map[string]int{},
		marked: map[string]bool{},
	}
}

func (s *Store) Len() int { return len(s.elems) }

func (s *Store) Add(e *Element) {
	s.index[e.ID] = len(s.elems)
	s.elems = append(s.elems, e)
}

func (s *Store) Get(id string) *Element {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.elems[i]
}

// All exposes the live slice in insertion order. Callers must not append or
// reorder; use Add/Mark/Compact.
func (s *Store) All() []*Element { return s.elems }

// Alive reports whether id is present and not marked for removal.
func (s *Store) Alive(id string) bool {
	_, ok := s.index[id]
	return ok && !s.marked[id]
}

// Mark schedules id for removal at the next Compact. Marking is idempotent.
func (s *Store) Mark(id string) {
	if _, ok := s.index[id]; ok {
		s.marked[id] = true
	}
}

// Compact removes every marked element, preserving insertion order, and
// returns the removed elements in that order.
func (s *Store) Compact() []*Element {
	if len(s.marked) == 0 {
		return nil
	}
	var removed []*Element
	kept := s.elems[:0]
	for _, e := range s.elems {
		if s.marked[e.ID] {
			removed = append(removed, e)
			delete(s.index, e.ID)
			continue
		}
		s.index[e.ID] = len(kept)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.elems); i++ {
		s.elems[i] = nil
	}
	s.elems = kept
	s.marked = map[string]bool{}
	return removed
}

// Clear drops everything.
func (s *Store) Clear() {
	s.elems = nil
	s.index = map[string]int{}
	s.marked = map[string]bool{}
}
