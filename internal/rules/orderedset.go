package rules

// OrderedSet is an insertion-ordered set of strings. Empty strings are never
// stored.
type OrderedSet struct {
	items []string
	index map[string]struct{}
}

// NewOrderedSet creates a set holding values in first-occurrence order.
func NewOrderedSet(values ...string) *OrderedSet {
	s := &OrderedSet{index: make(map[string]struct{}, len(values))}
	s.Add(values...)
	return s
}

// Add appends every value not already present.
func (s *OrderedSet) Add(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := s.index[v]; ok {
			continue
		}
		s.index[v] = struct{}{}
		s.items = append(s.items, v)
	}
}

// Has reports whether v is in the set.
func (s *OrderedSet) Has(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of elements.
func (s *OrderedSet) Len() int {
	return len(s.items)
}

// Values returns a copy of the elements in insertion order. The result is
// never nil so it encodes as an empty JSON array.
func (s *OrderedSet) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Dedupe returns values without duplicates or empty strings, preserving
// first-occurrence order.
func Dedupe(values []string) []string {
	return NewOrderedSet(values...).Values()
}
