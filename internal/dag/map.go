package dag

// Set is a collection of unique node IDs.
type Set map[string]struct{}

// NewSet returns a Set containing the given IDs.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts an ID into the set.
func (s Set) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether the set contains the given ID.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// ContainsAll reports whether every ID in other is also in s.
func (s Set) ContainsAll(other Set) bool {
	for id := range other {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Map is a dependency mapping from a node ID to the set of node IDs it
// depends on.
type Map map[string]Set

// Invert derives the reverse mapping: out[dep] contains every node that
// depends on dep. It is a pure function of its input; callers that need the
// inverted view of a live dependency map should recompute it at the point of
// use rather than cache a possibly stale copy.
func Invert(m Map) Map {
	inverted := make(Map)
	for id, deps := range m {
		for dep := range deps {
			if _, ok := inverted[dep]; !ok {
				inverted[dep] = make(Set)
			}
			inverted[dep].Add(id)
		}
	}
	return inverted
}
