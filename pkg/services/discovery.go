package services

// DiscoverySet is an insertion-ordered, de-duplicated record of asset URLs
// encountered while normalizing chapters. First discovery wins the position;
// stylesheet numbering and cover selection are both built on those positions.
//
// Writes happen only during the sequential crawl phase; the parallel asset
// phase reads the frozen set. No locking is needed as long as that holds.
type DiscoverySet struct {
	index map[string]int
	items []string
}

func NewDiscoverySet() *DiscoverySet {
	return &DiscoverySet{index: make(map[string]int)}
}

// Add records v and returns its zero-based position. isNew is false when v
// was discovered before; the original position is kept.
func (s *DiscoverySet) Add(v string) (pos int, isNew bool) {
	if pos, ok := s.index[v]; ok {
		return pos, false
	}
	pos = len(s.items)
	s.index[v] = pos
	s.items = append(s.items, v)
	return pos, true
}

func (s *DiscoverySet) Len() int { return len(s.items) }

// Items returns the discovery order. The returned slice is a copy.
func (s *DiscoverySet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// First returns the first discovered entry, or "" when nothing was found.
func (s *DiscoverySet) First() string {
	if len(s.items) == 0 {
		return ""
	}
	return s.items[0]
}
