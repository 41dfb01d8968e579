package engine

import (
	"slices"
	"sync/atomic"

	"github.com/samber/lo"
)

// NameSet is a set of weird names matched exactly. It is replaced
// wholesale, so readers never observe a partially applied update.
type NameSet struct {
	names atomic.Pointer[map[string]struct{}]
}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) *NameSet {
	s := &NameSet{}
	s.Replace(names)
	return s
}

// Contains is a pure membership test.
func (s *NameSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	current := s.names.Load()
	if current == nil {
		return false
	}
	_, ok := (*current)[name]
	return ok
}

// Replace swaps in a new set. Empty input clears the set. Names are kept
// verbatim; only empty strings are dropped.
func (s *NameSet) Replace(names []string) {
	cleaned := lo.Uniq(lo.Compact(names))

	next := make(map[string]struct{}, len(cleaned))
	for _, name := range cleaned {
		next[name] = struct{}{}
	}
	s.names.Store(&next)
}

// List returns a sorted snapshot of the set.
func (s *NameSet) List() []string {
	if s == nil {
		return []string{}
	}
	current := s.names.Load()
	if current == nil {
		return []string{}
	}
	names := lo.Keys(*current)
	slices.Sort(names)
	return names
}

// Len returns the number of names in the set.
func (s *NameSet) Len() int {
	if s == nil {
		return 0
	}
	current := s.names.Load()
	if current == nil {
		return 0
	}
	return len(*current)
}
