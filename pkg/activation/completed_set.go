package activation

import (
	"sort"
	"sync"
)

// CompletedSet tracks the unit and event names that have reached
// completion in the current activation epoch. Ordering readiness is
// evaluated against this set.
type CompletedSet struct {
	mutex  sync.Mutex
	events map[string]struct{}
}

func NewCompletedSet() *CompletedSet {
	return &CompletedSet{
		events: make(map[string]struct{}),
	}
}

// Mark records an event as completed
func (s *CompletedSet) Mark(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events[name] = struct{}{}
}

// Contains reports whether an event has completed
func (s *CompletedSet) Contains(name string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.events[name]
	return ok
}

// Missing returns the subset of names not yet completed, in input order
func (s *CompletedSet) Missing(names []string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var missing []string
	for _, name := range names {
		if _, ok := s.events[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Names returns all completed event names, sorted
func (s *CompletedSet) Names() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	names := make([]string, 0, len(s.events))
	for name := range s.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
