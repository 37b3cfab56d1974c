// Package store holds the closed set of unit descriptors for a process
// run, keyed by name. Registration happens at configuration-load time;
// the set is never mutated afterwards.
package store

import (
	"sort"
	"sync"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/units"
)

type Store struct {
	mutex       sync.Mutex
	descriptors map[string]units.UnitDescriptor
}

func NewStore() *Store {
	return &Store{
		descriptors: make(map[string]units.UnitDescriptor),
	}
}

// Register adds a descriptor to the store. Name reuse is a conflict.
func (s *Store) Register(descriptor units.UnitDescriptor) error {
	if err := units.ValidateDescriptor(descriptor); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.descriptors[descriptor.Name]; exists {
		return errors.NewConflictError("unit already registered", nil).
			WithContext("unit_name", descriptor.Name)
	}

	s.descriptors[descriptor.Name] = descriptor
	return nil
}

// Get returns the descriptor registered under name
func (s *Store) Get(name string) (units.UnitDescriptor, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	descriptor, exists := s.descriptors[name]
	if !exists {
		return units.UnitDescriptor{}, errors.NewNotFoundError("unit not found", nil).
			WithContext("unit_name", name)
	}
	return descriptor, nil
}

// Names returns all registered unit names, sorted
func (s *Store) Names() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	names := make([]string, 0, len(s.descriptors))
	for name := range s.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of every registered descriptor, sorted by name
func (s *Store) All() []units.UnitDescriptor {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	descriptors := make([]units.UnitDescriptor, 0, len(s.descriptors))
	for _, descriptor := range s.descriptors {
		descriptors = append(descriptors, descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Len returns the number of registered units
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.descriptors)
}
