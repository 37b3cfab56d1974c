package store

import (
	"fmt"
	"testing"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(name string) units.UnitDescriptor {
	return units.UnitDescriptor{
		Name:      name,
		RunPolicy: units.RunPolicyOnce,
		Command:   "/usr/bin/true",
		Output: units.OutputConfig{
			Destination: fmt.Sprintf("/tmp/%s.txt", name),
		},
	}
}

func TestStore_Register(t *testing.T) {
	t.Run("valid_descriptor", func(t *testing.T) {
		s := NewStore()

		err := s.Register(testDescriptor("device-info"))

		assert.NoError(t, err)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("duplicate_name", func(t *testing.T) {
		s := NewStore()

		err1 := s.Register(testDescriptor("device-info"))
		err2 := s.Register(testDescriptor("device-info"))

		assert.NoError(t, err1)
		require.Error(t, err2)
		assert.True(t, errors.IsConflictError(err2), "expected ConflictError but got: %v", err2)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("invalid_descriptor", func(t *testing.T) {
		s := NewStore()

		descriptor := testDescriptor("bad")
		descriptor.Command = ""

		err := s.Register(descriptor)
		assert.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Equal(t, 0, s.Len())
	})
}

func TestStore_Get(t *testing.T) {
	t.Run("existing_unit", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Register(testDescriptor("device-info")))

		descriptor, err := s.Get("device-info")

		require.NoError(t, err)
		assert.Equal(t, "device-info", descriptor.Name)
		assert.Equal(t, "/usr/bin/true", descriptor.Command)
	})

	t.Run("missing_unit", func(t *testing.T) {
		s := NewStore()

		_, err := s.Get("nonexistent")

		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})
}

func TestStore_NamesAndAll(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(testDescriptor("b-unit")))
	require.NoError(t, s.Register(testDescriptor("a-unit")))
	require.NoError(t, s.Register(testDescriptor("c-unit")))

	assert.Equal(t, []string{"a-unit", "b-unit", "c-unit"}, s.Names())

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a-unit", all[0].Name)
	assert.Equal(t, "c-unit", all[2].Name)
}

func TestStore_ConcurrentRegister(t *testing.T) {
	s := NewStore()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(id int) {
			done <- s.Register(testDescriptor(fmt.Sprintf("unit-%d", id)))
		}(i)
	}

	for i := 0; i < 20; i++ {
		assert.NoError(t, <-done)
	}
	assert.Equal(t, 20, s.Len())
}
