package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/core-tools/hsu-oneshot/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Claim(t *testing.T) {
	t.Run("exclusive_by_default", func(t *testing.T) {
		registry := NewRegistry()

		err1 := registry.Claim("unit-a", "/tmp/out.txt", false)
		err2 := registry.Claim("unit-b", "/tmp/out.txt", false)

		assert.NoError(t, err1)
		require.Error(t, err2)
		assert.True(t, errors.IsConflictError(err2))
	})

	t.Run("shared_when_all_declare_shared", func(t *testing.T) {
		registry := NewRegistry()

		assert.NoError(t, registry.Claim("unit-a", "/tmp/shared.txt", true))
		assert.NoError(t, registry.Claim("unit-b", "/tmp/shared.txt", true))
	})

	t.Run("shared_vs_exclusive_conflicts", func(t *testing.T) {
		registry := NewRegistry()

		assert.NoError(t, registry.Claim("unit-a", "/tmp/mixed.txt", true))
		err := registry.Claim("unit-b", "/tmp/mixed.txt", false)
		assert.True(t, errors.IsConflictError(err))
	})

	t.Run("equivalent_paths_conflict", func(t *testing.T) {
		registry := NewRegistry()

		assert.NoError(t, registry.Claim("unit-a", "/tmp/logs/out.txt", false))
		err := registry.Claim("unit-b", "/tmp/logs/../logs/out.txt", false)
		assert.True(t, errors.IsConflictError(err))
	})

	t.Run("distinct_paths_coexist", func(t *testing.T) {
		registry := NewRegistry()

		assert.NoError(t, registry.Claim("unit-a", "/tmp/a.txt", false))
		assert.NoError(t, registry.Claim("unit-b", "/tmp/b.txt", false))
	})

	t.Run("empty_destination", func(t *testing.T) {
		registry := NewRegistry()

		err := registry.Claim("unit-a", "", false)
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestRegistry_CheckWritable(t *testing.T) {
	registry := NewRegistry()

	t.Run("existing_parent", func(t *testing.T) {
		dir := t.TempDir()
		assert.NoError(t, registry.CheckWritable(filepath.Join(dir, "out.txt")))
	})

	t.Run("missing_parent", func(t *testing.T) {
		err := registry.CheckWritable("/nonexistent-parent-dir/out.txt")
		require.Error(t, err)
		assert.True(t, errors.IsIOError(err))
	})

	t.Run("parent_is_a_file", func(t *testing.T) {
		dir := t.TempDir()
		fileParent := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(fileParent, []byte("x"), 0o644))

		err := registry.CheckWritable(filepath.Join(fileParent, "out.txt"))
		require.Error(t, err)
		assert.True(t, errors.IsIOError(err))
	})
}

func TestRegistry_Write(t *testing.T) {
	t.Run("truncate_mode", func(t *testing.T) {
		registry := NewRegistry()
		destination := filepath.Join(t.TempDir(), "device-info.txt")

		require.NoError(t, registry.Write(destination, []byte("old contents\n"), false))
		require.NoError(t, registry.Write(destination, []byte("device: X1\n"), false))

		data, err := os.ReadFile(destination)
		require.NoError(t, err)
		assert.Equal(t, "device: X1\n", string(data))
	})

	t.Run("append_mode", func(t *testing.T) {
		registry := NewRegistry()
		destination := filepath.Join(t.TempDir(), "log.txt")

		require.NoError(t, registry.Write(destination, []byte("first\n"), true))
		require.NoError(t, registry.Write(destination, []byte("second\n"), true))

		data, err := os.ReadFile(destination)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", string(data))
	})

	t.Run("missing_parent_fails", func(t *testing.T) {
		registry := NewRegistry()

		err := registry.Write("/nonexistent-parent-dir/out.txt", []byte("x"), false)
		require.Error(t, err)
		assert.True(t, errors.IsIOError(err))
	})
}

func TestRegistry_ConcurrentSharedWrites(t *testing.T) {
	registry := NewRegistry()
	destination := filepath.Join(t.TempDir(), "shared.txt")

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			line := fmt.Sprintf("writer %d\n", id)
			assert.NoError(t, registry.Write(destination, []byte(line), true))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(destination)
	require.NoError(t, err)

	// Serialized appends: every line intact, one per writer
	assert.Equal(t, writers, len(splitLines(string(data))))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}
