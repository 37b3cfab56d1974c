// Package output persists captured unit output to destination files.
// Destinations are exclusive per unit by default; units that declare a
// destination shared get their writes serialized instead.
package output

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
)

type claim struct {
	mutex  sync.Mutex // serializes writes to this destination
	shared bool
	owner  string
}

// Registry arbitrates output destinations between units
type Registry struct {
	mutex  sync.Mutex
	claims map[string]*claim
}

func NewRegistry() *Registry {
	return &Registry{
		claims: make(map[string]*claim),
	}
}

// Claim reserves a destination for a unit. A second claim of the same
// path is a conflict unless every claimant declared it shared.
func (r *Registry) Claim(unitName, destination string, shared bool) error {
	if destination == "" {
		return errors.NewValidationError("output destination cannot be empty", nil).
			WithContext("unit_name", unitName)
	}

	path := filepath.Clean(destination)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.claims[path]; ok {
		if !existing.shared || !shared {
			return errors.NewConflictError("output destination already claimed", nil).
				WithContext("unit_name", unitName).
				WithContext("destination", path).
				WithContext("claimed_by", existing.owner)
		}
		return nil
	}

	r.claims[path] = &claim{
		shared: shared,
		owner:  unitName,
	}
	return nil
}

// CheckWritable verifies the destination's parent directory exists.
// This is the activation precondition; actual writability surfaces as a
// write error later.
func (r *Registry) CheckWritable(destination string) error {
	parent := filepath.Dir(filepath.Clean(destination))

	info, err := os.Stat(parent)
	if err != nil {
		return errors.NewIOError("output destination parent directory does not exist", err).
			WithContext("destination", destination)
	}
	if !info.IsDir() {
		return errors.NewIOError("output destination parent is not a directory", nil).
			WithContext("destination", destination)
	}
	return nil
}

// Write persists data to the destination, serialized against other
// writers of the same path. Truncates unless appendMode is set.
func (r *Registry) Write(destination string, data []byte, appendMode bool) error {
	path := filepath.Clean(destination)

	r.mutex.Lock()
	destinationClaim, ok := r.claims[path]
	if !ok {
		// Unclaimed writes still get per-path serialization
		destinationClaim = &claim{owner: "unclaimed"}
		r.claims[path] = destinationClaim
	}
	r.mutex.Unlock()

	destinationClaim.mutex.Lock()
	defer destinationClaim.mutex.Unlock()

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.NewIOError("failed to open output destination", err).
			WithContext("destination", path)
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()

	if writeErr != nil {
		return errors.NewIOError("failed to write output destination", writeErr).
			WithContext("destination", path)
	}
	if closeErr != nil {
		return errors.NewIOError("failed to close output destination", closeErr).
			WithContext("destination", path)
	}
	return nil
}
