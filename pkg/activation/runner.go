// Package activation executes a unit's command exactly once, captures
// its combined output, and persists it to the unit's destination.
package activation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
	"github.com/core-tools/hsu-oneshot/pkg/output"
	"github.com/core-tools/hsu-oneshot/pkg/process"
	"github.com/core-tools/hsu-oneshot/pkg/units"

	"github.com/google/uuid"
)

// ActivationFailure reports a failed activation together with the unit
// it belongs to. The cause keeps its domain error type (spawn, exit,
// io), so callers can distinguish failure kinds.
type ActivationFailure struct {
	UnitName string
	Cause    error
}

func (e *ActivationFailure) Error() string {
	return fmt.Sprintf("activation failed, unit: %s: %v", e.UnitName, e.Cause)
}

func (e *ActivationFailure) Unwrap() error {
	return e.Cause
}

// Result records the outcome of one activation attempt
type Result struct {
	UnitName    string
	AttemptID   string
	StartTime   time.Time
	Duration    time.Duration
	OutputBytes int
	Err         error
}

// Runner activates unit descriptors. A RunOnce unit gets exactly one
// execution attempt per Runner lifetime; repeated Activate calls return
// the recorded result without re-running.
type Runner struct {
	commandRunner process.CommandRunner
	outputs       *output.Registry
	logger        logging.Logger

	mutex   sync.Mutex
	results map[string]*Result
}

func NewRunner(commandRunner process.CommandRunner, outputs *output.Registry, logger logging.Logger) *Runner {
	return &Runner{
		commandRunner: commandRunner,
		outputs:       outputs,
		logger:        logger,
		results:       make(map[string]*Result),
	}
}

// Activate runs the descriptor's command if its ordering dependencies
// are satisfied.
//
// An unsatisfied dependency returns an ordering error: the unit is
// deferred, not failed, and the caller retries later. Any other error is
// an ActivationFailure and is terminal for the unit.
func (r *Runner) Activate(ctx context.Context, descriptor units.UnitDescriptor, completed *CompletedSet) (Result, error) {
	if ctx == nil {
		return Result{}, errors.NewValidationError("context cannot be nil", nil)
	}

	name := descriptor.Name

	if missing := completed.Missing(descriptor.Dependencies()); len(missing) > 0 {
		return Result{}, errors.NewOrderingError(
			"ordering dependencies not yet completed: "+strings.Join(missing, ", "), nil).
			WithContext("unit_name", name)
	}

	// Exactly-once guard: claim the attempt slot under lock, run outside it
	r.mutex.Lock()
	if previous, attempted := r.results[name]; attempted {
		if descriptor.RunPolicy == units.RunPolicyOnce {
			r.mutex.Unlock()
			r.logger.Debugf("Skipping re-activation of one-shot unit, name: %s", name)
			return *previous, previous.Err
		}
	}
	result := &Result{
		UnitName:  name,
		AttemptID: uuid.NewString(),
		StartTime: time.Now(),
	}
	r.results[name] = result
	r.mutex.Unlock()

	r.logger.Infof("Activating unit, name: %s, attempt: %s, command: %s", name, result.AttemptID, descriptor.Command)

	outputBytes, err := r.activate(ctx, descriptor)
	duration := time.Since(result.StartTime)

	// The pointer is already published in the results map; the final
	// fields are written under the same lock Result reads them with
	r.mutex.Lock()
	result.OutputBytes = outputBytes
	result.Duration = duration
	if err != nil {
		result.Err = &ActivationFailure{UnitName: name, Cause: err}
	}
	finished := *result
	r.mutex.Unlock()

	if finished.Err != nil {
		r.logger.Errorf("Unit activation failed, name: %s, attempt: %s, error: %v", name, finished.AttemptID, err)
		return finished, finished.Err
	}

	completed.Mark(name)
	r.logger.Infof("Unit activated successfully, name: %s, attempt: %s, output bytes: %d, duration: %s",
		name, finished.AttemptID, finished.OutputBytes, finished.Duration)
	return finished, nil
}

func (r *Runner) activate(ctx context.Context, descriptor units.UnitDescriptor) (int, error) {
	// Destination precondition, checked before spawning
	if err := r.outputs.CheckWritable(descriptor.Output.Destination); err != nil {
		return 0, err
	}

	outputData, err := r.commandRunner.Run(ctx, process.ExecSpec{
		Command:          descriptor.Command,
		Args:             descriptor.Args,
		WorkingDirectory: descriptor.WorkingDirectory,
		Environment:      descriptor.Environment,
		RunAsUser:        descriptor.RunAsUser,
	})
	if err != nil {
		return len(outputData), err
	}

	// Capture succeeded but persistence failed is surfaced distinctly
	// from exit failure
	if err := r.outputs.Write(descriptor.Output.Destination, outputData, descriptor.Output.Append); err != nil {
		return len(outputData), err
	}

	return len(outputData), nil
}

// Result returns the recorded result for a unit, if it was attempted
func (r *Runner) Result(name string) (Result, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	result, ok := r.results[name]
	if !ok {
		return Result{}, false
	}
	return *result, true
}
