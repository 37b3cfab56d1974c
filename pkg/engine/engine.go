// Package engine drives activation epochs: it owns the descriptor
// store, one state machine per unit, and the activation runner, and it
// re-evaluates readiness until every triggered unit is terminal.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/core-tools/hsu-oneshot/pkg/activation"
	"github.com/core-tools/hsu-oneshot/pkg/activation/unitstate"
	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
	"github.com/core-tools/hsu-oneshot/pkg/output"
	"github.com/core-tools/hsu-oneshot/pkg/process"
	"github.com/core-tools/hsu-oneshot/pkg/store"
	"github.com/core-tools/hsu-oneshot/pkg/units"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

// EngineState represents the current state of the engine
type EngineState string

const (
	EngineStateNotStarted EngineState = "not_started"
	EngineStateRunning    EngineState = "running"
	EngineStateStopped    EngineState = "stopped"
)

// EngineOptions configures an activation epoch
type EngineOptions struct {
	// Targets are the active target events; units whose triggers do not
	// intersect them stay Pending
	Targets []string

	// UnitRoot resolves relative command paths
	UnitRoot string

	// TickInterval is the readiness re-evaluation period
	TickInterval time.Duration

	// StallRounds is how many consecutive no-progress rounds are
	// tolerated before remaining waiting units are failed as
	// unsatisfiable
	StallRounds int

	// MaxConcurrentActivations bounds parallel unit activations;
	// zero means unbounded
	MaxConcurrentActivations int
}

// unitEntry combines a descriptor with its state machine
type unitEntry struct {
	descriptor   units.UnitDescriptor
	stateMachine *unitstate.UnitStateMachine
}

type Engine struct {
	options   EngineOptions
	store     *store.Store
	outputs   *output.Registry
	runner    *activation.Runner
	completed *activation.CompletedSet
	clock     clock.Clock
	logger    logging.Logger

	mutex       sync.Mutex
	entries     map[string]*unitEntry
	engineState EngineState
}

// NewEngine creates an engine with the standard command runner and wall
// clock
func NewEngine(options EngineOptions, logger logging.Logger) *Engine {
	commandRunner := process.NewStdCommandRunner(options.UnitRoot, logger)
	return newEngine(options, commandRunner, clock.New(), logger)
}

func newEngine(options EngineOptions, commandRunner process.CommandRunner, clk clock.Clock, logger logging.Logger) *Engine {
	if len(options.Targets) == 0 {
		options.Targets = []string{"default.target"}
	}
	if options.TickInterval <= 0 {
		options.TickInterval = 500 * time.Millisecond
	}
	if options.StallRounds <= 0 {
		options.StallRounds = 3
	}

	outputs := output.NewRegistry()
	return &Engine{
		options:     options,
		store:       store.NewStore(),
		outputs:     outputs,
		runner:      activation.NewRunner(commandRunner, outputs, logger),
		completed:   activation.NewCompletedSet(),
		clock:       clk,
		logger:      logger,
		entries:     make(map[string]*unitEntry),
		engineState: EngineStateNotStarted,
	}
}

// AddUnit registers a unit descriptor. Registration is the closed
// configuration phase: descriptors are immutable afterwards.
func (e *Engine) AddUnit(descriptor units.UnitDescriptor) error {
	if descriptor.RunPolicy == "" {
		descriptor.RunPolicy = units.RunPolicyOnce
	}

	if err := e.store.Register(descriptor); err != nil {
		return err
	}

	if err := e.outputs.Claim(descriptor.Name, descriptor.Output.Destination, descriptor.Output.Shared); err != nil {
		return err
	}

	e.logger.Infof("Unit registered, name: %s, ordering_after: %v, triggers: %v",
		descriptor.Name, descriptor.OrderingAfter, descriptor.ActivationTriggers)

	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.entries[descriptor.Name] = &unitEntry{
		descriptor:   descriptor,
		stateMachine: unitstate.NewUnitStateMachine(descriptor.Name, logging.NewUnitLogger(descriptor.Name, e.logger)),
	}
	return nil
}

// MarkEventCompleted records an external completion event (a target
// reached outside the engine, or a path condition satisfied)
func (e *Engine) MarkEventCompleted(event string) {
	e.logger.Infof("Event completed, event: %s", event)
	e.completed.Mark(event)
}

// UnitState returns the current activation state of a unit
func (e *Engine) UnitState(name string) (unitstate.UnitState, error) {
	entry, exists := e.getEntry(name)
	if !exists {
		return "", errors.NewNotFoundError("unit not found", nil).WithContext("unit_name", name)
	}
	return entry.stateMachine.GetCurrentState(), nil
}

// ActivateUnit drives a single unit through one activation attempt.
// An unsatisfied ordering defers the unit (state Waiting) and returns
// an ordering error; the engine loop retries on the next round.
func (e *Engine) ActivateUnit(ctx context.Context, name string) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	entry, exists := e.getEntry(name)
	if !exists {
		return errors.NewNotFoundError("unit not found", nil).WithContext("unit_name", name)
	}

	state := entry.stateMachine.GetCurrentState()
	if state.IsTerminal() {
		// Completed one-shot units are idempotent; failed units keep
		// reporting their failure
		if result, ok := e.runner.Result(name); ok {
			return result.Err
		}
		return nil
	}

	if missing := e.completed.Missing(entry.descriptor.Dependencies()); len(missing) > 0 {
		orderingErr := errors.NewOrderingError(
			"ordering dependencies not yet completed", nil).
			WithContext("unit_name", name).
			WithContext("missing", missing)

		if state != unitstate.UnitStateWaiting {
			e.logger.Debugf("Deferring unit, name: %s, missing: %v", name, missing)
		}
		if err := entry.stateMachine.Transition(unitstate.UnitStateWaiting, "defer", orderingErr); err != nil {
			return err
		}
		return orderingErr
	}

	if err := entry.stateMachine.Transition(unitstate.UnitStateRunning, "activate", nil); err != nil {
		return err
	}

	_, err := e.runner.Activate(ctx, entry.descriptor, e.completed)
	if err != nil {
		if transitionErr := entry.stateMachine.Transition(unitstate.UnitStateFailed, "activate", err); transitionErr != nil {
			e.logger.Errorf("Failed to transition unit to failed state, name: %s, error: %v", name, transitionErr)
		}
		if ctx.Err() != nil {
			return errors.NewCancelledError("unit activation was cancelled", ctx.Err()).WithContext("unit_name", name)
		}
		return err
	}

	if transitionErr := entry.stateMachine.Transition(unitstate.UnitStateCompleted, "activate", nil); transitionErr != nil {
		e.logger.Errorf("Failed to transition unit to completed state, name: %s, error: %v", name, transitionErr)
	}

	return nil
}

// Run executes one activation epoch: rounds of readiness evaluation on
// the engine clock, activating every ready unit concurrently, until all
// triggered units are terminal or progress stalls.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	e.setEngineState(EngineStateRunning)
	e.logger.Infof("Engine starting, targets: %v, units: %d", e.options.Targets, e.store.Len())

	watcher, err := e.startPathWatcher()
	if err != nil {
		e.setEngineState(EngineStateStopped)
		return nil, err
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	ticker := e.clock.Ticker(e.options.TickInterval)
	defer ticker.Stop()

	stalledRounds := 0
	for {
		ran := e.runRound(ctx)

		if e.allTriggeredTerminal() {
			break
		}

		if ran == 0 {
			stalledRounds++
			if stalledRounds >= e.options.StallRounds {
				e.failStalledUnits()
				break
			}
		} else {
			stalledRounds = 0
		}

		select {
		case <-ctx.Done():
			e.setEngineState(EngineStateStopped)
			report := e.buildReport()
			return report, errors.NewCancelledError("activation epoch was cancelled", ctx.Err())
		case <-ticker.C:
		}
	}

	e.setEngineState(EngineStateStopped)
	e.logger.Infof("Engine stopped, completed events: %v", e.completed.Names())
	return e.buildReport(), nil
}

// runRound activates every ready unit concurrently and waits for the
// round to finish. Returns the number of units that ran.
func (e *Engine) runRound(ctx context.Context) int {
	ready := e.readyUnits()
	if len(ready) == 0 {
		return 0
	}

	group := &errgroup.Group{}
	if e.options.MaxConcurrentActivations > 0 {
		group.SetLimit(e.options.MaxConcurrentActivations)
	}

	for _, name := range ready {
		name := name
		group.Go(func() error {
			// Per-unit failures are recorded in the unit's state
			// machine; they never abort independent units
			if err := e.ActivateUnit(ctx, name); err != nil && !errors.IsOrderingError(err) {
				e.logger.Warnf("Unit activation failed in round, name: %s, error: %v", name, err)
			}
			return nil
		})
	}

	_ = group.Wait()
	return len(ready)
}

// readyUnits returns triggered, non-terminal units whose dependencies
// are all completed
func (e *Engine) readyUnits() []string {
	var ready []string
	for _, entry := range e.getAllEntries() {
		if !entry.descriptor.TriggeredBy(e.options.Targets) {
			continue
		}
		if entry.stateMachine.GetCurrentState().IsTerminal() {
			continue
		}
		if len(e.completed.Missing(entry.descriptor.Dependencies())) > 0 {
			// Defer explicitly so the state reflects what it waits on
			if entry.stateMachine.GetCurrentState() != unitstate.UnitStateWaiting {
				_ = entry.stateMachine.Transition(unitstate.UnitStateWaiting, "defer", nil)
			}
			continue
		}
		ready = append(ready, entry.descriptor.Name)
	}
	sort.Strings(ready)
	return ready
}

// allTriggeredTerminal reports whether every triggered unit reached a
// terminal state
func (e *Engine) allTriggeredTerminal() bool {
	for _, entry := range e.getAllEntries() {
		if !entry.descriptor.TriggeredBy(e.options.Targets) {
			continue
		}
		if !entry.stateMachine.GetCurrentState().IsTerminal() {
			return false
		}
	}
	return true
}

// failStalledUnits fails every non-terminal triggered unit with the
// ordering cause: their dependencies can no longer be satisfied
func (e *Engine) failStalledUnits() {
	for _, entry := range e.getAllEntries() {
		if !entry.descriptor.TriggeredBy(e.options.Targets) {
			continue
		}
		state := entry.stateMachine.GetCurrentState()
		if state.IsTerminal() || state == unitstate.UnitStateRunning {
			continue
		}

		missing := e.completed.Missing(entry.descriptor.Dependencies())
		cause := errors.NewOrderingError("ordering dependencies can not be satisfied", nil).
			WithContext("unit_name", entry.descriptor.Name).
			WithContext("missing", missing)

		e.logger.Errorf("Failing stalled unit, name: %s, missing: %v", entry.descriptor.Name, missing)
		if err := entry.stateMachine.Transition(unitstate.UnitStateFailed, "stall", cause); err != nil {
			e.logger.Errorf("Failed to transition stalled unit, name: %s, error: %v", entry.descriptor.Name, err)
		}
	}
}

// startPathWatcher watches every declared condition path and marks the
// corresponding synthetic events completed
func (e *Engine) startPathWatcher() (*PathWatcher, error) {
	var paths []string
	for _, entry := range e.getAllEntries() {
		paths = append(paths, entry.descriptor.ConditionPaths...)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	watcher, err := NewPathWatcher(paths, func(path string) {
		e.MarkEventCompleted(units.PathEventPrefix + path)
	}, e.logger)
	if err != nil {
		return nil, err
	}

	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return nil, err
	}
	return watcher, nil
}

// GetEngineState returns the current state of the engine
func (e *Engine) GetEngineState() EngineState {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.engineState
}

func (e *Engine) setEngineState(state EngineState) {
	e.mutex.Lock()
	e.engineState = state
	e.mutex.Unlock()
}

func (e *Engine) getEntry(name string) (*unitEntry, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	entry, exists := e.entries[name]
	return entry, exists
}

// getAllEntries returns a copy of all unit entries under lock, sorted
// by name
func (e *Engine) getAllEntries() []*unitEntry {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	entries := make([]*unitEntry, 0, len(e.entries))
	for _, entry := range e.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].descriptor.Name < entries[j].descriptor.Name
	})
	return entries
}
