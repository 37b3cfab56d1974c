// Package unitstate tracks the activation lifecycle of a single unit:
//
//	Pending -> Waiting (ordering unsatisfied, re-entered on every deferral)
//	Pending/Waiting -> Running -> Completed | Failed
//
// Completed and Failed are terminal. There is no retry edge: an operator
// must reissue activation via a new epoch.
package unitstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
)

// UnitState represents the current activation state of a unit
type UnitState string

const (
	UnitStatePending   UnitState = "pending"
	UnitStateWaiting   UnitState = "waiting"
	UnitStateRunning   UnitState = "running"
	UnitStateCompleted UnitState = "completed"
	UnitStateFailed    UnitState = "failed"
)

// IsTerminal reports whether the state permits no further transitions
func (s UnitState) IsTerminal() bool {
	return s == UnitStateCompleted || s == UnitStateFailed
}

// validTransitions maps each state to the states reachable from it
var validTransitions = map[UnitState][]UnitState{
	UnitStatePending:   {UnitStateWaiting, UnitStateRunning, UnitStateFailed},
	UnitStateWaiting:   {UnitStateWaiting, UnitStateRunning, UnitStateFailed},
	UnitStateRunning:   {UnitStateCompleted, UnitStateFailed},
	UnitStateCompleted: {},
	UnitStateFailed:    {},
}

// operationStates maps operations to the states they are allowed in
var operationStates = map[string][]UnitState{
	"activate": {UnitStatePending, UnitStateWaiting},
	"defer":    {UnitStatePending, UnitStateWaiting},
}

// StateInfo captures a snapshot of a unit's activation state
type StateInfo struct {
	UnitName           string
	CurrentState       UnitState
	PreviousState      UnitState
	LastOperation      string
	LastTransitionTime time.Time
	LastError          error
}

// UnitStateMachine validates and records state transitions for one unit
type UnitStateMachine struct {
	mutex              sync.Mutex
	unitName           string
	currentState       UnitState
	previousState      UnitState
	lastOperation      string
	lastTransitionTime time.Time
	lastError          error
	logger             logging.Logger
}

func NewUnitStateMachine(unitName string, logger logging.Logger) *UnitStateMachine {
	return &UnitStateMachine{
		unitName:           unitName,
		currentState:       UnitStatePending,
		lastTransitionTime: time.Now(),
		logger:             logger,
	}
}

// GetCurrentState returns the current state
func (sm *UnitStateMachine) GetCurrentState() UnitState {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	return sm.currentState
}

// GetStateInfo returns a snapshot of the state machine
func (sm *UnitStateMachine) GetStateInfo() StateInfo {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	return StateInfo{
		UnitName:           sm.unitName,
		CurrentState:       sm.currentState,
		PreviousState:      sm.previousState,
		LastOperation:      sm.lastOperation,
		LastTransitionTime: sm.lastTransitionTime,
		LastError:          sm.lastError,
	}
}

// IsOperationAllowed reports whether the operation may run in the
// current state
func (sm *UnitStateMachine) IsOperationAllowed(operation string) bool {
	allowedStates, known := operationStates[operation]
	if !known {
		return false
	}

	current := sm.GetCurrentState()
	for _, state := range allowedStates {
		if state == current {
			return true
		}
	}
	return false
}

// ValidateOperation returns a validation error if the operation is not
// allowed in the current state
func (sm *UnitStateMachine) ValidateOperation(operation string) error {
	if sm.IsOperationAllowed(operation) {
		return nil
	}

	return errors.NewValidationError(
		fmt.Sprintf("operation '%s' is not allowed in state '%s'", operation, sm.GetCurrentState()),
		nil,
	).WithContext("unit_name", sm.unitName).WithContext("operation", operation)
}

// Transition moves the state machine to the target state, recording the
// operation that caused it and an optional error for failed transitions.
func (sm *UnitStateMachine) Transition(target UnitState, operation string, cause error) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if !isTransitionValid(sm.currentState, target) {
		return errors.NewInternalError(
			fmt.Sprintf("invalid state transition from '%s' to '%s'", sm.currentState, target),
			nil,
		).WithContext("unit_name", sm.unitName).WithContext("operation", operation)
	}

	sm.previousState = sm.currentState
	sm.currentState = target
	sm.lastOperation = operation
	sm.lastTransitionTime = time.Now()
	sm.lastError = cause

	sm.logger.Debugf("Unit state transition, name: %s, %s -> %s, operation: %s",
		sm.unitName, sm.previousState, sm.currentState, operation)

	return nil
}

func isTransitionValid(from, to UnitState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
