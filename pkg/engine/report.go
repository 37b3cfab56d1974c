package engine

import (
	"fmt"
	"strings"

	"github.com/core-tools/hsu-oneshot/pkg/activation"
	"github.com/core-tools/hsu-oneshot/pkg/activation/unitstate"
	"github.com/core-tools/hsu-oneshot/pkg/errors"
)

// UnitReport is the final status of one unit after an epoch
type UnitReport struct {
	Name      string
	State     unitstate.UnitState
	StateInfo unitstate.StateInfo

	// Result is nil when the unit was never attempted (not triggered,
	// or failed before running)
	Result *activation.Result
}

// Report aggregates the outcome of an activation epoch
type Report struct {
	Units    []UnitReport
	Failures *errors.ErrorCollection
}

// HasFailures reports whether any unit failed
func (r *Report) HasFailures() bool {
	return r.Failures.HasErrors()
}

// Summary renders a one-line-per-unit status overview
func (r *Report) Summary() string {
	var b strings.Builder
	for _, unit := range r.Units {
		line := fmt.Sprintf("unit: %s, state: %s", unit.Name, unit.State)
		if unit.Result != nil {
			line += fmt.Sprintf(", attempt: %s, output bytes: %d, duration: %s",
				unit.Result.AttemptID, unit.Result.OutputBytes, unit.Result.Duration)
		}
		if unit.StateInfo.LastError != nil {
			line += fmt.Sprintf(", error: %v", unit.StateInfo.LastError)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// buildReport snapshots every unit's state and collects failures
func (e *Engine) buildReport() *Report {
	report := &Report{
		Failures: errors.NewErrorCollection(),
	}

	for _, entry := range e.getAllEntries() {
		name := entry.descriptor.Name
		info := entry.stateMachine.GetStateInfo()

		unitReport := UnitReport{
			Name:      name,
			State:     info.CurrentState,
			StateInfo: info,
		}

		if result, ok := e.runner.Result(name); ok {
			unitReport.Result = &result
		}

		if info.CurrentState == unitstate.UnitStateFailed {
			if info.LastError != nil {
				report.Failures.Add(info.LastError)
			} else {
				report.Failures.Add(errors.NewInternalError("unit failed without recorded cause", nil).
					WithContext("unit_name", name))
			}
		}

		report.Units = append(report.Units, unitReport)
	}

	return report
}
