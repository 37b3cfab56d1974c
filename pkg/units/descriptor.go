package units

// RunPolicy describes how often a unit may be activated
type RunPolicy string

const (
	// RunPolicyOnce units execute exactly once per activation epoch
	RunPolicyOnce RunPolicy = "once"

	// RunPolicyAlways units may be re-activated after completion
	RunPolicyAlways RunPolicy = "always"
)

// PathEventPrefix prefixes synthetic completion events produced when a
// declared condition path appears on disk.
const PathEventPrefix = "path:"

// OutputConfig describes where captured unit output is persisted
type OutputConfig struct {
	// Destination is the file path for captured standard output.
	// Its parent directory must exist before activation.
	Destination string `yaml:"destination"`

	// Append appends to the destination instead of truncating it
	Append bool `yaml:"append,omitempty"`

	// Shared allows multiple units to target the same destination;
	// writes are then serialized. Exclusive per unit by default.
	Shared bool `yaml:"shared,omitempty"`
}

// UnitDescriptor is the immutable description of a single one-shot task:
// what to run, as whom, when it becomes eligible, and where its output goes.
// Descriptors are created at configuration-load time and never mutated.
type UnitDescriptor struct {
	// Name uniquely identifies the unit within the store
	Name string `yaml:"name"`

	// Description is human-readable and has no semantic effect
	Description string `yaml:"description,omitempty"`

	RunPolicy RunPolicy `yaml:"run_policy,omitempty"`

	// ActivationTriggers are the symbolic target events this unit starts
	// on. Empty means the unit is eligible in every epoch.
	ActivationTriggers []string `yaml:"activation_triggers,omitempty"`

	// OrderingAfter lists unit/event names that must complete before
	// this unit starts
	OrderingAfter []string `yaml:"ordering_after,omitempty"`

	// ConditionPaths are filesystem paths that must exist before this
	// unit starts; each becomes an ordering dependency on the synthetic
	// event "path:<path>"
	ConditionPaths []string `yaml:"condition_paths,omitempty"`

	// RunAsUser is the identity the command executes under.
	// Empty means the current process identity.
	RunAsUser string `yaml:"run_as_user,omitempty"`

	Command          string   `yaml:"command"`
	Args             []string `yaml:"args,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`

	Output OutputConfig `yaml:"output"`
}

// Dependencies returns every completion event the unit orders after,
// including synthetic path-condition events.
func (d *UnitDescriptor) Dependencies() []string {
	deps := make([]string, 0, len(d.OrderingAfter)+len(d.ConditionPaths))
	deps = append(deps, d.OrderingAfter...)
	for _, path := range d.ConditionPaths {
		deps = append(deps, PathEventPrefix+path)
	}
	return deps
}

// TriggeredBy reports whether the unit is eligible when the given targets
// are active. Units without triggers are always eligible.
func (d *UnitDescriptor) TriggeredBy(targets []string) bool {
	if len(d.ActivationTriggers) == 0 {
		return true
	}
	for _, trigger := range d.ActivationTriggers {
		for _, target := range targets {
			if trigger == target {
				return true
			}
		}
	}
	return false
}
