package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
	"github.com/core-tools/hsu-oneshot/pkg/units"
	"github.com/core-tools/hsu-oneshot/pkg/units/unitfile"

	"gopkg.in/yaml.v3"
)

// EngineConfig represents the top-level configuration file structure
type EngineConfig struct {
	Engine EngineConfigOptions `yaml:"engine"`

	// Units defined inline in the configuration file; merged with the
	// unit files loaded from units_dir
	Units []units.UnitDescriptor `yaml:"units,omitempty"`
}

// EngineConfigOptions represents engine-level configuration
type EngineConfigOptions struct {
	Logging logging.ZapConfig `yaml:"logging,omitempty"`

	// UnitsDir holds *.service unit files
	UnitsDir string `yaml:"units_dir,omitempty"`

	// UnitRoot resolves relative command paths; defaults to UnitsDir
	UnitRoot string `yaml:"unit_root,omitempty"`

	Targets []string `yaml:"targets,omitempty"`

	TickInterval             time.Duration `yaml:"tick_interval,omitempty"`
	StallRounds              int           `yaml:"stall_rounds,omitempty"`
	MaxConcurrentActivations int           `yaml:"max_concurrent_activations,omitempty"`
}

// LoadConfigFromFile loads engine configuration from a YAML file
func LoadConfigFromFile(filename string) (*EngineConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config EngineConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *EngineConfig) {
	if config.Engine.Logging.Level == "" {
		config.Engine.Logging.Level = "info"
	}
	if config.Engine.Logging.Output == "" {
		config.Engine.Logging.Output = "stdout"
	}
	if len(config.Engine.Targets) == 0 {
		config.Engine.Targets = []string{"default.target"}
	}
	if config.Engine.TickInterval == 0 {
		config.Engine.TickInterval = 500 * time.Millisecond
	}
	if config.Engine.StallRounds == 0 {
		config.Engine.StallRounds = 3
	}
	if config.Engine.UnitRoot == "" {
		config.Engine.UnitRoot = config.Engine.UnitsDir
	}

	for i := range config.Units {
		if config.Units[i].RunPolicy == "" {
			config.Units[i].RunPolicy = units.RunPolicyOnce
		}
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *EngineConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if config.Engine.TickInterval < 0 {
		return errors.NewValidationError("tick interval cannot be negative", nil)
	}
	if config.Engine.StallRounds < 0 {
		return errors.NewValidationError("stall rounds cannot be negative", nil)
	}
	if config.Engine.MaxConcurrentActivations < 0 {
		return errors.NewValidationError("max concurrent activations cannot be negative", nil)
	}

	if len(config.Units) == 0 && config.Engine.UnitsDir == "" {
		return errors.NewValidationError("configuration defines no units: set units_dir or add inline units", nil)
	}

	// Check inline units for validity and duplicate names; unit files
	// are checked at load time
	seenNames := make(map[string]int)
	for i, descriptor := range config.Units {
		if err := units.ValidateDescriptor(descriptor); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid unit at index %d", i),
				err,
			).WithContext("unit_name", descriptor.Name)
		}

		if prevIndex, exists := seenNames[descriptor.Name]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate unit name '%s' found at indices %d and %d", descriptor.Name, prevIndex, i),
				nil,
			)
		}
		seenNames[descriptor.Name] = i
	}

	return nil
}

// LoadDescriptors collects all unit descriptors: inline units from the
// configuration plus unit files from units_dir
func LoadDescriptors(config *EngineConfig, logger logging.Logger) ([]units.UnitDescriptor, error) {
	if config == nil {
		return nil, errors.NewValidationError("configuration cannot be nil", nil)
	}

	descriptors := make([]units.UnitDescriptor, 0, len(config.Units))
	descriptors = append(descriptors, config.Units...)

	if config.Engine.UnitsDir != "" {
		fileDescriptors, err := unitfile.LoadDir(config.Engine.UnitsDir, logger)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, fileDescriptors...)
	}

	return descriptors, nil
}

// NewEngineFromConfig builds a configured engine with all units
// registered
func NewEngineFromConfig(config *EngineConfig, logger logging.Logger) (*Engine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	descriptors, err := LoadDescriptors(config, logger)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(EngineOptions{
		Targets:                  config.Engine.Targets,
		UnitRoot:                 config.Engine.UnitRoot,
		TickInterval:             config.Engine.TickInterval,
		StallRounds:              config.Engine.StallRounds,
		MaxConcurrentActivations: config.Engine.MaxConcurrentActivations,
	}, logger)

	for _, descriptor := range descriptors {
		if err := engine.AddUnit(descriptor); err != nil {
			return nil, err
		}
	}

	return engine, nil
}
