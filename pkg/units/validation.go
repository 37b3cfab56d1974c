package units

import (
	"github.com/core-tools/hsu-oneshot/pkg/errors"
)

// ValidateUnitName validates unit name format and constraints
func ValidateUnitName(name string) error {
	if name == "" {
		return errors.NewValidationError("unit name cannot be empty", nil)
	}

	if len(name) > 64 {
		return errors.NewValidationError("unit name cannot exceed 64 characters", nil)
	}

	for _, char := range name {
		if !isValidNameChar(char) {
			return errors.NewValidationError("unit name contains invalid characters: only letters, numbers, dots, hyphens, and underscores are allowed", nil)
		}
	}

	return nil
}

func isValidNameChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '.' || char == '-' || char == '_'
}

// ValidateDescriptor validates a complete unit descriptor
func ValidateDescriptor(descriptor UnitDescriptor) error {
	if err := ValidateUnitName(descriptor.Name); err != nil {
		return err
	}

	switch descriptor.RunPolicy {
	case RunPolicyOnce, RunPolicyAlways, "":
		// empty is defaulted to once at load time
	default:
		return errors.NewValidationError("unsupported run policy: "+string(descriptor.RunPolicy), nil).
			WithContext("unit_name", descriptor.Name).
			WithContext("supported_policies", "once, always")
	}

	if descriptor.Command == "" {
		return errors.NewValidationError("unit command is required", nil).
			WithContext("unit_name", descriptor.Name)
	}

	if descriptor.Output.Destination == "" {
		return errors.NewValidationError("unit output destination is required", nil).
			WithContext("unit_name", descriptor.Name)
	}

	// A unit ordering after itself can never become ready
	for _, dep := range descriptor.OrderingAfter {
		if dep == descriptor.Name {
			return errors.NewValidationError("unit cannot order after itself", nil).
				WithContext("unit_name", descriptor.Name)
		}
	}

	return nil
}
