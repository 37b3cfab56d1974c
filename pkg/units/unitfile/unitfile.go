// Package unitfile loads unit descriptors from systemd-dialect service
// files. Only the option subset meaningful to one-shot activation is
// recognized; unrecognized options are ignored.
package unitfile

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
	"github.com/core-tools/hsu-oneshot/pkg/units"

	sdunit "github.com/coreos/go-systemd/v22/unit"
)

// FileSuffix is the expected unit file extension
const FileSuffix = ".service"

// Parse reads a systemd-dialect unit file and maps it to a descriptor.
// The unit name is the file name including the .service suffix, so
// ordering references between files use the same vocabulary as After=.
func Parse(name string, r io.Reader, logger logging.Logger) (units.UnitDescriptor, error) {
	descriptor := units.UnitDescriptor{
		Name:      name,
		RunPolicy: units.RunPolicyOnce,
	}

	options, err := sdunit.Deserialize(r)
	if err != nil {
		return descriptor, errors.NewValidationError("failed to parse unit file", err).
			WithContext("unit_name", name)
	}

	serviceType := "oneshot"

	for _, option := range options {
		switch option.Section {
		case "Unit":
			switch option.Name {
			case "Description":
				descriptor.Description = option.Value
			case "After":
				descriptor.OrderingAfter = append(descriptor.OrderingAfter, strings.Fields(option.Value)...)
			case "ConditionPathExists":
				descriptor.ConditionPaths = append(descriptor.ConditionPaths, option.Value)
			default:
				logger.Debugf("Ignoring unit option, unit: %s, option: [Unit]%s", name, option.Name)
			}

		case "Service":
			switch option.Name {
			case "Type":
				serviceType = option.Value
			case "ExecStart":
				command, args, err := splitCommandLine(option.Value)
				if err != nil {
					return descriptor, errors.NewValidationError("invalid ExecStart", err).
						WithContext("unit_name", name)
				}
				descriptor.Command = command
				descriptor.Args = args
			case "User":
				descriptor.RunAsUser = option.Value
			case "WorkingDirectory":
				descriptor.WorkingDirectory = option.Value
			case "Environment":
				descriptor.Environment = append(descriptor.Environment, strings.Fields(option.Value)...)
			case "StandardOutput":
				if err := applyStandardOutput(&descriptor, option.Value); err != nil {
					return descriptor, err
				}
			default:
				logger.Debugf("Ignoring unit option, unit: %s, option: [Service]%s", name, option.Name)
			}

		case "Install":
			switch option.Name {
			case "WantedBy":
				descriptor.ActivationTriggers = append(descriptor.ActivationTriggers, strings.Fields(option.Value)...)
			default:
				logger.Debugf("Ignoring unit option, unit: %s, option: [Install]%s", name, option.Name)
			}
		}
	}

	if serviceType != "oneshot" {
		return descriptor, errors.NewValidationError("only oneshot units are supported, got type: "+serviceType, nil).
			WithContext("unit_name", name)
	}

	if err := units.ValidateDescriptor(descriptor); err != nil {
		return descriptor, err
	}

	return descriptor, nil
}

func applyStandardOutput(descriptor *units.UnitDescriptor, value string) error {
	switch {
	case strings.HasPrefix(value, "file:"):
		descriptor.Output.Destination = strings.TrimPrefix(value, "file:")
	case strings.HasPrefix(value, "append:"):
		descriptor.Output.Destination = strings.TrimPrefix(value, "append:")
		descriptor.Output.Append = true
	default:
		return errors.NewValidationError("StandardOutput must be file:<path> or append:<path>, got: "+value, nil).
			WithContext("unit_name", descriptor.Name)
	}
	return nil
}

// LoadFile loads a single unit file
func LoadFile(path string, logger logging.Logger) (units.UnitDescriptor, error) {
	name := filepath.Base(path)

	file, err := os.Open(path)
	if err != nil {
		return units.UnitDescriptor{}, errors.NewIOError("failed to open unit file", err).
			WithContext("path", path)
	}
	defer file.Close()

	return Parse(name, file, logger)
}

// LoadDir loads every *.service file in a directory, sorted by name
func LoadDir(dir string, logger logging.Logger) ([]units.UnitDescriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIOError("failed to read units directory", err).
			WithContext("dir", dir)
	}

	var descriptors []units.UnitDescriptor
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileSuffix) {
			continue
		}

		descriptor, err := LoadFile(filepath.Join(dir, entry.Name()), logger)
		if err != nil {
			return nil, err
		}

		logger.Debugf("Loaded unit file, name: %s, command: %s", descriptor.Name, descriptor.Command)
		descriptors = append(descriptors, descriptor)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})

	return descriptors, nil
}

// splitCommandLine splits an ExecStart value into command and arguments,
// honoring single and double quotes.
func splitCommandLine(line string) (string, []string, error) {
	var fields []string
	var current strings.Builder
	var quote rune
	inField := false

	for _, char := range line {
		switch {
		case quote != 0:
			if char == quote {
				quote = 0
			} else {
				current.WriteRune(char)
			}
		case char == '\'' || char == '"':
			quote = char
			inField = true
		case char == ' ' || char == '\t':
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(char)
			inField = true
		}
	}

	if quote != 0 {
		return "", nil, errors.NewValidationError("unbalanced quote in command line", nil)
	}
	if inField {
		fields = append(fields, current.String())
	}
	if len(fields) == 0 {
		return "", nil, errors.NewValidationError("empty command line", nil)
	}

	return fields[0], fields[1:], nil
}
