package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/core-tools/hsu-oneshot/pkg/logging"
	"github.com/core-tools/hsu-oneshot/pkg/units"
	"github.com/core-tools/hsu-oneshot/pkg/units/unitfile"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	UnitsDir string `long:"units-dir" description:"directory with unit files to inspect"`
	UnitFile string `long:"unit-file" description:"single unit file to inspect"`
	Validate bool   `long:"validate" description:"validate unit definitions and exit"`
	List     bool   `long:"list" description:"list parsed unit definitions"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if opts.UnitsDir == "" && opts.UnitFile == "" {
		fmt.Println("Units dir or unit file is required")
		os.Exit(1)
	}
	if !opts.Validate && !opts.List {
		opts.List = true
	}

	logger := logging.NewLogger("", logging.LogFuncs{
		Warnf:  warnToStderr,
		Errorf: errorToStderr,
	})

	var descriptors []units.UnitDescriptor
	if opts.UnitFile != "" {
		descriptor, loadErr := unitfile.LoadFile(opts.UnitFile, logger)
		if loadErr != nil {
			fmt.Printf("Failed to load unit file: %v\n", loadErr)
			os.Exit(1)
		}
		descriptors = append(descriptors, descriptor)
	}
	if opts.UnitsDir != "" {
		dirDescriptors, loadErr := unitfile.LoadDir(opts.UnitsDir, logger)
		if loadErr != nil {
			fmt.Printf("Failed to load units dir: %v\n", loadErr)
			os.Exit(1)
		}
		descriptors = append(descriptors, dirDescriptors...)
	}

	invalid := 0
	for _, descriptor := range descriptors {
		if validateErr := units.ValidateDescriptor(descriptor); validateErr != nil {
			fmt.Printf("Unit %s is invalid: %v\n", descriptor.Name, validateErr)
			invalid++
		}
	}

	if opts.Validate {
		if invalid > 0 {
			fmt.Printf("%d of %d units are invalid\n", invalid, len(descriptors))
			os.Exit(1)
		}
		fmt.Printf("All %d units are valid\n", len(descriptors))
	}

	if opts.List {
		for _, descriptor := range descriptors {
			printDescriptor(descriptor)
		}
	}
}

func printDescriptor(descriptor units.UnitDescriptor) {
	fmt.Printf("unit: %s\n", descriptor.Name)
	if descriptor.Description != "" {
		fmt.Printf("  description: %s\n", descriptor.Description)
	}
	fmt.Printf("  run policy: %s\n", descriptor.RunPolicy)
	fmt.Printf("  command: %s\n", strings.Join(append([]string{descriptor.Command}, descriptor.Args...), " "))
	if len(descriptor.OrderingAfter) > 0 {
		fmt.Printf("  after: %s\n", strings.Join(descriptor.OrderingAfter, ", "))
	}
	if len(descriptor.ActivationTriggers) > 0 {
		fmt.Printf("  triggered by: %s\n", strings.Join(descriptor.ActivationTriggers, ", "))
	}
	if len(descriptor.ConditionPaths) > 0 {
		fmt.Printf("  condition paths: %s\n", strings.Join(descriptor.ConditionPaths, ", "))
	}
	if descriptor.RunAsUser != "" {
		fmt.Printf("  run as: %s\n", descriptor.RunAsUser)
	}
	mode := "truncate"
	if descriptor.Output.Append {
		mode = "append"
	}
	fmt.Printf("  output: %s (%s)\n", descriptor.Output.Destination, mode)
}

func warnToStderr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", args...)
}

func errorToStderr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}
