package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	SleepSeconds int `long:"sleep" description:"Seconds to sleep before reporting (debug feature)"`
	ExitCode     int `long:"exit-code" description:"Exit code to terminate with (debug feature)"`
}

// Emits a device information report on stdout, the payload a one-shot
// unit would capture into its output destination.
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

	if opts.SleepSeconds > 0 {
		fmt.Printf("Using SLEEP of %d seconds\n", opts.SleepSeconds)
		time.Sleep(time.Duration(opts.SleepSeconds) * time.Second)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	fmt.Printf("hostname: %s\n", hostname)
	fmt.Printf("os: %s\n", runtime.GOOS)
	fmt.Printf("arch: %s\n", runtime.GOARCH)
	fmt.Printf("cpus: %d\n", runtime.NumCPU())
	fmt.Printf("pid: %d\n", os.Getpid())
	fmt.Printf("collected_at: %s\n", time.Now().UTC().Format(time.RFC3339))

	if opts.ExitCode != 0 {
		fmt.Printf("Using EXIT CODE of %d\n", opts.ExitCode)
		os.Exit(opts.ExitCode)
	}
}
