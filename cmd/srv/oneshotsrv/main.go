package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/core-tools/hsu-oneshot/pkg/engine"
	"github.com/core-tools/hsu-oneshot/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	ConfigPath string `long:"config" description:"path to the engine configuration file" required:"true"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
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

	config, err := engine.LoadConfigFromFile(opts.ConfigPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logging.NewZapLogger(config.Engine.Logging)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(
		logPrefix("hsu-oneshot"), logging.LogFuncs{
			Debugf: zapLogger.Debugf,
			Infof:  zapLogger.Infof,
			Warnf:  zapLogger.Warnf,
			Errorf: zapLogger.Errorf,
		})

	logger.Infof("Starting, config: %s", opts.ConfigPath)

	activationEngine, err := engine.NewEngineFromConfig(config, logger)
	if err != nil {
		logger.Errorf("Failed to create engine: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	go func() {
		receivedSignal := <-sig
		logger.Infof("Received signal: %v, cancelling activation epoch", receivedSignal)
		cancel()
	}()

	report, err := activationEngine.Run(ctx)
	if err != nil {
		logger.Errorf("Activation epoch ended with error: %v", err)
	}

	if report != nil {
		fmt.Print(report.Summary())
		if report.HasFailures() {
			os.Exit(1)
		}
	}
	if err != nil {
		os.Exit(1)
	}

	logger.Infof("Done")
}
