// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/heyqbnk/mini-apps-backend-template/lib/config"
	"github.com/heyqbnk/mini-apps-backend-template/lib/logging"
	"github.com/heyqbnk/mini-apps-backend-template/lib/process"
	"github.com/heyqbnk/mini-apps-backend-template/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	showVersion bool
	showHelp    bool
	// workerIndex is -1 outside a worker.
	workerIndex int
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("miniapp-server", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")
	flagSet.IntVar(&opts.workerIndex, "worker-index", -1, "run as the given worker of a coordinator")
	if err := flagSet.MarkHidden("worker-index"); err != nil {
		return options{}, err
	}

	if err := flagSet.Parse(args); err != nil {
		return options{}, &process.UsageError{Err: err}
	}
	if flagSet.NArg() > 0 {
		return options{}, process.Usagef("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.showHelp {
		fmt.Fprintf(output, "Usage: miniapp-server [--config path]\n\n%s", flagSet.FlagUsages())
	}
	return opts, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.showHelp {
		return nil
	}
	if opts.showVersion {
		fmt.Printf("miniapp-server %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.workerIndex >= 0 {
		logger = logger.With("role", "worker", "worker", opts.workerIndex)
		return runWorker(ctx, cfg, logger)
	}

	workers := cfg.Server.WorkerCount(runtime.NumCPU())
	logger.Info("miniapp-server starting",
		version.LogAttr(),
		"environment", cfg.Environment,
		"workers", workers,
		"config", cfg.Redacted(),
	)
	if workers == 0 {
		return runSingle(ctx, cfg, logger)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating own executable: %w", err)
	}
	err = runCoordinator(ctx, coordinatorConfig{
		executable: executable,
		args:       args,
		workers:    workers,
		logger:     logger.With("role", "coordinator"),
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
