// Command shopsave creates and restores backups of JTL-Shop web projects:
// a MySQL dump plus compressed archives of the web and media trees, kept in
// rotated, timestamped backup sets.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/webdienst24/shopsave/internal/cli"
	"github.com/webdienst24/shopsave/internal/config"
	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/orchestrator"
	"github.com/webdienst24/shopsave/internal/tui"
	"github.com/webdienst24/shopsave/internal/types"
)

func main() {
	os.Exit(run())
}

var closeStdinOnce sync.Once

func run() int {
	bootstrap := logging.NewBootstrapLogger()

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(types.ExitSetupError.Int())
		}
	}()

	// Signal handling for graceful shutdown: cancel the context and unblock
	// any pending stdin read.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		bootstrap.Warning("Received signal %v, shutting down...", sig)
		cancel()
		closeStdinOnce.Do(func() {
			if file := os.Stdin; file != nil {
				_ = file.Close()
			}
		})
	}()
	tui.SetAbortContext(ctx)

	args := cli.Parse()
	if args.ShowVersion {
		cli.ShowVersion()
		return types.ExitSuccess.Int()
	}
	if args.ShowHelp {
		cli.ShowHelp()
		return types.ExitSuccess.Int()
	}
	if args.Backup && args.Restore {
		fmt.Fprintln(os.Stderr, "--backup and --restore are mutually exclusive")
		return types.ExitSetupError.Int()
	}

	bootstrap.Debug("Loading configuration from %s (%s)", args.ConfigPath, args.ConfigPathSource)
	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return types.ExitSetupError.Int()
	}
	if args.DryRun {
		cfg.DryRun = true
	}

	logLevel := cfg.DebugLevel
	if args.LogLevel != types.LogLevelNone {
		logLevel = args.LogLevel
	}
	useColor := cfg.UseColor && term.IsTerminal(int(os.Stdout.Fd()))
	logger := logging.New(logLevel, useColor)
	bootstrap.Flush(logger)

	for _, key := range cfg.UnknownKeys {
		logger.Warning("Unknown configuration key: %s", key)
	}
	if cfg.DryRun {
		logger.Info("Dry run enabled, no data will be changed")
	}

	ui := newWorkflowUI(args, logger)
	orch := orchestrator.New(logger, cfg, ui)

	switch {
	case args.Backup:
		err = orch.RunBackup(ctx)
	case args.Restore:
		err = orch.RunRestore(ctx)
	default:
		err = orch.Run(ctx)
	}

	code := orchestrator.ExitCodeForError(err)
	if err != nil && code != types.ExitSuccess {
		logger.Error("Run failed: %v", err)
	}
	printSummary(logger, code)
	return code.Int()
}

// newWorkflowUI picks the interactive surface: the full-screen UI on a real
// terminal, plain prompts otherwise or when forced.
func newWorkflowUI(args *cli.Args, logger *logging.Logger) orchestrator.WorkflowUI {
	if args.ForceCLI || !term.IsTerminal(int(os.Stdin.Fd())) {
		return orchestrator.NewCLIWorkflowUI(bufio.NewReader(os.Stdin), logger)
	}
	return orchestrator.NewTUIWorkflowUI(logger)
}

func printSummary(logger *logging.Logger, code types.ExitCode) {
	switch {
	case code == types.ExitSuccess && logger.HasWarnings():
		logger.Info("Finished with warnings (exit code 0)")
	case code == types.ExitSuccess:
		logger.Info("Finished successfully")
	default:
		logger.Error("Finished with errors: %s (exit code %d)", code, code.Int())
	}
}
