// Package main is the entry point for the dbgbridge debugger console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/dbgbridge/internal/app"
	"github.com/dshills/dbgbridge/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownTimeout bounds the final teardown of the debugger.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ensure cleanup on all exit paths
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := application.Shutdown(sctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
		}
	}()

	// SIGINT stops the debugged program; SIGTERM ends the console.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		for sig := range signals {
			if sig == syscall.SIGTERM {
				cancel()
				return
			}
			if !application.Busy() {
				application.Logger().Debug("interrupt ignored while idle")
				continue
			}
			if err := application.Interrupt(); err != nil {
				application.Logger().Warn("interrupt failed", "error", err)
			}
		}
	}()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, app.ErrQuit) || errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Backend, "backend", "", "Debugger dialect (gdb, dbg, jdb or a configured name)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Watch, "watch", false, "Reload the configuration file when it changes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dbgbridge - console for GDB, DBG and JDB\n\n")
		fmt.Fprintf(os.Stderr, "Usage: dbgbridge [options] [debugger [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		for _, name := range config.EnvVars() {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
		fmt.Fprintf(os.Stderr, "\nConsole commands:\n%s", app.Help())
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dbgbridge gdb ./a.out            Debug a.out with GDB\n")
		fmt.Fprintf(os.Stderr, "  dbgbridge jdb -classpath . Main  Debug a Java class\n")
		fmt.Fprintf(os.Stderr, "  dbgbridge -c bridge.toml -watch  Use a config file and follow its changes\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("dbgbridge %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	// Remaining arguments are the debugger command line
	opts.Command = flag.Args()

	return opts
}
