// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command wlanguard applies countermeasures for classified wireless threats.
//
// Usage:
//
//	wlanguard [-config FILE] [-backend exec|kernel|sim] <command> [args]
//
// Commands:
//
//	serve     run the HTTP API and/or read JSON-line events from stdin
//	handle    dispatch one threat: handle <category> key=value...
//	reset     tear down every installed countermeasure
//	probe     report which tools and control files are available
//	config    print the effective configuration
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/wlanguard/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globals are the flags accepted before the command name.
type globals struct {
	configPath string
	backend    string
	strict     bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wlanguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globals
	fs.StringVar(&g.configPath, "config", "", "Path to HCL, JSON or YAML config file")
	fs.StringVar(&g.backend, "backend", "", "Override the configured backend (exec, kernel, sim)")
	fs.BoolVar(&g.strict, "strict", false, "Report execution failures as failed")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return 2
	}

	cfg, err := loadConfig(g)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "config" {
		return runConfig(cfg, cmdArgs, stdout, stderr)
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	eng, err := newEngine(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize")
		return 1
	}
	defer func() {
		if err := eng.close(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to flush action log")
		}
	}()

	switch cmd {
	case "serve":
		return runServe(ctx, eng, cmdArgs, stdin, stdout, stderr)
	case "handle":
		return runHandle(ctx, eng, cmdArgs, stdout, stderr)
	case "reset":
		return runReset(ctx, eng, cmdArgs, stdout, stderr)
	case "probe":
		return runProbe(eng, stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		usage(stderr, fs)
		return 2
	}
}

func loadConfig(g globals) (*config.Config, error) {
	var cfg *config.Config
	if g.configPath != "" {
		var err error
		cfg, err = config.LoadFile(g.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if g.backend != "" {
		cfg.Backend = g.backend
	}
	if g.strict {
		cfg.Strict = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: wlanguard [flags] <serve|handle|reset|probe|config> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  handle <category> key=value...   dispatch one threat")
	fmt.Fprintln(w, "  reset [-truncate] [-iface a,b]   tear down countermeasures")
	fmt.Fprintln(w, "  serve [-listen addr] [-stdin]    run the API and/or stdin intake")
	fmt.Fprintln(w, "  probe                            show available capabilities")
	fmt.Fprintln(w, "  config [-format hcl|json|yaml]   print the effective config")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}
