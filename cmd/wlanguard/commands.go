// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"grimm.is/wlanguard/internal/api"
	"grimm.is/wlanguard/internal/config"
	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/intake"
	"grimm.is/wlanguard/internal/metrics"
	"grimm.is/wlanguard/internal/mitigation"
)

const shutdownTimeout = 10 * time.Second

// parseContext turns key=value arguments into a packet context.
func parseContext(args []string) (mitigation.PacketContext, error) {
	pc := make(mitigation.PacketContext, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf(errors.KindValidation, "expected key=value, got %q", arg)
		}
		pc[key] = value
	}
	return pc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runHandle(ctx context.Context, eng *engine, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: wlanguard handle <category> key=value...")
		return 2
	}
	pc, err := parseContext(args[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	rep := eng.mitigator.HandleReport(ctx, args[0], pc)
	if err := writeJSON(stdout, rep); err != nil {
		return 1
	}
	return exitCode(rep.Steps)
}

func runReset(ctx context.Context, eng *engine, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	truncate := fs.Bool("truncate", eng.cfg.Reset.TruncateLog, "Clear the action log first")
	ifaces := fs.String("iface", "", "Comma-separated interfaces to clear shaping on (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts := eng.mitigator.DefaultResetOptions()
	opts.TruncateLog = *truncate
	if *ifaces != "" {
		opts.Interfaces = splitList(*ifaces)
	}

	rep := eng.mitigator.Reset(ctx, opts)
	if err := writeJSON(stdout, rep); err != nil {
		return 1
	}
	return exitCode(rep.Steps)
}

func runProbe(eng *engine, stdout io.Writer) int {
	caps := eng.mitigator.Toolkit().Capabilities()
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := "missing"
		if caps[name] {
			status = "available"
		}
		fmt.Fprintf(stdout, "%-40s %s\n", name, status)
	}
	return 0
}

func runConfig(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "hcl", "Output format: hcl, json or yaml")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	data, err := cfg.Marshal(config.Format(*format))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	stdout.Write(data)
	return 0
}

// runServe runs the API server, stdin intake, or both until ctx is done.
// With intake only, the command also returns once stdin is exhausted.
func runServe(ctx context.Context, eng *engine, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	listen := fs.String("listen", "", "API listen address (default from config when the API is enabled)")
	useStdin := fs.Bool("stdin", false, "Read JSON-line events from stdin")
	workers := fs.Int("workers", eng.cfg.API.Workers, "Concurrent dispatches for stdin intake")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	addr := *listen
	if addr == "" && eng.cfg.API.Enabled {
		addr = eng.cfg.API.Listen
	}
	if addr == "" && !*useStdin {
		fmt.Fprintln(stderr, "Error: nothing to serve; enable the API or pass -stdin")
		return 2
	}

	logger := eng.logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if eng.flusher != nil {
		eng.flusher.Start(ctx)
	}
	if src := eng.counters(); src != nil {
		collector := metrics.NewCollector(eng.registry, src, logger.WithComponent("metrics"), 0)
		collector.Start()
		defer collector.Stop()
	}

	errCh := make(chan error, 1)
	var server *api.Server
	if addr != "" {
		var err error
		server, err = api.NewServer(api.Options{
			Mitigator: eng.mitigator,
			Store:     eng.store,
			Counters:  eng.counters(),
			Metrics:   eng.registry,
			Logger:    logger.WithComponent("api"),
		})
		if err != nil {
			logger.WithError(err).Error("failed to create API server")
			return 1
		}
		go func() { errCh <- server.ListenAndServe(addr) }()
	}

	intakeDone := make(chan struct{})
	if *useStdin {
		runner := &intake.Runner{
			Dispatcher: eng.mitigator,
			Workers:    *workers,
			Logger:     logger.WithComponent("intake"),
		}
		go func() {
			defer close(intakeDone)
			stats, err := runner.Run(ctx, stdin, stdout)
			if err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("intake stopped")
			}
			logger.Info("intake finished", "dispatched", stats.Dispatched, "malformed", stats.Malformed)
		}()
	}

	code := 0
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("API server stopped")
			code = 1
		}
	case <-waitIntake(intakeDone, server == nil):
	}

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API shutdown incomplete")
		}
	}
	return code
}

// waitIntake returns done when intake completion should end serve, and a
// channel that never fires otherwise.
func waitIntake(done chan struct{}, intakeOnly bool) <-chan struct{} {
	if intakeOnly {
		return done
	}
	return nil
}

// exitCode is 1 when any step failed.
func exitCode(steps []mitigation.StepResult) int {
	for _, s := range steps {
		if s.Failed() {
			return 1
		}
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
