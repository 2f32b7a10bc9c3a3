// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/config"
	"grimm.is/wlanguard/internal/host"
	"grimm.is/wlanguard/internal/kernel"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/metrics"
	"grimm.is/wlanguard/internal/mitigation"
	"grimm.is/wlanguard/internal/notification"
)

// engine is the fully wired mitigation stack for one process.
type engine struct {
	cfg       *config.Config
	logger    *logging.Logger
	kern      kernel.Kernel
	log       *actionlog.Log
	store     actionlog.Store
	flusher   *actionlog.Flusher
	registry  *metrics.Registry
	mitigator *mitigation.Mitigator
	notifier  *notification.Dispatcher
}

// newLogger builds the process logger from config. WLANGUARD_LOG_LEVEL
// overrides the configured level.
func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	level := cfg.Logging.Level
	if env := os.Getenv("WLANGUARD_LOG_LEVEL"); env != "" {
		level = env
	}

	out := stderr
	if sc := cfg.Logging.Syslog; sc != nil && sc.Enabled {
		w, err := logging.NewSyslogWriter(logging.SyslogConfig{
			Enabled:  true,
			Host:     sc.Host,
			Port:     sc.Port,
			Protocol: sc.Protocol,
			Tag:      sc.Tag,
			Facility: sc.Facility,
		})
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(stderr, w)
	}

	return logging.New(logging.Config{
		Level:  logging.ParseLevel(level),
		Output: out,
		JSON:   cfg.Logging.JSON,
	}), nil
}

// newEngine wires the toolkit for the configured backend:
//
//	exec    external tools, real filesystem
//	kernel  nftables/netlink, real filesystem
//	sim     in-memory kernel, writes land in a memory overlay
func newEngine(cfg *config.Config, logger *logging.Logger) (*engine, error) {
	e := &engine{
		cfg:      cfg,
		logger:   logger,
		log:      actionlog.New(),
		registry: metrics.NewRegistry(),
	}

	opts := mitigation.Options{
		Config:  cfg,
		Log:     e.log,
		Metrics: e.registry,
		Logger:  logger.WithComponent("mitigation"),
	}
	switch cfg.Backend {
	case config.BackendKernel:
		e.kern = kernel.NewLinuxKernel(cfg.Mitigation.NFTable, logger.WithComponent("kernel"))
		opts.Fs = afero.NewOsFs()
	case config.BackendSim:
		e.kern = kernel.NewSimKernel()
		opts.Prober = host.StaticProber{}
		opts.Fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(afero.NewOsFs()), afero.NewMemMapFs())
	default:
		opts.Prober = host.NewPathProber()
		opts.Runner = &host.ExecRunner{Timeout: cfg.Timeout(), UseSudo: cfg.UseSudo}
		opts.Fs = afero.NewOsFs()
	}
	opts.Kernel = e.kern

	store, err := openStore(cfg.ActionLog)
	if err != nil {
		return nil, err
	}
	e.store = store
	if store != nil {
		e.flusher = actionlog.NewFlusher(e.log, store, cfg.ActionLog.Interval(), logger.WithComponent("actionlog"))
		e.flusher.Backlog = e.registry.SetPending
	}

	e.mitigator = mitigation.New(mitigation.NewToolkit(opts))
	if n := cfg.Notifications; n != nil && n.Enabled {
		e.notifier = notification.NewDispatcher(n, logger.WithComponent("notification"))
		e.mitigator.OnReport(e.notifier.NotifyReport)
	}
	logger.Debug("engine ready", "backend", cfg.Backend, "strict", cfg.Strict, "persistent_log", store != nil)
	return e, nil
}

// openStore opens every configured action log store. It returns nil when
// none is configured.
func openStore(cfg *config.ActionLogConfig) (actionlog.Store, error) {
	var stores actionlog.MultiStore
	if cfg.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o750); err != nil {
			return nil, err
		}
		s, err := actionlog.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	if cfg.JSONLPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JSONLPath), 0o750); err != nil {
			stores.Close()
			return nil, err
		}
		s, err := actionlog.OpenJSONL(cfg.JSONLPath)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores = append(stores, s)
	}

	switch len(stores) {
	case 0:
		return nil, nil
	case 1:
		return stores[0], nil
	default:
		return stores, nil
	}
}

// counters returns the kernel as a counter source, or nil without one.
func (e *engine) counters() metrics.CounterSource {
	if e.kern == nil {
		return nil
	}
	return e.kern
}

// close waits for queued notifications, flushes pending entries and
// releases the store.
func (e *engine) close(ctx context.Context) error {
	if e.notifier != nil {
		e.notifier.Wait()
	}
	if e.store == nil {
		return nil
	}
	var errs []error
	if err := e.flusher.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
