// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/config"
	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/host"
	"grimm.is/wlanguard/internal/kernel"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/metrics"
	"grimm.is/wlanguard/internal/netutil"
	"grimm.is/wlanguard/internal/network"
)

// Options wires a Toolkit. Only Config is required; everything else has a
// host-backed default.
type Options struct {
	Config  *config.Config
	Prober  host.Prober
	Runner  host.Runner
	Kernel  kernel.Kernel
	Fs      afero.Fs
	Patcher SurfacePatcher
	Log     *actionlog.Log
	Metrics *metrics.Registry
	Logger  *logging.Logger
}

// Toolkit executes mitigation primitives. Every primitive probes its
// capability, then either simulates or applies under a per-resource lock,
// and appends exactly one action log entry.
type Toolkit struct {
	cfg     *config.Config
	prober  host.Prober
	runner  host.Runner
	kern    kernel.Kernel
	fs      afero.Fs
	sysctl  *network.Sysctl
	patcher SurfacePatcher
	log     *actionlog.Log
	metrics *metrics.Registry
	logger  *logging.Logger

	state  *toolkitState
	threat string
}

type toolkitState struct {
	locks *keyedMutex

	// disabledAPs mirrors <state_dir>/disabled_aps so a later process can
	// still re-enable them. unsaved is set while the file lags behind.
	mu          sync.Mutex
	disabledAPs map[string]struct{}
	unsaved     bool
}

const disabledAPsFile = "disabled_aps"

// NewToolkit builds a toolkit from opts.
func NewToolkit(opts Options) *Toolkit {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.ApplyDefaults()

	t := &Toolkit{
		cfg:     cfg,
		prober:  opts.Prober,
		runner:  opts.Runner,
		kern:    opts.Kernel,
		fs:      opts.Fs,
		patcher: opts.Patcher,
		log:     opts.Log,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		state: &toolkitState{
			locks:       newKeyedMutex(),
			disabledAPs: make(map[string]struct{}),
		},
	}
	if t.prober == nil {
		t.prober = host.NewPathProber()
	}
	if t.runner == nil {
		t.runner = &host.ExecRunner{Timeout: cfg.Timeout(), UseSudo: cfg.UseSudo}
	}
	if t.fs == nil {
		t.fs = afero.NewOsFs()
	}
	if t.patcher == nil {
		t.patcher = NewFSPatcher(t.fs, cfg.Webapp.Extensions)
	}
	if t.log == nil {
		t.log = actionlog.New()
	}
	if t.logger == nil {
		t.logger = logging.WithComponent("mitigation")
	}
	t.sysctl = network.NewSysctl(t.fs, cfg.Mitigation.SysctlRoot)
	return t
}

// Log returns the action log steps are recorded in.
func (t *Toolkit) Log() *actionlog.Log { return t.log }

// withThreat returns a view of t that tags entries with threat.
func (t *Toolkit) withThreat(threat string) *Toolkit {
	c := *t
	c.threat = threat
	return &c
}

// kernelMode reports whether primitives with a kernel form should use it.
func (t *Toolkit) kernelMode() bool {
	return t.kern != nil && t.cfg.Backend != config.BackendExec
}

func (t *Toolkit) kernelAvailable() bool {
	return t.kern.Available() == nil
}

// Capabilities probes every configured tool and control file.
func (t *Toolkit) Capabilities() map[string]bool {
	tools := t.cfg.Tools
	status := host.Status(t.prober,
		tools.PacketFilter,
		tools.PacketFilter6,
		tools.TrafficControl,
		tools.Neighbor,
		tools.APControl,
		tools.ServiceManager,
		tools.DeauthGuard,
	)
	status[t.sysctl.Path(t.cfg.Mitigation.SynCookies)] = t.exists(t.sysctl.Path(t.cfg.Mitigation.SynCookies))
	status[t.cfg.Hostapd.ConfigPath] = t.exists(t.cfg.Hostapd.ConfigPath)
	if t.kern != nil {
		status["kernel:"+t.cfg.Backend] = t.kernelAvailable()
	}
	return status
}

func (t *Toolkit) exists(path string) bool {
	ok, err := afero.Exists(t.fs, path)
	return err == nil && ok
}

// step is one primitive invocation prepared for invoke.
type step struct {
	action   string
	resource string
	details  map[string]string
	// invalid short-circuits to a failed entry without probing.
	invalid   error
	available func() bool
	apply     func(ctx context.Context) error
	// simulate runs instead of apply when the capability is absent. It
	// must not touch host state.
	simulate func()
}

func (t *Toolkit) invoke(ctx context.Context, s step) StepResult {
	start := time.Now()
	logger := t.logger.With("action", s.action, "threat", t.threat)
	if s.details == nil {
		s.details = make(map[string]string)
	}

	var (
		result    actionlog.Result
		err       error
		available bool
		probeErr  error
	)
	if s.invalid == nil {
		available, probeErr = safeProbe(s.available)
	}
	switch {
	case s.invalid != nil:
		result, err = actionlog.Failed, s.invalid
		logger.WithError(err).Warn("step skipped, invalid input")

	case probeErr != nil:
		result, err = actionlog.Failed, probeErr
		logger.WithError(err).Error("capability probe failed")

	case !available:
		result = actionlog.Simulated
		if s.simulate != nil {
			s.simulate()
		}
		logger.Info("capability unavailable, simulating step", "resource", s.resource)

	default:
		unlock := t.state.locks.Lock(s.resource)
		err = safeApply(ctx, s.apply)
		unlock()

		result = actionlog.Applied
		if err != nil {
			for k, v := range errors.GetAttributes(err) {
				s.details[k] = fmt.Sprint(v)
			}
			if t.cfg.Strict {
				result = actionlog.Failed
			}
			logger.WithError(err).Warn("step execution failed", "reported_as", string(result))
		} else {
			logger.Info("step applied", "resource", s.resource)
		}
	}

	if err != nil {
		s.details["error_kind"] = errors.GetKind(err).String()
	}
	entry := t.log.Append(s.action, t.threat, result, s.details, err)
	t.metrics.Step(s.action, string(result), time.Since(start))

	sr := StepResult{Action: s.action, Resource: s.resource, Result: result, EntryID: entry.ID, err: err}
	if err != nil {
		sr.Error = err.Error()
	}
	return sr
}

func safeProbe(available func() bool) (ok bool, err error) {
	if available == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, errors.Errorf(errors.KindInternal, "probe panicked: %v", r)
		}
	}()
	return available(), nil
}

func safeApply(ctx context.Context, apply func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf(errors.KindInternal, "step panicked: %v", r)
		}
	}()
	return apply(ctx)
}

// command builds the probe/apply pair for an external tool.
func (t *Toolkit) command(s *step, tool string, args ...string) {
	s.details["tool"] = tool
	s.details["command"] = strings.TrimSpace(tool + " " + strings.Join(args, " "))
	s.available = func() bool { return t.prober.Available(tool) }
	s.apply = func(ctx context.Context) error {
		_, err := t.runner.Run(ctx, tool, args...)
		return err
	}
}

// kernelOp builds the probe/apply pair for the kernel backend.
func (t *Toolkit) kernelOp(s *step, apply func() error) {
	s.details["backend"] = t.cfg.Backend
	s.available = t.kernelAvailable
	s.apply = func(context.Context) error { return apply() }
}

func (t *Toolkit) disabledAPsPath() string {
	return filepath.Join(t.cfg.StateDir, disabledAPsFile)
}

// loadDisabledLocked replaces the in-memory set with the persisted one. A
// missing file is an empty set. Memory wins while a write is outstanding.
func (t *Toolkit) loadDisabledLocked() {
	if t.state.unsaved {
		return
	}
	data, err := afero.ReadFile(t.fs, t.disabledAPsPath())
	if err != nil && !os.IsNotExist(err) {
		return
	}
	clear(t.state.disabledAPs)
	for _, line := range strings.Split(string(data), "\n") {
		if iface := strings.TrimSpace(line); iface != "" {
			t.state.disabledAPs[iface] = struct{}{}
		}
	}
}

func (t *Toolkit) sortedDisabledLocked() []string {
	out := make([]string, 0, len(t.state.disabledAPs))
	for iface := range t.state.disabledAPs {
		out = append(out, iface)
	}
	sort.Strings(out)
	return out
}

func (t *Toolkit) markDisabled(iface string, disabled bool) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()

	t.loadDisabledLocked()
	if disabled {
		t.state.disabledAPs[iface] = struct{}{}
	} else {
		delete(t.state.disabledAPs, iface)
	}

	path := t.disabledAPsPath()
	var err error
	if len(t.state.disabledAPs) == 0 {
		if err = t.fs.Remove(path); os.IsNotExist(err) {
			err = nil
		}
	} else if err = t.fs.MkdirAll(t.cfg.StateDir, 0o755); err == nil {
		body := strings.Join(t.sortedDisabledLocked(), "\n") + "\n"
		err = afero.WriteFile(t.fs, path, []byte(body), 0o644)
	}
	t.state.unsaved = err != nil
	if err != nil {
		t.logger.WithError(err).Warn("could not persist disabled access points", "path", path)
	}
}

// DisabledAPs lists interfaces whose authentication was turned off, by this
// process or an earlier one sharing the state directory.
func (t *Toolkit) DisabledAPs() []string {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	t.loadDisabledLocked()
	return t.sortedDisabledLocked()
}

// ResolveIP finds the IPv4 address currently bound to mac in the neighbor
// table. It is read-only and never logged.
func (t *Toolkit) ResolveIP(ctx context.Context, mac string) (string, bool) {
	hw, err := netutil.ParseMAC(mac)
	if err != nil {
		return "", false
	}

	if t.kernelMode() {
		if !t.kernelAvailable() {
			return "", false
		}
		ip, ok := t.kern.LookupNeighbor(hw)
		if !ok {
			return "", false
		}
		return ip.String(), true
	}

	tool := t.cfg.Tools.Neighbor
	if !t.prober.Available(tool) {
		return "", false
	}
	out, err := t.runner.Run(ctx, tool, "neigh", "show")
	if err != nil {
		t.logger.WithError(err).Debug("neighbor lookup failed", "mac", mac)
		return "", false
	}
	return parseNeighbors(out, hw)
}

// parseNeighbors scans `ip neigh show` output:
//
//	192.168.1.7 dev wlan0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
func parseNeighbors(out []byte, hw net.HardwareAddr) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || net.ParseIP(fields[0]) == nil {
			continue
		}
		for i := 1; i < len(fields)-1; i++ {
			if fields[i] != "lladdr" {
				continue
			}
			if found, err := net.ParseMAC(fields[i+1]); err == nil && bytes.Equal(found, hw) {
				if fields[len(fields)-1] == "FAILED" {
					break
				}
				return fields[0], true
			}
		}
	}
	return "", false
}
